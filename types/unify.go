package types

import (
	"errors"
	"fmt"
)

// ErrTypeMismatch is returned when two types cannot be unified.
var ErrTypeMismatch = errors.New("type mismatch")

// MismatchError carries the two types that failed to unify.
type MismatchError struct {
	Left  Type
	Right Type
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("cannot unify %s with %s", e.Left, e.Right)
}

// Is implements error matching for errors.Is() checks.
func (e *MismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// Scope holds type variable bindings made during unification.
type Scope map[string]Type

// Unify finds the most specific type that both a and b describe, binding
// type variables in scope. A nil scope is allowed when neither side
// contains variables.
func Unify(a, b Type, scope Scope) (Type, error) {
	if a.Kind == KindVar {
		return unifyVar(a, b, scope)
	}
	if b.Kind == KindVar {
		return unifyVar(b, a, scope)
	}
	if a.Kind == KindAny {
		return b, nil
	}
	if b.Kind == KindAny {
		return a, nil
	}
	if a.Kind != b.Kind {
		return Type{}, &MismatchError{Left: a, Right: b}
	}

	switch a.Kind {
	case KindMeasure:
		switch {
		case a.Unit == "":
			return b, nil
		case b.Unit == "":
			return a, nil
		case a.Unit == b.Unit:
			return a, nil
		}
		return Type{}, &MismatchError{Left: a, Right: b}

	case KindArray, KindMap, KindTuple:
		if len(a.Elems) != len(b.Elems) {
			return Type{}, &MismatchError{Left: a, Right: b}
		}
		elems := make([]Type, len(a.Elems))
		for i := range a.Elems {
			t, err := Unify(a.Elems[i], b.Elems[i], scope)
			if err != nil {
				return Type{}, &MismatchError{Left: a, Right: b}
			}
			elems[i] = t
		}
		return Type{Kind: a.Kind, Elems: elems}, nil

	case KindEnum, KindEntity:
		if !a.Equal(b) {
			return Type{}, &MismatchError{Left: a, Right: b}
		}
		return a, nil
	}

	return a, nil
}

func unifyVar(v, other Type, scope Scope) (Type, error) {
	other = resolve(other, scope)
	if other.Kind == KindVar && other.Name == v.Name {
		if bound, ok := scope[v.Name]; ok {
			return bound, nil
		}
		return v, nil
	}
	if scope == nil {
		return Type{}, fmt.Errorf("type variable '%s used without a scope", v.Name)
	}

	t := other
	if bound, ok := scope[v.Name]; ok {
		var err error
		if t, err = Unify(bound, other, scope); err != nil {
			return Type{}, err
		}
	}
	if occurs(v.Name, t, scope, map[string]bool{}) {
		return Type{}, &MismatchError{Left: v, Right: other}
	}
	scope[v.Name] = t
	return t, nil
}

// resolve follows variable-to-variable bindings until t is not a bound
// variable.
func resolve(t Type, scope Scope) Type {
	seen := map[string]bool{}
	for t.Kind == KindVar && !seen[t.Name] {
		seen[t.Name] = true
		bound, ok := scope[t.Name]
		if !ok || bound.Kind != KindVar {
			return t
		}
		t = bound
	}
	return t
}

// occurs reports whether variable name appears in t once the bindings in
// scope are followed. A binding that passes this check keeps scope acyclic.
func occurs(name string, t Type, scope Scope, seen map[string]bool) bool {
	if t.Kind == KindVar {
		if t.Name == name {
			return true
		}
		if seen[t.Name] {
			return false
		}
		seen[t.Name] = true
		bound, ok := scope[t.Name]
		return ok && occurs(name, bound, scope, seen)
	}
	for _, e := range t.Elems {
		if occurs(name, e, scope, seen) {
			return true
		}
	}
	return false
}

// declaredPrefix keeps the variables of a declared signature apart from
// the variables of the signature it is checked against.
const declaredPrefix = "d:"

func renameVars(t Type, prefix string) Type {
	if t.Kind == KindVar {
		return Var(prefix + t.Name)
	}
	if len(t.Elems) == 0 {
		return t
	}
	elems := make([]Type, len(t.Elems))
	for i, e := range t.Elems {
		elems[i] = renameVars(e, prefix)
	}
	t.Elems = elems
	return t
}

// IsCompatible reports whether a declared channel signature satisfies a
// required one. The declared signature may be longer than the required one;
// extra positions are ignored. A string that fails to parse makes the
// signatures incompatible. Type variables are bound consistently across all
// positions of one check; a variable of the declared signature never names
// the same variable as one of the required signature.
func IsCompatible(declared, required []string) bool {
	if len(declared) < len(required) {
		return false
	}
	scope := Scope{}
	for i, req := range required {
		rt, err := Parse(req)
		if err != nil {
			return false
		}
		dt, err := Parse(declared[i])
		if err != nil {
			return false
		}
		if _, err := Unify(rt, renameVars(dt, declaredPrefix), scope); err != nil {
			return false
		}
	}
	return true
}
