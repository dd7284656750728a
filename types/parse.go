package types

import (
	"fmt"
	"strings"
	"unicode"
)

// SyntaxError reports a type string that does not follow the grammar.
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid type %q at offset %d: %s", e.Input, e.Pos, e.Msg)
}

// Parse converts a type string such as "Measure(C)" or "Array(String)"
// into its AST.
func Parse(s string) (Type, error) {
	p := &typeParser{input: s}
	p.skipSpace()
	t, err := p.parseType()
	if err != nil {
		return Type{}, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return Type{}, p.errorf("unexpected trailing input")
	}
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level tables.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseSignature parses every position of a channel signature.
func ParseSignature(schema []string) ([]Type, error) {
	out := make([]Type, len(schema))
	for i, s := range schema {
		t, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

type typeParser struct {
	input string
	pos   int
}

func (p *typeParser) errorf(format string, args ...any) error {
	return &SyntaxError{Input: p.input, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == ':' || c == '.' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && isIdentByte(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *typeParser) parseType() (Type, error) {
	p.skipSpace()
	switch p.peek() {
	case 0:
		return Type{}, p.errorf("expected type")
	case '\'':
		p.pos++
		name := p.ident()
		if name == "" {
			return Type{}, p.errorf("expected type variable name")
		}
		return Var(name), nil
	case '(':
		p.pos++
		members, err := p.parseTypeList()
		if err != nil {
			return Type{}, err
		}
		return Tuple(members...), nil
	}

	name := p.ident()
	if name == "" {
		return Type{}, p.errorf("expected type name")
	}

	switch name {
	case "Measure":
		return p.parseMeasure()
	case "Enum":
		return p.parseEnum()
	case "Entity":
		if err := p.expect('('); err != nil {
			return Type{}, err
		}
		entity := p.ident()
		if entity == "" {
			return Type{}, p.errorf("expected entity type name")
		}
		if err := p.expect(')'); err != nil {
			return Type{}, err
		}
		return Entity(entity), nil
	case "Array":
		if err := p.expect('('); err != nil {
			return Type{}, err
		}
		elems, err := p.parseTypeList()
		if err != nil {
			return Type{}, err
		}
		if len(elems) != 1 {
			return Type{}, p.errorf("Array takes exactly one type argument")
		}
		return Array(elems[0]), nil
	case "Map":
		if err := p.expect('('); err != nil {
			return Type{}, err
		}
		elems, err := p.parseTypeList()
		if err != nil {
			return Type{}, err
		}
		if len(elems) != 2 {
			return Type{}, p.errorf("Map takes exactly two type arguments")
		}
		return Map(elems[0], elems[1]), nil
	}

	kind, ok := primitiveNames[name]
	if !ok {
		return Type{}, p.errorf("unknown type %q", name)
	}
	return Type{Kind: kind}, nil
}

// parseTypeList parses "T1, T2, ...)" after an opening parenthesis.
func (p *typeParser) parseTypeList() ([]Type, error) {
	var out []Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or ')'")
		}
	}
}

func (p *typeParser) parseMeasure() (Type, error) {
	p.skipSpace()
	if p.peek() != '(' {
		return Measure(""), nil
	}
	p.pos++
	unit := p.ident()
	if err := p.expect(')'); err != nil {
		return Type{}, err
	}
	if unit == "_" {
		unit = ""
	}
	return Measure(unit), nil
}

func (p *typeParser) parseEnum() (Type, error) {
	if err := p.expect('('); err != nil {
		return Type{}, err
	}
	var entries []string
	for {
		entry := p.ident()
		if entry == "" {
			return Type{}, p.errorf("expected enum entry")
		}
		entries = append(entries, strings.TrimSpace(entry))
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return Enum(entries...), nil
		default:
			return Type{}, p.errorf("expected ',' or ')'")
		}
	}
}
