// Package types implements the channel type grammar used by device
// descriptors and the unification check between declared and required
// channel signatures.
package types

import (
	"strings"
)

// Kind identifies the shape of a Type.
type Kind int

const (
	KindAny Kind = iota
	KindBoolean
	KindString
	KindNumber
	KindDate
	KindTime
	KindLocation
	KindPicture
	KindPhoneNumber
	KindEmailAddress
	KindURL
	KindUsername
	KindHashtag
	KindObject
	KindResource
	KindMeasure
	KindEnum
	KindArray
	KindMap
	KindTuple
	KindEntity
	KindVar
)

var primitiveNames = map[string]Kind{
	"Any":          KindAny,
	"Boolean":      KindBoolean,
	"Bool":         KindBoolean,
	"String":       KindString,
	"Number":       KindNumber,
	"Date":         KindDate,
	"Time":         KindTime,
	"Location":     KindLocation,
	"Picture":      KindPicture,
	"PhoneNumber":  KindPhoneNumber,
	"EmailAddress": KindEmailAddress,
	"URL":          KindURL,
	"Username":     KindUsername,
	"Hashtag":      KindHashtag,
	"Object":       KindObject,
	"Resource":     KindResource,
}

var kindNames = map[Kind]string{
	KindAny:          "Any",
	KindBoolean:      "Boolean",
	KindString:       "String",
	KindNumber:       "Number",
	KindDate:         "Date",
	KindTime:         "Time",
	KindLocation:     "Location",
	KindPicture:      "Picture",
	KindPhoneNumber:  "PhoneNumber",
	KindEmailAddress: "EmailAddress",
	KindURL:          "URL",
	KindUsername:     "Username",
	KindHashtag:      "Hashtag",
	KindObject:       "Object",
	KindResource:     "Resource",
}

// Type is a node of the type AST.
//
// Unit is set for measurements (empty means the generic measurement).
// Entries holds enum values. Name holds the entity type or variable name.
// Elems holds the element type of an array, the key and value of a map,
// or the members of a tuple.
type Type struct {
	Kind    Kind
	Unit    string
	Entries []string
	Name    string
	Elems   []Type
}

// Convenience constructors.
var (
	Any     = Type{Kind: KindAny}
	Boolean = Type{Kind: KindBoolean}
	String  = Type{Kind: KindString}
	Number  = Type{Kind: KindNumber}
)

// Measure returns a measurement type. An empty unit is the generic measurement.
func Measure(unit string) Type {
	return Type{Kind: KindMeasure, Unit: unit}
}

// Enum returns an enumeration of the given entries.
func Enum(entries ...string) Type {
	return Type{Kind: KindEnum, Entries: entries}
}

// Array returns an array of elem.
func Array(elem Type) Type {
	return Type{Kind: KindArray, Elems: []Type{elem}}
}

// Map returns a map from key to value.
func Map(key, value Type) Type {
	return Type{Kind: KindMap, Elems: []Type{key, value}}
}

// Tuple returns a tuple of the given members.
func Tuple(members ...Type) Type {
	return Type{Kind: KindTuple, Elems: members}
}

// Entity returns an entity type with the given name.
func Entity(name string) Type {
	return Type{Kind: KindEntity, Name: name}
}

// Var returns a type variable.
func Var(name string) Type {
	return Type{Kind: KindVar, Name: name}
}

// IsMeasure reports whether t is a measurement, generic or concrete.
func (t Type) IsMeasure() bool {
	return t.Kind == KindMeasure
}

// IsGenericMeasure reports whether t is a measurement with no unit.
func (t Type) IsGenericMeasure() bool {
	return t.Kind == KindMeasure && t.Unit == ""
}

// Equal reports structural equality.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind || t.Unit != other.Unit || t.Name != other.Name {
		return false
	}
	if len(t.Entries) != len(other.Entries) || len(t.Elems) != len(other.Elems) {
		return false
	}
	for i := range t.Entries {
		if t.Entries[i] != other.Entries[i] {
			return false
		}
	}
	for i := range t.Elems {
		if !t.Elems[i].Equal(other.Elems[i]) {
			return false
		}
	}
	return true
}

// String renders t in the grammar accepted by Parse.
func (t Type) String() string {
	switch t.Kind {
	case KindMeasure:
		return "Measure(" + t.Unit + ")"
	case KindEnum:
		return "Enum(" + strings.Join(t.Entries, ",") + ")"
	case KindArray:
		return "Array(" + t.Elems[0].String() + ")"
	case KindMap:
		return "Map(" + t.Elems[0].String() + "," + t.Elems[1].String() + ")"
	case KindTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ",") + ")"
	case KindEntity:
		return "Entity(" + t.Name + ")"
	case KindVar:
		return "'" + t.Name
	default:
		return kindNames[t.Kind]
	}
}
