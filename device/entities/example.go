package entities

import (
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/thingpedia-registry/types"
)

// ExampleRecord is one natural-language utterance paired with the action
// invocation it denotes.
type ExampleRecord struct {
	ID         int64
	SchemaID   int64
	IsBase     bool
	Utterance  string
	TargetJSON string
}

// MeasureValue is an expansion value for a measurement parameter.
type MeasureValue struct {
	Value float64
	Unit  string
}

// Expansion is one concrete utterance produced from a template together
// with the parameter values it was built from.
type Expansion struct {
	Utterance   string
	Assignments map[string]any
}

// TargetArg is one argument of a serialized action invocation.
type TargetArg struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// ActionTarget is the invocation an example utterance maps to.
type ActionTarget struct {
	Action TargetAction `json:"action"`
}

// TargetAction names the action and its arguments.
type TargetAction struct {
	Name string      `json:"name"`
	Args []TargetArg `json:"args"`
}

// UnsupportedArgumentError is returned when an assignment has a type that
// cannot be serialized into an invocation.
type UnsupportedArgumentError struct {
	Arg  string
	Type types.Type
}

func (e *UnsupportedArgumentError) Error() string {
	return fmt.Sprintf("argument %s has unsupported type %s", e.Arg, e.Type)
}

// NewActionTarget builds the invocation of action on the device published
// under alias. Arguments follow the order of argNames; names without an
// assignment are omitted.
func NewActionTarget(alias, action string, argNames []string, argTypes map[string]types.Type, assignments map[string]any) (ActionTarget, error) {
	args := make([]TargetArg, 0, len(assignments))
	for _, name := range argNames {
		value, ok := assignments[name]
		if !ok {
			continue
		}
		t := argTypes[name]
		switch t.Kind {
		case types.KindString:
			args = append(args, TargetArg{Name: name, Type: "String", Value: value})
		case types.KindNumber:
			args = append(args, TargetArg{Name: name, Type: "Number", Value: value})
		case types.KindBoolean:
			args = append(args, TargetArg{Name: name, Type: "Bool", Value: value})
		case types.KindMeasure:
			m, ok := value.(MeasureValue)
			if !ok {
				return ActionTarget{}, fmt.Errorf("argument %s: expected a measure value, got %T", name, value)
			}
			args = append(args, TargetArg{Name: name, Type: "Measure", Value: m.Value, Unit: m.Unit})
		default:
			return ActionTarget{}, &UnsupportedArgumentError{Arg: name, Type: t}
		}
	}
	return ActionTarget{Action: TargetAction{Name: "tt:" + alias + "." + action, Args: args}}, nil
}

// JSON serializes the target.
func (t ActionTarget) JSON() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
