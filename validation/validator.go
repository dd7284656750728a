// Package validation validates decoded documents against the schemas kept
// in a registry.SchemaRegistry.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reglet-dev/thingpedia-registry/registry"
)

// ErrUnknownDocument is returned when no schema is registered for a document.
var ErrUnknownDocument = errors.New("unknown document schema")

// Violation is a single schema failure.
type Violation struct {
	// Location is a JSON pointer into the validated document.
	Location string
	Message  string
}

func (v Violation) String() string {
	loc := v.Location
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + v.Message
}

// DocumentError lists the schema violations of a document.
type DocumentError struct {
	Document   string
	Violations []Violation
}

func (e *DocumentError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s does not match its schema: %s", e.Document, strings.Join(parts, "; "))
}

// SchemaValidator implements DocumentValidator with compiled schemas cached
// per document name.
type SchemaValidator struct {
	registry registry.SchemaRegistry
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator creates a validator backed by reg.
func NewSchemaValidator(reg registry.SchemaRegistry) *SchemaValidator {
	return &SchemaValidator{
		registry: reg,
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Validate implements DocumentValidator.
func (v *SchemaValidator) Validate(document string, value any) error {
	schema, err := v.schema(document)
	if err != nil {
		return err
	}

	err = schema.Validate(value)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate %s: %w", document, err)
	}
	return &DocumentError{Document: document, Violations: leafViolations(ve)}
}

func (v *SchemaValidator) schema(document string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.compiled[document]; ok {
		return s, nil
	}

	raw, ok := v.registry.GetSchema(document)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, document)
	}

	url := "mem://schemas/" + document + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", document, err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", document, err)
	}
	v.compiled[document] = s
	return s, nil
}

// leafViolations flattens the cause tree to its leaves, which carry the
// specific messages.
func leafViolations(ve *jsonschema.ValidationError) []Violation {
	var out []Violation
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, Violation{Location: e.InstanceLocation, Message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}
