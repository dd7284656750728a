// Package expand fills utterance templates with sample parameter values.
//
// A template names parameters with $name or ${name}; $$ is a literal
// dollar sign. Every distinct placeholder is replaced by each sample value
// for its type, and the combinations are enumerated in a fixed order up to
// a per-template cap.
package expand

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/types"
)

// DefaultMaxPerTemplate caps the combinations produced from one template.
const DefaultMaxPerTemplate = 16

var (
	// ErrUnknownPlaceholder is returned for a placeholder with no declared argument.
	ErrUnknownPlaceholder = errors.New("unknown placeholder")
	// ErrUnsupportedType is returned for an argument type with no sample values.
	ErrUnsupportedType = errors.New("no sample values for type")
	// ErrUnterminatedPlaceholder is returned for "${" without a closing brace.
	ErrUnterminatedPlaceholder = errors.New("unterminated placeholder")
)

// TemplateError locates an expansion failure.
type TemplateError struct {
	Template string
	Arg      string
	Err      error
}

func (e *TemplateError) Error() string {
	if e.Arg == "" {
		return fmt.Sprintf("template %q: %v", e.Template, e.Err)
	}
	return fmt.Sprintf("template %q: $%s: %v", e.Template, e.Arg, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// sample is one candidate value with its rendering in an utterance.
type sample struct {
	text  string
	value any
}

// Option configures an Expander.
type Option func(*Expander)

// WithMaxPerTemplate sets the combination cap. Non-positive values are ignored.
func WithMaxPerTemplate(n int) Option {
	return func(e *Expander) {
		if n > 0 {
			e.maxPerTemplate = n
		}
	}
}

// WithStrings replaces the sample strings.
func WithStrings(values ...string) Option {
	return func(e *Expander) {
		if len(values) > 0 {
			e.strings = values
		}
	}
}

// WithNumbers replaces the sample numbers, also used as measurement magnitudes.
func WithNumbers(values ...float64) Option {
	return func(e *Expander) {
		if len(values) > 0 {
			e.numbers = values
		}
	}
}

// Expander is the default template expander.
type Expander struct {
	maxPerTemplate int
	strings        []string
	numbers        []float64
}

// New creates an Expander.
func New(opts ...Option) *Expander {
	e := &Expander{
		maxPerTemplate: DefaultMaxPerTemplate,
		strings:        []string{"hello", "good morning"},
		numbers:        []float64{1, 42},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand implements ports.Expander. Templates without placeholders produce
// nothing; any template error aborts the whole call.
func (e *Expander) Expand(templates []string, argTypes map[string]types.Type) ([]entities.Expansion, error) {
	var out []entities.Expansion
	for _, tmpl := range templates {
		segments, err := scan(tmpl)
		if err != nil {
			return nil, &TemplateError{Template: tmpl, Err: err}
		}

		args := placeholders(segments)
		if len(args) == 0 {
			continue
		}

		choices := make([][]sample, len(args))
		for i, name := range args {
			t, ok := argTypes[name]
			if !ok {
				return nil, &TemplateError{Template: tmpl, Arg: name, Err: ErrUnknownPlaceholder}
			}
			values := e.samples(t)
			if len(values) == 0 {
				return nil, &TemplateError{Template: tmpl, Arg: name, Err: fmt.Errorf("%w %s", ErrUnsupportedType, t)}
			}
			choices[i] = values
		}

		for _, combo := range product(choices, e.maxPerTemplate) {
			out = append(out, render(segments, args, combo))
		}
	}
	return out, nil
}

func (e *Expander) samples(t types.Type) []sample {
	switch t.Kind {
	case types.KindString:
		out := make([]sample, len(e.strings))
		for i, s := range e.strings {
			out[i] = sample{text: strconv.Quote(s), value: s}
		}
		return out
	case types.KindNumber:
		out := make([]sample, len(e.numbers))
		for i, n := range e.numbers {
			out[i] = sample{text: formatNumber(n), value: n}
		}
		return out
	case types.KindBoolean:
		return []sample{{text: "on", value: true}, {text: "off", value: false}}
	case types.KindMeasure:
		if t.IsGenericMeasure() {
			return nil
		}
		out := make([]sample, len(e.numbers))
		for i, n := range e.numbers {
			out[i] = sample{
				text:  formatNumber(n) + " " + t.Unit,
				value: entities.MeasureValue{Value: n, Unit: t.Unit},
			}
		}
		return out
	default:
		return nil
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// segment is literal text, or a placeholder when arg is set.
type segment struct {
	text string
	arg  string
}

func scan(tmpl string) ([]segment, error) {
	var segments []segment
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			segments = append(segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		if c != '$' || i+1 == len(tmpl) {
			lit.WriteByte(c)
			i++
			continue
		}

		next := tmpl[i+1]
		switch {
		case next == '$':
			lit.WriteByte('$')
			i += 2
		case next == '{':
			end := strings.IndexByte(tmpl[i+2:], '}')
			if end < 0 {
				return nil, ErrUnterminatedPlaceholder
			}
			name := tmpl[i+2 : i+2+end]
			if !isIdent(name) {
				return nil, fmt.Errorf("invalid placeholder name %q", name)
			}
			flush()
			segments = append(segments, segment{arg: name})
			i += end + 3
		case isIdentStart(next):
			j := i + 2
			for j < len(tmpl) && isIdentPart(tmpl[j]) {
				j++
			}
			flush()
			segments = append(segments, segment{arg: tmpl[i+1 : j]})
			i = j
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return segments, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

// placeholders lists distinct argument names in order of first use.
func placeholders(segments []segment) []string {
	var names []string
	seen := make(map[string]bool)
	for _, s := range segments {
		if s.arg != "" && !seen[s.arg] {
			seen[s.arg] = true
			names = append(names, s.arg)
		}
	}
	return names
}

// product enumerates combinations with the last position varying fastest.
func product(choices [][]sample, limit int) [][]sample {
	var out [][]sample
	idx := make([]int, len(choices))
	for len(out) < limit {
		combo := make([]sample, len(choices))
		for i, c := range choices {
			combo[i] = c[idx[i]]
		}
		out = append(out, combo)

		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(choices[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out
}

func render(segments []segment, args []string, combo []sample) entities.Expansion {
	byName := make(map[string]sample, len(args))
	assignments := make(map[string]any, len(args))
	for i, name := range args {
		byName[name] = combo[i]
		assignments[name] = combo[i].value
	}

	var b strings.Builder
	for _, s := range segments {
		if s.arg == "" {
			b.WriteString(s.text)
			continue
		}
		b.WriteString(byName[s.arg].text)
	}
	return entities.Expansion{Utterance: b.String(), Assignments: assignments}
}
