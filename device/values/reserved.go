package values

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultReservedKindPattern matches the builtin namespace, whose devices
// ship with the platform and never carry an uploaded package.
const DefaultReservedKindPattern = "org.thingpedia.builtin.*"

// ReservedKinds matches device kinds against glob patterns.
type ReservedKinds struct {
	patterns []string
}

// NewReservedKinds validates and stores the given glob patterns.
func NewReservedKinds(patterns ...string) (ReservedKinds, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return ReservedKinds{}, fmt.Errorf("invalid reserved kind pattern %q", p)
		}
	}
	return ReservedKinds{patterns: append([]string(nil), patterns...)}, nil
}

// DefaultReservedKinds returns the builtin namespace matcher.
func DefaultReservedKinds() ReservedKinds {
	return ReservedKinds{patterns: []string{DefaultReservedKindPattern}}
}

// Contains reports whether kind falls in a reserved namespace.
func (r ReservedKinds) Contains(kind string) bool {
	for _, p := range r.patterns {
		if ok, _ := doublestar.Match(p, kind); ok {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns.
func (r ReservedKinds) Patterns() []string {
	return append([]string(nil), r.patterns...)
}
