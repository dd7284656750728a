package ports

import (
	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/types"
)

// Expander turns utterance templates into concrete example utterances.
type Expander interface {
	// Expand returns the expansions of templates for the given parameter
	// types. An error aborts expansion of the whole template set.
	Expand(templates []string, argTypes map[string]types.Type) ([]entities.Expansion, error)
}
