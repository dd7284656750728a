package entities

import "github.com/reglet-dev/thingpedia-registry/device/values"

// ChannelSignatures maps channel names to their ordered type strings, one
// map per channel class.
type ChannelSignatures struct {
	Triggers map[string][]string `json:"triggers"`
	Actions  map[string][]string `json:"actions"`
	Queries  map[string][]string `json:"queries"`
}

// ByClass returns the signature map of a class.
func (s ChannelSignatures) ByClass(class values.ChannelClass) map[string][]string {
	switch class {
	case values.ChannelTrigger:
		return s.Triggers
	case values.ChannelAction:
		return s.Actions
	default:
		return s.Queries
	}
}

// ChannelMetadata is the per-channel documentation kept with a schema.
type ChannelMetadata struct {
	Doc       string   `json:"doc,omitempty"`
	Label     string   `json:"label,omitempty"`
	Canonical string   `json:"canonical,omitempty"`
	Args      []string `json:"args"`
	Questions []string `json:"questions"`
}

// ChannelMetadataSet groups metadata by channel class.
type ChannelMetadataSet struct {
	Triggers map[string]ChannelMetadata `json:"triggers"`
	Actions  map[string]ChannelMetadata `json:"actions"`
	Queries  map[string]ChannelMetadata `json:"queries"`
}

// ByClass returns the metadata map of a class.
func (m ChannelMetadataSet) ByClass(class values.ChannelClass) map[string]ChannelMetadata {
	switch class {
	case values.ChannelTrigger:
		return m.Triggers
	case values.ChannelAction:
		return m.Actions
	default:
		return m.Queries
	}
}

// SchemaRecord is the versioned, normalized projection of a descriptor
// stored under one kind.
type SchemaRecord struct {
	ID               int64
	Kind             string
	DeveloperVersion int
	ApprovedVersion  int
	Types            ChannelSignatures
	Meta             ChannelMetadataSet
}

// NextVersion returns a copy of r with both counters advanced and the
// channel maps replaced.
func (r SchemaRecord) NextVersion(types ChannelSignatures, meta ChannelMetadataSet) SchemaRecord {
	next := r
	next.DeveloperVersion = r.DeveloperVersion + 1
	next.ApprovedVersion = r.ApprovedVersion + 1
	next.Types = types
	next.Meta = meta
	return next
}
