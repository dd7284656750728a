package entities

import (
	"encoding/json"
	"slices"
	"sort"

	"github.com/reglet-dev/thingpedia-registry/device/values"
)

// Auth types accepted in a descriptor.
const (
	AuthNone    = "none"
	AuthOAuth2  = "oauth2"
	AuthBasic   = "basic"
	AuthBuiltin = "builtin"
)

// Interface tags with special meaning.
const (
	TagOnlineAccount = "online-account"
	TagDataSource    = "data-source"
)

// Descriptor is the parsed device interface document submitted by a
// developer. Members the registry does not interpret are kept in Extra and
// written back unchanged.
type Descriptor struct {
	Name        string                     `json:"name,omitempty"`
	Description string                     `json:"description,omitempty"`
	GlobalName  string                     `json:"global-name,omitempty"`
	Types       []string                   `json:"types"`
	ChildTypes  []string                   `json:"child_types"`
	Auth        *Auth                      `json:"auth,omitempty"`
	Params      map[string]json.RawMessage `json:"params"`
	Triggers    map[string]*Channel        `json:"triggers"`
	Actions     map[string]*Channel        `json:"actions"`
	Queries     map[string]*Channel        `json:"queries"`

	Extra map[string]json.RawMessage `json:"-"`
}

var descriptorKeys = keySet(
	"name", "description", "global-name", "types", "child_types",
	"auth", "params", "triggers", "actions", "queries",
)

type descriptorJSON Descriptor

// UnmarshalJSON decodes a descriptor keeping unknown members.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var plain descriptorJSON
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	extra, err := splitExtra(data, descriptorKeys)
	if err != nil {
		return err
	}
	*d = Descriptor(plain)
	d.Extra = extra
	return nil
}

// MarshalJSON encodes the descriptor including unknown members.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return mergeExtra(descriptorJSON(d), d.Extra)
}

// ApplyDefaults fills every optional collection with its empty value and
// sets the auth type to "none" when absent.
func (d *Descriptor) ApplyDefaults() {
	if d.Params == nil {
		d.Params = map[string]json.RawMessage{}
	}
	if d.Types == nil {
		d.Types = []string{}
	}
	if d.ChildTypes == nil {
		d.ChildTypes = []string{}
	}
	if d.Auth == nil {
		d.Auth = &Auth{Type: AuthNone}
	}
	if d.Triggers == nil {
		d.Triggers = map[string]*Channel{}
	}
	if d.Actions == nil {
		d.Actions = map[string]*Channel{}
	}
	if d.Queries == nil {
		d.Queries = map[string]*Channel{}
	}
}

// Channels returns the channel map for a class.
func (d *Descriptor) Channels(class values.ChannelClass) map[string]*Channel {
	switch class {
	case values.ChannelTrigger:
		return d.Triggers
	case values.ChannelAction:
		return d.Actions
	default:
		return d.Queries
	}
}

// HasType reports whether the descriptor declares the interface type.
func (d *Descriptor) HasType(t string) bool {
	return slices.Contains(d.Types, t)
}

// HasParam reports whether the descriptor declares a configuration param.
func (d *Descriptor) HasParam(name string) bool {
	_, ok := d.Params[name]
	return ok
}

// Signatures projects the channel type lists of the descriptor.
func (d *Descriptor) Signatures() ChannelSignatures {
	project := func(in map[string]*Channel) map[string][]string {
		out := make(map[string][]string, len(in))
		for name, ch := range in {
			out[name] = append([]string{}, ch.Schema...)
		}
		return out
	}
	return ChannelSignatures{
		Triggers: project(d.Triggers),
		Actions:  project(d.Actions),
		Queries:  project(d.Queries),
	}
}

// Metadata projects the per-channel documentation of the descriptor.
func (d *Descriptor) Metadata() ChannelMetadataSet {
	project := func(in map[string]*Channel) map[string]ChannelMetadata {
		out := make(map[string]ChannelMetadata, len(in))
		for name, ch := range in {
			out[name] = ch.Metadata()
		}
		return out
	}
	return ChannelMetadataSet{
		Triggers: project(d.Triggers),
		Actions:  project(d.Actions),
		Queries:  project(d.Queries),
	}
}

// SortedNames returns channel names in lexical order.
func SortedNames(channels map[string]*Channel) []string {
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Auth is the authentication block of a descriptor.
type Auth struct {
	Type  string                     `json:"type,omitempty"`
	Extra map[string]json.RawMessage `json:"-"`
}

type authJSON Auth

var authKeys = keySet("type")

// UnmarshalJSON decodes the auth block keeping provider-specific members.
func (a *Auth) UnmarshalJSON(data []byte) error {
	var plain authJSON
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	extra, err := splitExtra(data, authKeys)
	if err != nil {
		return err
	}
	*a = Auth(plain)
	a.Extra = extra
	return nil
}

// MarshalJSON encodes the auth block.
func (a Auth) MarshalJSON() ([]byte, error) {
	return mergeExtra(authJSON(a), a.Extra)
}

// Channel is a single trigger, action or query.
type Channel struct {
	Schema       []string `json:"schema"`
	Args         []string `json:"args,omitempty"`
	Params       []string `json:"params,omitempty"`
	Questions    []string `json:"questions,omitempty"`
	Examples     []string `json:"examples,omitempty"`
	Doc          string   `json:"doc,omitempty"`
	Label        string   `json:"label,omitempty"`
	Confirmation string   `json:"confirmation,omitempty"`
	Canonical    string   `json:"canonical,omitempty"`
	URL          string   `json:"url,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type channelJSON Channel

var channelKeys = keySet(
	"schema", "args", "params", "questions", "examples",
	"doc", "label", "confirmation", "canonical", "url",
)

// UnmarshalJSON decodes a channel keeping unknown members such as
// "poll-interval".
func (c *Channel) UnmarshalJSON(data []byte) error {
	var plain channelJSON
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	extra, err := splitExtra(data, channelKeys)
	if err != nil {
		return err
	}
	*c = Channel(plain)
	c.Extra = extra
	return nil
}

// MarshalJSON encodes the channel.
func (c Channel) MarshalJSON() ([]byte, error) {
	return mergeExtra(channelJSON(c), c.Extra)
}

// ArgNames returns the declared argument names, preferring params over args.
func (c *Channel) ArgNames() []string {
	if c.Params != nil {
		return c.Params
	}
	if c.Args != nil {
		return c.Args
	}
	return []string{}
}

// Metadata derives the documentation stored alongside the signature.
func (c *Channel) Metadata() ChannelMetadata {
	label := c.Confirmation
	if label == "" {
		label = c.Label
	}
	questions := c.Questions
	if questions == nil {
		questions = []string{}
	}
	return ChannelMetadata{
		Doc:       c.Doc,
		Label:     label,
		Canonical: c.Canonical,
		Args:      append([]string{}, c.ArgNames()...),
		Questions: append([]string{}, questions...),
	}
}
