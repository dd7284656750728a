// Package catalog loads the abstract interfaces a registry is seeded with.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"

	"github.com/goccy/go-yaml"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/device/ports"
	"github.com/reglet-dev/thingpedia-registry/device/services"
	"github.com/reglet-dev/thingpedia-registry/types"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is a list of abstract interfaces.
type Catalog struct {
	Interfaces []Interface `yaml:"interfaces"`
}

// Interface is one abstract interface. Devices list its kind in their types
// and must then implement its channels.
type Interface struct {
	Kind        string             `yaml:"kind"`
	Description string             `yaml:"description,omitempty"`
	Triggers    map[string]Channel `yaml:"triggers,omitempty"`
	Actions     map[string]Channel `yaml:"actions,omitempty"`
	Queries     map[string]Channel `yaml:"queries,omitempty"`
}

// Channel is the catalog form of a channel.
type Channel struct {
	Schema       []string `yaml:"schema"`
	Args         []string `yaml:"args,omitempty"`
	Doc          string   `yaml:"doc,omitempty"`
	Confirmation string   `yaml:"confirmation,omitempty"`
	Canonical    string   `yaml:"canonical,omitempty"`
	Questions    []string `yaml:"questions,omitempty"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Decode(bytes.NewReader(defaultCatalog))
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	root, err := os.OpenRoot(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open directory of %q: %w", path, err)
	}
	defer func() { _ = root.Close() }()

	file, err := root.Open(filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	return Decode(file)
}

// Decode parses and validates a catalog document.
func Decode(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding catalog YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

// Validate checks that kinds are unique and every channel type parses.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Interfaces))
	var errs []error
	for _, iface := range c.Interfaces {
		if iface.Kind == "" {
			errs = append(errs, errors.New("interface without kind"))
			continue
		}
		if seen[iface.Kind] {
			errs = append(errs, fmt.Errorf("duplicate interface %s", iface.Kind))
		}
		seen[iface.Kind] = true

		for class, channels := range iface.classes() {
			for name, ch := range channels {
				if len(ch.Args) != len(ch.Schema) {
					errs = append(errs, fmt.Errorf("%s: %s %s: %d args for %d types", iface.Kind, class, name, len(ch.Args), len(ch.Schema)))
				}
				for _, s := range ch.Schema {
					if _, err := types.Parse(s); err != nil {
						errs = append(errs, fmt.Errorf("%s: %s %s: %w", iface.Kind, class, name, err))
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (i Interface) classes() map[string]map[string]Channel {
	return map[string]map[string]Channel{
		"trigger": i.Triggers,
		"action":  i.Actions,
		"query":   i.Queries,
	}
}

// Descriptor converts the interface into a device descriptor.
func (i Interface) Descriptor() *entities.Descriptor {
	d := &entities.Descriptor{
		Name:        i.Kind,
		Description: i.Description,
		Triggers:    toChannels(i.Triggers),
		Actions:     toChannels(i.Actions),
		Queries:     toChannels(i.Queries),
	}
	d.ApplyDefaults()
	return d
}

func toChannels(in map[string]Channel) map[string]*entities.Channel {
	out := make(map[string]*entities.Channel, len(in))
	for name, ch := range in {
		out[name] = &entities.Channel{
			Schema:       ch.Schema,
			Args:         ch.Args,
			Doc:          ch.Doc,
			Confirmation: ch.Confirmation,
			Canonical:    ch.Canonical,
			Questions:    ch.Questions,
		}
	}
	return out
}

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Created   []string
	Updated   []string
	Unchanged []string
}

// Seed writes the schema of every interface in one transaction. Interfaces
// whose stored signatures and metadata already match are left untouched so
// their versions do not move.
func Seed(ctx context.Context, uow ports.UnitOfWork, c *Catalog, logger *slog.Logger) (SeedResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sync := services.NewSynchronizer(logger)

	var result SeedResult
	err := uow.Transact(ctx, func(ctx context.Context, stores ports.Stores) error {
		result = SeedResult{}
		for _, iface := range c.Interfaces {
			d := iface.Descriptor()

			existing, err := stores.Schemas().GetByKind(ctx, iface.Kind)
			switch {
			case err == nil:
				if reflect.DeepEqual(existing.Types, d.Signatures()) && reflect.DeepEqual(existing.Meta, d.Metadata()) {
					result.Unchanged = append(result.Unchanged, iface.Kind)
					continue
				}
			case !errors.Is(err, entities.ErrSchemaNotFound):
				return fmt.Errorf("load schema %s: %w", iface.Kind, err)
			}

			res, err := sync.Sync(ctx, stores.Schemas(), iface.Kind, d)
			if err != nil {
				return err
			}
			if res.PrimaryCreated {
				result.Created = append(result.Created, iface.Kind)
			} else {
				result.Updated = append(result.Updated, iface.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed catalog: %w", err)
	}
	logger.Info("catalog seeded",
		"created", len(result.Created), "updated", len(result.Updated), "unchanged", len(result.Unchanged))
	return result, nil
}
