// Package ports defines the interfaces the device registry depends on.
package ports

import (
	"context"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
)

// SchemaStore persists versioned schema records.
type SchemaStore interface {
	// GetByKind returns the record for kind or a *entities.SchemaNotFoundError.
	GetByKind(ctx context.Context, kind string) (entities.SchemaRecord, error)

	// Create inserts a new record and returns it with its ID set.
	Create(ctx context.Context, rec entities.SchemaRecord) (entities.SchemaRecord, error)

	// Update replaces the record and its channel maps. The write only
	// succeeds if the stored developer version still equals
	// expectedDeveloperVersion.
	Update(ctx context.Context, rec entities.SchemaRecord, expectedDeveloperVersion int) error
}

// InterfaceLookup resolves abstract interface types to the channel
// signatures they require.
type InterfaceLookup interface {
	// GetRequiredSchemasByKinds returns the signatures of every known kind.
	// Unknown kinds are absent from the result.
	GetRequiredSchemasByKinds(ctx context.Context, kinds []string) (map[string]entities.ChannelSignatures, error)
}

// DeviceStore persists device records and their code history.
type DeviceStore interface {
	// Get returns a device by ID or a *entities.DeviceNotFoundError.
	Get(ctx context.Context, id int64) (entities.DeviceRecord, error)

	// GetByPrimaryKind returns a device by kind or a *entities.DeviceNotFoundError.
	GetByPrimaryKind(ctx context.Context, kind string) (entities.DeviceRecord, error)

	// GetCanonicalSourceByID returns the descriptor of the latest developer version.
	GetCanonicalSourceByID(ctx context.Context, id int64) (string, error)

	// List returns every device ordered by ID.
	List(ctx context.Context) ([]entities.DeviceRecord, error)

	// Create inserts a device with its interface kinds and code at its
	// developer version.
	Create(ctx context.Context, rec entities.DeviceRecord, code string) (entities.DeviceRecord, error)

	// Update replaces a device, compare-and-set on the developer version,
	// and appends code for the new developer version.
	Update(ctx context.Context, rec entities.DeviceRecord, expectedDeveloperVersion int, code string) error
}

// ExampleStore persists generated examples.
type ExampleStore interface {
	DeleteBySchema(ctx context.Context, schemaID int64) error
	CreateMany(ctx context.Context, examples []entities.ExampleRecord) error
	ListBySchema(ctx context.Context, schemaID int64) ([]entities.ExampleRecord, error)
}

// Stores groups the stores bound to one transaction.
type Stores interface {
	Schemas() SchemaStore
	Interfaces() InterfaceLookup
	Devices() DeviceStore
	Examples() ExampleStore
}

// UnitOfWork runs fn inside a single transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Transact(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
