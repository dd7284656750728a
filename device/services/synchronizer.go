package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/device/ports"
)

// SyncResult holds the schema records written for a descriptor.
type SyncResult struct {
	Primary        entities.SchemaRecord
	PrimaryCreated bool
	// Alias is nil when the descriptor has no global name.
	Alias        *entities.SchemaRecord
	AliasCreated bool
}

// Synchronizer keeps the schema records of a descriptor's primary kind and
// alias in step with the descriptor.
type Synchronizer struct {
	logger *slog.Logger
}

// NewSynchronizer creates a synchronizer.
func NewSynchronizer(logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{logger: logger}
}

// Sync upserts the schema of kind and, when the descriptor has a global
// name, the schema of the alias. Both receive the same channel maps and are
// versioned independently.
func (s *Synchronizer) Sync(ctx context.Context, store ports.SchemaStore, kind string, d *entities.Descriptor) (SyncResult, error) {
	sigs := d.Signatures()
	meta := d.Metadata()

	primary, created, err := s.upsertVersioned(ctx, store, kind, sigs, meta)
	if err != nil {
		return SyncResult{}, err
	}
	result := SyncResult{Primary: primary, PrimaryCreated: created}

	if d.GlobalName == "" {
		return result, nil
	}

	alias, created, err := s.upsertVersioned(ctx, store, d.GlobalName, sigs, meta)
	if err != nil {
		return SyncResult{}, err
	}
	result.Alias = &alias
	result.AliasCreated = created
	return result, nil
}

// upsertVersioned bumps both counters of an existing record, or creates the
// record at version 0.
func (s *Synchronizer) upsertVersioned(
	ctx context.Context,
	store ports.SchemaStore,
	kind string,
	sigs entities.ChannelSignatures,
	meta entities.ChannelMetadataSet,
) (entities.SchemaRecord, bool, error) {
	existing, err := store.GetByKind(ctx, kind)
	switch {
	case err == nil:
		next := existing.NextVersion(sigs, meta)
		if err := store.Update(ctx, next, existing.DeveloperVersion); err != nil {
			return entities.SchemaRecord{}, false, fmt.Errorf("update schema %s: %w", kind, err)
		}
		s.logger.Debug("schema updated", "kind", kind, "version", next.DeveloperVersion)
		return next, false, nil

	case errors.Is(err, entities.ErrSchemaNotFound):
		rec, err := store.Create(ctx, entities.SchemaRecord{
			Kind:             kind,
			DeveloperVersion: 0,
			ApprovedVersion:  0,
			Types:            sigs,
			Meta:             meta,
		})
		if err != nil {
			return entities.SchemaRecord{}, false, fmt.Errorf("create schema %s: %w", kind, err)
		}
		s.logger.Debug("schema created", "kind", kind)
		return rec, true, nil

	default:
		return entities.SchemaRecord{}, false, fmt.Errorf("load schema %s: %w", kind, err)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
