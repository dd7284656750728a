package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/device/values"
)

type schemaStore struct {
	q queryer
}

func (s schemaStore) GetByKind(ctx context.Context, kind string) (entities.SchemaRecord, error) {
	rec := entities.SchemaRecord{Kind: kind}
	err := s.q.QueryRowContext(ctx,
		`SELECT id, developer_version, approved_version FROM device_schemas WHERE kind = ?`, kind,
	).Scan(&rec.ID, &rec.DeveloperVersion, &rec.ApprovedVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.SchemaRecord{}, &entities.SchemaNotFoundError{Kind: kind}
	}
	if err != nil {
		return entities.SchemaRecord{}, fmt.Errorf("get schema %s: %w", kind, err)
	}

	rec.Types = emptySignatures()
	rec.Meta = emptyMetadata()
	rows, err := s.q.QueryContext(ctx,
		`SELECT channel_type, name, types, meta FROM device_schema_channels WHERE schema_id = ?`, rec.ID)
	if err != nil {
		return entities.SchemaRecord{}, fmt.Errorf("get channels of %s: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var class, name, typesJSON, metaJSON string
		if err := rows.Scan(&class, &name, &typesJSON, &metaJSON); err != nil {
			return entities.SchemaRecord{}, fmt.Errorf("scan channel of %s: %w", kind, err)
		}
		var sig []string
		if err := json.Unmarshal([]byte(typesJSON), &sig); err != nil {
			return entities.SchemaRecord{}, fmt.Errorf("decode types of %s.%s: %w", kind, name, err)
		}
		var meta entities.ChannelMetadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return entities.SchemaRecord{}, fmt.Errorf("decode metadata of %s.%s: %w", kind, name, err)
		}
		c := values.ChannelClass(class)
		rec.Types.ByClass(c)[name] = sig
		rec.Meta.ByClass(c)[name] = meta
	}
	if err := rows.Err(); err != nil {
		return entities.SchemaRecord{}, fmt.Errorf("read channels of %s: %w", kind, err)
	}
	return rec, nil
}

func (s schemaStore) Create(ctx context.Context, rec entities.SchemaRecord) (entities.SchemaRecord, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO device_schemas (kind, developer_version, approved_version) VALUES (?, ?, ?)`,
		rec.Kind, rec.DeveloperVersion, rec.ApprovedVersion)
	if err != nil {
		return entities.SchemaRecord{}, fmt.Errorf("create schema %s: %w", rec.Kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return entities.SchemaRecord{}, fmt.Errorf("create schema %s: %w", rec.Kind, err)
	}
	rec.ID = id

	if err := s.insertChannels(ctx, rec); err != nil {
		return entities.SchemaRecord{}, err
	}
	return rec, nil
}

func (s schemaStore) Update(ctx context.Context, rec entities.SchemaRecord, expectedDeveloperVersion int) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE device_schemas SET developer_version = ?, approved_version = ?
		 WHERE id = ? AND developer_version = ?`,
		rec.DeveloperVersion, rec.ApprovedVersion, rec.ID, expectedDeveloperVersion)
	if err != nil {
		return fmt.Errorf("update schema %s: %w", rec.Kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schema %s: %w", rec.Kind, err)
	}
	if n == 0 {
		return &entities.ConcurrentModificationError{Entity: "schema", Key: rec.Kind, ExpectedVersion: expectedDeveloperVersion}
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM device_schema_channels WHERE schema_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear channels of %s: %w", rec.Kind, err)
	}
	return s.insertChannels(ctx, rec)
}

func (s schemaStore) insertChannels(ctx context.Context, rec entities.SchemaRecord) error {
	for _, class := range values.ChannelClasses {
		sigs := rec.Types.ByClass(class)
		metas := rec.Meta.ByClass(class)
		for name, sig := range sigs {
			if sig == nil {
				sig = []string{}
			}
			typesJSON, err := json.Marshal(sig)
			if err != nil {
				return fmt.Errorf("encode types of %s.%s: %w", rec.Kind, name, err)
			}
			metaJSON, err := json.Marshal(normalizeMeta(metas[name]))
			if err != nil {
				return fmt.Errorf("encode metadata of %s.%s: %w", rec.Kind, name, err)
			}
			if _, err := s.q.ExecContext(ctx,
				`INSERT INTO device_schema_channels (schema_id, channel_type, name, types, meta) VALUES (?, ?, ?, ?, ?)`,
				rec.ID, string(class), name, string(typesJSON), string(metaJSON),
			); err != nil {
				return fmt.Errorf("insert channel %s.%s: %w", rec.Kind, name, err)
			}
		}
	}
	return nil
}

// GetRequiredSchemasByKinds implements ports.InterfaceLookup.
func (s schemaStore) GetRequiredSchemasByKinds(ctx context.Context, kinds []string) (map[string]entities.ChannelSignatures, error) {
	out := make(map[string]entities.ChannelSignatures, len(kinds))
	if len(kinds) == 0 {
		return out, nil
	}

	args := make([]any, len(kinds))
	for i, k := range kinds {
		args[i] = k
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT s.kind, c.channel_type, c.name, c.types
		 FROM device_schemas s
		 LEFT JOIN device_schema_channels c ON c.schema_id = s.id
		 WHERE s.kind IN (`+placeholders(len(kinds))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup interface schemas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind string
		var class, name, typesJSON sql.NullString
		if err := rows.Scan(&kind, &class, &name, &typesJSON); err != nil {
			return nil, fmt.Errorf("scan interface schema: %w", err)
		}
		sigs, ok := out[kind]
		if !ok {
			sigs = emptySignatures()
			out[kind] = sigs
		}
		if !class.Valid {
			continue
		}
		var sig []string
		if err := json.Unmarshal([]byte(typesJSON.String), &sig); err != nil {
			return nil, fmt.Errorf("decode types of %s.%s: %w", kind, name.String, err)
		}
		sigs.ByClass(values.ChannelClass(class.String))[name.String] = sig
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read interface schemas: %w", err)
	}
	return out, nil
}

func emptySignatures() entities.ChannelSignatures {
	return entities.ChannelSignatures{
		Triggers: map[string][]string{},
		Actions:  map[string][]string{},
		Queries:  map[string][]string{},
	}
}

func emptyMetadata() entities.ChannelMetadataSet {
	return entities.ChannelMetadataSet{
		Triggers: map[string]entities.ChannelMetadata{},
		Actions:  map[string]entities.ChannelMetadata{},
		Queries:  map[string]entities.ChannelMetadata{},
	}
}

func normalizeMeta(m entities.ChannelMetadata) entities.ChannelMetadata {
	if m.Args == nil {
		m.Args = []string{}
	}
	if m.Questions == nil {
		m.Questions = []string{}
	}
	return m
}
