package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
)

type deviceStore struct {
	q queryer
}

const deviceColumns = `id, primary_kind, global_name, owner, name, description, fullcode, developer_version, approved_version`

func scanDevice(row interface{ Scan(...any) error }) (entities.DeviceRecord, error) {
	var (
		rec        entities.DeviceRecord
		globalName sql.NullString
		fullcode   int
		approved   sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.PrimaryKind, &globalName, &rec.Owner, &rec.Name,
		&rec.Description, &fullcode, &rec.DeveloperVersion, &approved); err != nil {
		return entities.DeviceRecord{}, err
	}
	rec.GlobalName = globalName.String
	rec.FullCode = fullcode != 0
	if approved.Valid {
		v := int(approved.Int64)
		rec.ApprovedVersion = &v
	}
	return rec, nil
}

func (s deviceStore) Get(ctx context.Context, id int64) (entities.DeviceRecord, error) {
	rec, err := scanDevice(s.q.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return entities.DeviceRecord{}, &entities.DeviceNotFoundError{ID: id}
	}
	if err != nil {
		return entities.DeviceRecord{}, fmt.Errorf("get device %d: %w", id, err)
	}
	return s.withKinds(ctx, rec)
}

func (s deviceStore) GetByPrimaryKind(ctx context.Context, kind string) (entities.DeviceRecord, error) {
	rec, err := scanDevice(s.q.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE primary_kind = ?`, kind))
	if errors.Is(err, sql.ErrNoRows) {
		return entities.DeviceRecord{}, &entities.DeviceNotFoundError{Kind: kind}
	}
	if err != nil {
		return entities.DeviceRecord{}, fmt.Errorf("get device %s: %w", kind, err)
	}
	return s.withKinds(ctx, rec)
}

func (s deviceStore) withKinds(ctx context.Context, rec entities.DeviceRecord) (entities.DeviceRecord, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT kind, is_child FROM device_kinds WHERE device_id = ? ORDER BY rowid`, rec.ID)
	if err != nil {
		return entities.DeviceRecord{}, fmt.Errorf("get kinds of device %d: %w", rec.ID, err)
	}
	defer func() { _ = rows.Close() }()

	rec.Kinds = []string{}
	rec.ChildKinds = []string{}
	for rows.Next() {
		var kind string
		var child int
		if err := rows.Scan(&kind, &child); err != nil {
			return entities.DeviceRecord{}, fmt.Errorf("scan kind of device %d: %w", rec.ID, err)
		}
		if child != 0 {
			rec.ChildKinds = append(rec.ChildKinds, kind)
		} else {
			rec.Kinds = append(rec.Kinds, kind)
		}
	}
	if err := rows.Err(); err != nil {
		return entities.DeviceRecord{}, fmt.Errorf("read kinds of device %d: %w", rec.ID, err)
	}
	return rec, nil
}

func (s deviceStore) GetCanonicalSourceByID(ctx context.Context, id int64) (string, error) {
	var code string
	err := s.q.QueryRowContext(ctx,
		`SELECT c.code FROM device_code_versions c
		 JOIN devices d ON d.id = c.device_id AND d.developer_version = c.version
		 WHERE d.id = ?`, id,
	).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &entities.DeviceNotFoundError{ID: id}
	}
	if err != nil {
		return "", fmt.Errorf("get source of device %d: %w", id, err)
	}
	return code, nil
}

func (s deviceStore) List(ctx context.Context) ([]entities.DeviceRecord, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	var out []entities.DeviceRecord
	for rows.Next() {
		rec, err := scanDevice(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, rec)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	// Kinds are loaded after the cursor is closed; a transaction has a
	// single connection.
	for i := range out {
		if out[i], err = s.withKinds(ctx, out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s deviceStore) Create(ctx context.Context, rec entities.DeviceRecord, code string) (entities.DeviceRecord, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO devices (primary_kind, global_name, owner, name, description, fullcode, developer_version, approved_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.PrimaryKind, nullString(rec.GlobalName), rec.Owner, rec.Name, rec.Description,
		boolToInt(rec.FullCode), rec.DeveloperVersion, nullInt(rec.ApprovedVersion))
	if err != nil {
		if isUniqueViolation(err) {
			return entities.DeviceRecord{}, &entities.KindTakenError{Kind: rec.PrimaryKind}
		}
		return entities.DeviceRecord{}, fmt.Errorf("create device %s: %w", rec.PrimaryKind, err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return entities.DeviceRecord{}, fmt.Errorf("create device %s: %w", rec.PrimaryKind, err)
	}

	if err := s.writeKinds(ctx, rec); err != nil {
		return entities.DeviceRecord{}, err
	}
	if err := s.appendCode(ctx, rec.ID, rec.DeveloperVersion, code); err != nil {
		return entities.DeviceRecord{}, err
	}
	return rec, nil
}

func (s deviceStore) Update(ctx context.Context, rec entities.DeviceRecord, expectedDeveloperVersion int, code string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE devices SET primary_kind = ?, global_name = ?, owner = ?, name = ?, description = ?, fullcode = ?,
		   developer_version = ?, approved_version = ?
		 WHERE id = ? AND developer_version = ?`,
		rec.PrimaryKind, nullString(rec.GlobalName), rec.Owner, rec.Name, rec.Description, boolToInt(rec.FullCode),
		rec.DeveloperVersion, nullInt(rec.ApprovedVersion), rec.ID, expectedDeveloperVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return &entities.KindTakenError{Kind: rec.PrimaryKind}
		}
		return fmt.Errorf("update device %d: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update device %d: %w", rec.ID, err)
	}
	if n == 0 {
		return &entities.ConcurrentModificationError{Entity: "device", Key: rec.PrimaryKind, ExpectedVersion: expectedDeveloperVersion}
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM device_kinds WHERE device_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear kinds of device %d: %w", rec.ID, err)
	}
	if err := s.writeKinds(ctx, rec); err != nil {
		return err
	}
	return s.appendCode(ctx, rec.ID, rec.DeveloperVersion, code)
}

func (s deviceStore) writeKinds(ctx context.Context, rec entities.DeviceRecord) error {
	write := func(kinds []string, child bool) error {
		for _, kind := range kinds {
			if _, err := s.q.ExecContext(ctx,
				`INSERT OR IGNORE INTO device_kinds (device_id, kind, is_child) VALUES (?, ?, ?)`,
				rec.ID, kind, boolToInt(child),
			); err != nil {
				return fmt.Errorf("insert kind %s of device %d: %w", kind, rec.ID, err)
			}
		}
		return nil
	}
	if err := write(rec.Kinds, false); err != nil {
		return err
	}
	return write(rec.ChildKinds, true)
}

func (s deviceStore) appendCode(ctx context.Context, id int64, version int, code string) error {
	if _, err := s.q.ExecContext(ctx,
		`INSERT INTO device_code_versions (device_id, version, code) VALUES (?, ?, ?)`,
		id, version, code,
	); err != nil {
		if isUniqueViolation(err) {
			return &entities.ConcurrentModificationError{Entity: "device code", Key: fmt.Sprint(id), ExpectedVersion: version}
		}
		return fmt.Errorf("store code of device %d version %d: %w", id, version, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
