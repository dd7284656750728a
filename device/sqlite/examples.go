package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
)

// exampleBatchSize keeps multi-row inserts under SQLite's bound parameter limit.
const exampleBatchSize = 200

type exampleStore struct {
	q queryer
}

func (s exampleStore) DeleteBySchema(ctx context.Context, schemaID int64) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM examples WHERE schema_id = ?`, schemaID); err != nil {
		return fmt.Errorf("delete examples of schema %d: %w", schemaID, err)
	}
	return nil
}

func (s exampleStore) CreateMany(ctx context.Context, examples []entities.ExampleRecord) error {
	for start := 0; start < len(examples); start += exampleBatchSize {
		batch := examples[start:min(start+exampleBatchSize, len(examples))]

		var b strings.Builder
		b.WriteString(`INSERT INTO examples (schema_id, is_base, utterance, target_json) VALUES `)
		args := make([]any, 0, len(batch)*4)
		for i, ex := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(?, ?, ?, ?)")
			args = append(args, ex.SchemaID, boolToInt(ex.IsBase), ex.Utterance, ex.TargetJSON)
		}
		if _, err := s.q.ExecContext(ctx, b.String(), args...); err != nil {
			return fmt.Errorf("insert examples: %w", err)
		}
	}
	return nil
}

func (s exampleStore) ListBySchema(ctx context.Context, schemaID int64) ([]entities.ExampleRecord, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, schema_id, is_base, utterance, target_json FROM examples WHERE schema_id = ? ORDER BY id`, schemaID)
	if err != nil {
		return nil, fmt.Errorf("list examples of schema %d: %w", schemaID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []entities.ExampleRecord
	for rows.Next() {
		var ex entities.ExampleRecord
		var base int
		if err := rows.Scan(&ex.ID, &ex.SchemaID, &base, &ex.Utterance, &ex.TargetJSON); err != nil {
			return nil, fmt.Errorf("scan example: %w", err)
		}
		ex.IsBase = base != 0
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list examples of schema %d: %w", schemaID, err)
	}
	return out, nil
}
