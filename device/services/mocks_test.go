package services_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSchemaStore struct {
	mock.Mock
}

func (m *mockSchemaStore) GetByKind(ctx context.Context, kind string) (entities.SchemaRecord, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).(entities.SchemaRecord), args.Error(1)
}

func (m *mockSchemaStore) Create(ctx context.Context, rec entities.SchemaRecord) (entities.SchemaRecord, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(entities.SchemaRecord), args.Error(1)
}

func (m *mockSchemaStore) Update(ctx context.Context, rec entities.SchemaRecord, expected int) error {
	args := m.Called(ctx, rec, expected)
	return args.Error(0)
}

type mockExampleStore struct {
	mock.Mock
}

func (m *mockExampleStore) DeleteBySchema(ctx context.Context, schemaID int64) error {
	return m.Called(ctx, schemaID).Error(0)
}

func (m *mockExampleStore) CreateMany(ctx context.Context, examples []entities.ExampleRecord) error {
	return m.Called(ctx, examples).Error(0)
}

func (m *mockExampleStore) ListBySchema(ctx context.Context, schemaID int64) ([]entities.ExampleRecord, error) {
	args := m.Called(ctx, schemaID)
	return args.Get(0).([]entities.ExampleRecord), args.Error(1)
}

type mockExpander struct {
	mock.Mock
}

func (m *mockExpander) Expand(templates []string, argTypes map[string]types.Type) ([]entities.Expansion, error) {
	args := m.Called(templates, argTypes)
	out, _ := args.Get(0).([]entities.Expansion)
	return out, args.Error(1)
}

// staticLookup serves interface signatures from a map.
type staticLookup struct {
	schemas map[string]entities.ChannelSignatures
	err     error
}

func (l staticLookup) GetRequiredSchemasByKinds(_ context.Context, kinds []string) (map[string]entities.ChannelSignatures, error) {
	if l.err != nil {
		return nil, l.err
	}
	out := make(map[string]entities.ChannelSignatures)
	for _, k := range kinds {
		if s, ok := l.schemas[k]; ok {
			out[k] = s
		}
	}
	return out, nil
}
