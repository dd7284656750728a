package registry_test

import (
	"encoding/json"
	"testing"

	"github.com/reglet-dev/thingpedia-registry/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleDoc struct {
	Name  string   `json:"name" jsonschema:"required"`
	Tags  []string `json:"tags,omitempty"`
	Count int      `json:"count,omitempty"`
}

func TestRegistry_RegisterStruct(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register("sample", sampleDoc{}))

	raw, ok := reg.GetSchema("sample")
	require.True(t, ok)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &schema))

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$id")
	assert.Equal(t, []any{"name"}, schema["required"])
	assert.NotEqual(t, false, schema["additionalProperties"])

	props := schema["properties"].(map[string]any)
	assert.Equal(t, "array", props["tags"].(map[string]any)["type"])
	assert.Equal(t, "integer", props["count"].(map[string]any)["type"])
}

func TestRegistry_StrictMode(t *testing.T) {
	reg := registry.NewRegistry(registry.WithStrictMode(true))
	require.NoError(t, reg.Register("sample", &sampleDoc{}))

	raw, _ := reg.GetSchema("sample")
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &schema))
	assert.Equal(t, false, schema["additionalProperties"])
}

func TestRegistry_RegisterRawAndDuplicates(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register("manifest", `{"type":"object","required":["name"]}`))
	require.NoError(t, reg.Register("map", map[string]any{"type": "string"}))

	err := reg.Register("manifest", `{}`)
	assert.Error(t, err)

	assert.Error(t, reg.Register("broken", `{not json`))
	assert.Error(t, reg.Register("number", 42))

	assert.Equal(t, []string{"manifest", "map"}, reg.List())
}
