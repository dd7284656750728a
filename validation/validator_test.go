package validation_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/reglet-dev/thingpedia-registry/registry"
	"github.com/reglet-dev/thingpedia-registry/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "main"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "main": {"type": "string", "minLength": 1}
  }
}`

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestSchemaValidator_Validate(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register("manifest", manifestSchema))
	validator := validation.NewSchemaValidator(reg)

	t.Run("valid document", func(t *testing.T) {
		err := validator.Validate("manifest", decode(t, `{"name":"pkg","main":"index.js","extra":true}`))
		assert.NoError(t, err)
	})

	t.Run("missing member", func(t *testing.T) {
		err := validator.Validate("manifest", decode(t, `{"name":"pkg"}`))
		require.Error(t, err)

		var docErr *validation.DocumentError
		require.True(t, errors.As(err, &docErr))
		assert.Equal(t, "manifest", docErr.Document)
		require.NotEmpty(t, docErr.Violations)
		assert.Contains(t, docErr.Error(), "main")
	})

	t.Run("wrong type reports location", func(t *testing.T) {
		err := validator.Validate("manifest", decode(t, `{"name":"pkg","main":7}`))
		var docErr *validation.DocumentError
		require.True(t, errors.As(err, &docErr))
		assert.Equal(t, "/main", docErr.Violations[0].Location)
	})

	t.Run("empty string rejected", func(t *testing.T) {
		err := validator.Validate("manifest", decode(t, `{"name":"","main":"index.js"}`))
		assert.Error(t, err)
	})

	t.Run("unknown document", func(t *testing.T) {
		err := validator.Validate("nope", decode(t, `{}`))
		assert.ErrorIs(t, err, validation.ErrUnknownDocument)
	})
}

func TestSchemaValidator_GeneratedSchema(t *testing.T) {
	type doc struct {
		Types []string          `json:"types,omitempty"`
		Auth  map[string]string `json:"auth,omitempty"`
	}

	reg := registry.NewRegistry()
	require.NoError(t, reg.Register("doc", doc{}))
	validator := validation.NewSchemaValidator(reg)

	assert.NoError(t, validator.Validate("doc", decode(t, `{"types":["a"],"other":1}`)))
	assert.NoError(t, validator.Validate("doc", decode(t, `{}`)))

	err := validator.Validate("doc", decode(t, `{"types":"a"}`))
	var docErr *validation.DocumentError
	require.True(t, errors.As(err, &docErr))
	assert.Equal(t, "/types", docErr.Violations[0].Location)
}
