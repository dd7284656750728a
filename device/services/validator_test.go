package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/thingpedia-registry/device/dto"
	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/device/services"
	"github.com/reglet-dev/thingpedia-registry/device/values"
)

const fullCodeDescriptor = `{
  "name": "Example Device",
  "description": "This is your Example Device",
  "auth": {"type": "basic"},
  "params": {"username": ["Username","text"], "password": ["Password","password"]},
  "triggers": {
    "source": {"url": "https://example.com/poll", "args": ["time","measurement"], "schema": ["Date","Measure(m)"]}
  },
  "actions": {
    "setpower": {"url": "https://example.com/post", "args": ["power"], "schema": ["Boolean"]}
  },
  "queries": {
    "getpower": {"url": "https://example.com/get", "args": ["power"], "schema": ["Boolean"]}
  }
}`

func fullCodeSubmission(code string) dto.DeviceSubmissionDTO {
	return dto.DeviceSubmissionDTO{
		Name:        "Example",
		Description: "An example device",
		PrimaryKind: "com.example.device",
		Code:        code,
		FullCode:    true,
	}
}

func newValidator(t *testing.T) *services.Validator {
	t.Helper()
	docs, err := services.NewDocumentValidator()
	require.NoError(t, err)
	return services.NewValidator(
		services.WithDocumentValidator(docs),
		services.WithValidatorLogger(testLogger()),
	)
}

func requireCode(t *testing.T, err error, code entities.ValidationCode) *entities.ValidationError {
	t.Helper()
	require.Error(t, err)
	var ve *entities.ValidationError
	require.True(t, errors.As(err, &ve), "expected a validation error, got %v", err)
	assert.Equal(t, code, ve.Code, ve.Error())
	return ve
}

func TestValidator_AcceptsFullCodeDescriptor(t *testing.T) {
	v := newValidator(t)

	d, err := v.Validate(context.Background(), fullCodeSubmission(fullCodeDescriptor), staticLookup{})
	require.NoError(t, err)
	assert.Equal(t, "Example Device", d.Name)
	assert.Equal(t, []string{}, d.Types)
	assert.Equal(t, []string{}, d.ChildTypes)
}

func TestValidator_DefaultsAuthToNone(t *testing.T) {
	v := newValidator(t)

	d, err := v.Validate(context.Background(), fullCodeSubmission(`{"name":"n","description":"d"}`), staticLookup{})
	require.NoError(t, err)
	assert.Equal(t, entities.AuthNone, d.Auth.Type)
	assert.Empty(t, d.Triggers)
	assert.Empty(t, d.Actions)
	assert.Empty(t, d.Queries)
}

func TestValidator_MissingFields(t *testing.T) {
	v := newValidator(t)

	for _, field := range []string{"name", "description", "code", "primary_kind"} {
		t.Run(field, func(t *testing.T) {
			sub := fullCodeSubmission(fullCodeDescriptor)
			switch field {
			case "name":
				sub.Name = ""
			case "description":
				sub.Description = "  "
			case "code":
				sub.Code = ""
			case "primary_kind":
				sub.PrimaryKind = ""
			}
			_, err := v.Validate(context.Background(), sub, staticLookup{})
			ve := requireCode(t, err, entities.CodeMissingField)
			assert.Equal(t, field, ve.Field)
		})
	}
}

func TestValidator_RejectsBadDescriptors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want entities.ValidationCode
	}{
		{
			name: "not json",
			code: `{"name":`,
			want: entities.CodeMalformedDescriptor,
		},
		{
			name: "not an object",
			code: `["a"]`,
			want: entities.CodeMalformedDescriptor,
		},
		{
			name: "wrong member type",
			code: `{"name":"n","description":"d","types":"online-account"}`,
			want: entities.CodeMalformedDescriptor,
		},
		{
			name: "unknown auth type",
			code: `{"name":"n","description":"d","auth":{"type":"kerberos"}}`,
			want: entities.CodeInvalidAuthType,
		},
		{
			name: "empty auth type",
			code: `{"name":"n","description":"d","auth":{}}`,
			want: entities.CodeInvalidAuthType,
		},
		{
			name: "basic auth without credentials",
			code: `{"name":"n","description":"d","auth":{"type":"basic"},"params":{"username":["Username","text"]}}`,
			want: entities.CodeMissingCredentialParams,
		},
		{
			name: "online account and data source",
			code: `{"name":"n","description":"d","types":["online-account","data-source"]}`,
			want: entities.CodeConflictingTypeTags,
		},
		{
			name: "channel without schema",
			code: `{"name":"n","description":"d","actions":{"a":{"url":"u"}}}`,
			want: entities.CodeMissingSchema,
		},
		{
			name: "args count",
			code: `{"name":"n","description":"d","actions":{"a":{"url":"u","args":["x","y"],"schema":["String"]}}}`,
			want: entities.CodeArityMismatch,
		},
		{
			name: "params count",
			code: `{"name":"n","description":"d","queries":{"q":{"url":"u","params":[],"schema":["String"]}}}`,
			want: entities.CodeArityMismatch,
		},
		{
			name: "trigger questions count",
			code: `{"name":"n","description":"d","triggers":{"t":{"url":"u","args":["x"],"questions":["a","b"],"schema":["String"]}}}`,
			want: entities.CodeArityMismatch,
		},
		{
			name: "bad type string",
			code: `{"name":"n","description":"d","actions":{"a":{"url":"u","schema":["Measure(C"]}}}`,
			want: entities.CodeInvalidTypeSyntax,
		},
		{
			name: "missing descriptor name",
			code: `{"description":"d"}`,
			want: entities.CodeMissingField,
		},
		{
			name: "missing url",
			code: `{"name":"n","description":"d","triggers":{"t":{"schema":[]}}}`,
			want: entities.CodeMissingChannelURL,
		},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), fullCodeSubmission(tt.code), staticLookup{})
			requireCode(t, err, tt.want)
			assert.ErrorIs(t, err, entities.ErrValidation)
		})
	}
}

func TestValidator_ReportsChannelName(t *testing.T) {
	v := newValidator(t)
	code := `{"name":"n","description":"d","actions":{"setpower":{"url":"u","args":["a","b"],"schema":["Boolean"]}}}`

	_, err := v.Validate(context.Background(), fullCodeSubmission(code), staticLookup{})
	ve := requireCode(t, err, entities.CodeArityMismatch)
	assert.Equal(t, "setpower", ve.Channel)
	assert.Equal(t, "actions.setpower.args", ve.Field)
}

func TestValidator_CredentialCheckOnlyForFullCode(t *testing.T) {
	v := newValidator(t)
	sub := fullCodeSubmission(`{"auth":{"type":"basic"}}`)
	sub.FullCode = false
	sub.Package = []byte("PK")

	_, err := v.Validate(context.Background(), sub, staticLookup{})
	assert.NoError(t, err)
}

func TestValidator_Package(t *testing.T) {
	v := newValidator(t)

	t.Run("required when not full code", func(t *testing.T) {
		sub := fullCodeSubmission(`{}`)
		sub.FullCode = false
		_, err := v.Validate(context.Background(), sub, staticLookup{})
		requireCode(t, err, entities.CodeMissingPackage)
	})

	t.Run("not required for builtin namespace", func(t *testing.T) {
		sub := fullCodeSubmission(`{}`)
		sub.FullCode = false
		sub.PrimaryKind = "org.thingpedia.builtin.thingengine"
		_, err := v.Validate(context.Background(), sub, staticLookup{})
		assert.NoError(t, err)
	})

	t.Run("custom reserved namespace", func(t *testing.T) {
		reserved, err := values.NewReservedKinds("edu.example.*")
		require.NoError(t, err)
		custom := services.NewValidator(services.WithReservedKinds(reserved))

		sub := fullCodeSubmission(`{}`)
		sub.FullCode = false
		sub.PrimaryKind = "edu.example.builtin"
		_, err = custom.Validate(context.Background(), sub, staticLookup{})
		assert.NoError(t, err)
	})

	t.Run("size limit", func(t *testing.T) {
		small := services.NewValidator(services.WithMaxPackageBytes(4))
		sub := fullCodeSubmission(`{}`)
		sub.FullCode = false
		sub.Package = []byte("0123456789")
		_, err := small.Validate(context.Background(), sub, staticLookup{})
		ve := requireCode(t, err, entities.CodeMissingPackage)
		assert.Contains(t, ve.Message, "limit")
	})
}

func TestValidator_InterfaceTypes(t *testing.T) {
	thermostat := entities.ChannelSignatures{
		Queries: map[string][]string{"get_temperature": {"Measure(C)"}},
		Actions: map[string][]string{"set_target": {"Measure"}},
	}
	lookup := staticLookup{schemas: map[string]entities.ChannelSignatures{
		"thermostat":     thermostat,
		"online-account": {},
	}}
	v := newValidator(t)

	base := func(types string, queries string) string {
		return `{"name":"n","description":"d","global-name":"mythermo","types":` + types + `,
		  "actions":{"set_target":{"url":"u","schema":["Measure(C)","String"]}},
		  "queries":{"get_temperature":{"url":"u","schema":` + queries + `}}}`
	}

	t.Run("compatible", func(t *testing.T) {
		_, err := v.Validate(context.Background(), fullCodeSubmission(base(`["thermostat","online-account"]`, `["Measure(C)"]`)), lookup)
		assert.NoError(t, err)
	})

	t.Run("alias may reference itself", func(t *testing.T) {
		_, err := v.Validate(context.Background(), fullCodeSubmission(base(`["mythermo"]`, `["Measure(C)"]`)), lookup)
		assert.NoError(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := v.Validate(context.Background(), fullCodeSubmission(base(`["toaster"]`, `["Measure(C)"]`)), lookup)
		ve := requireCode(t, err, entities.CodeUnknownInterfaceType)
		assert.Equal(t, "toaster", ve.InterfaceType)
	})

	t.Run("incompatible", func(t *testing.T) {
		_, err := v.Validate(context.Background(), fullCodeSubmission(base(`["thermostat"]`, `["Measure(F)"]`)), lookup)
		ve := requireCode(t, err, entities.CodeIncompatibleSchema)
		assert.Equal(t, "get_temperature", ve.Channel)
		assert.Equal(t, "thermostat", ve.InterfaceType)
	})

	t.Run("missing required channel", func(t *testing.T) {
		code := `{"name":"n","description":"d","types":["thermostat"],
		  "queries":{"get_temperature":{"url":"u","schema":["Measure(C)"]}}}`
		_, err := v.Validate(context.Background(), fullCodeSubmission(code), lookup)
		ve := requireCode(t, err, entities.CodeMissingRequiredChannel)
		assert.Equal(t, "set_target", ve.Channel)
	})

	t.Run("self-referential variable bindings are incompatible", func(t *testing.T) {
		generic := staticLookup{schemas: map[string]entities.ChannelSignatures{
			"relay": {Actions: map[string][]string{"do": {"'a", "'b", "'a"}}},
		}}
		code := `{"name":"n","description":"d","types":["relay"],
		  "actions":{"do":{"url":"u","schema":["Array('b)","Array('a)","'b"]}}}`
		_, err := v.Validate(context.Background(), fullCodeSubmission(code), generic)
		ve := requireCode(t, err, entities.CodeIncompatibleSchema)
		assert.Equal(t, "do", ve.Channel)
	})

	t.Run("generic declared channel", func(t *testing.T) {
		generic := staticLookup{schemas: map[string]entities.ChannelSignatures{
			"relay": {Actions: map[string][]string{"do": {"'a", "String"}}},
		}}
		code := `{"name":"n","description":"d","types":["relay"],
		  "actions":{"do":{"url":"u","schema":["Number","'a"]}}}`
		_, err := v.Validate(context.Background(), fullCodeSubmission(code), generic)
		assert.NoError(t, err)
	})

	t.Run("lookup failure is not a validation error", func(t *testing.T) {
		broken := staticLookup{err: errors.New("db down")}
		_, err := v.Validate(context.Background(), fullCodeSubmission(base(`["thermostat"]`, `["Measure(C)"]`)), broken)
		require.Error(t, err)
		assert.NotErrorIs(t, err, entities.ErrValidation)
	})
}

func TestValidator_FirstFailureWins(t *testing.T) {
	v := newValidator(t)
	// Invalid auth and a bad type string: auth is checked first.
	code := `{"name":"n","description":"d","auth":{"type":"magic"},"actions":{"a":{"url":"u","schema":["Nope"]}}}`

	_, err := v.Validate(context.Background(), fullCodeSubmission(code), staticLookup{})
	requireCode(t, err, entities.CodeInvalidAuthType)
}
