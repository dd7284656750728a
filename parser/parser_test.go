package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/thingpedia-registry/parser"
)

func TestForPath(t *testing.T) {
	p, err := parser.ForPath("device.JSON")
	require.NoError(t, err)
	assert.IsType(t, &parser.JSONDescriptorParser{}, p)

	p, err = parser.ForPath("dir/device.yml")
	require.NoError(t, err)
	assert.IsType(t, &parser.YamlDescriptorParser{}, p)

	_, err = parser.ForPath("device.toml")
	assert.Error(t, err)
}

func TestJSONDescriptorParser(t *testing.T) {
	p := parser.NewJSONDescriptorParser()

	out, err := p.Parse([]byte("{\n  \"name\": \"Lamp\",\n  \"types\": []\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Lamp","types":[]}`, string(out))

	_, err = p.Parse([]byte(`["not", "an", "object"]`))
	assert.Error(t, err)
	_, err = p.Parse([]byte(`{"name": `))
	assert.Error(t, err)
	_, err = p.Parse(nil)
	assert.Error(t, err)
}

func TestYamlDescriptorParser(t *testing.T) {
	p := parser.NewYamlDescriptorParser()

	doc := `
name: Lamp
types: [light-bulb]
auth:
  type: none
defaults: &q
  schema: ["Enum(on,off)"]
  args: [power]
queries:
  power: *q
actions: {}
enabled: true
retries: 3
ratio: 0.5
missing: null
`
	out, err := p.Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"Lamp","types":["light-bulb"],"auth":{"type":"none"},`+
			`"defaults":{"schema":["Enum(on,off)"],"args":["power"]},`+
			`"queries":{"power":{"schema":["Enum(on,off)"],"args":["power"]}},`+
			`"actions":{},"enabled":true,"retries":3,"ratio":0.5,"missing":null}`,
		string(out))
}

func TestYamlDescriptorParser_Errors(t *testing.T) {
	p := parser.NewYamlDescriptorParser()

	for name, doc := range map[string]string{
		"sequence root": "- a\n- b\n",
		"scalar root":   "lamp\n",
		"empty":         "",
		"complex key":   "? [a, b]\n: c\n",
		"bad syntax":    "name: [unterminated\n",
		"merge key":     "base: &b {x: 1}\nchild:\n  <<: *b\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}
