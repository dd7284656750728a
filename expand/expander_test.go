package expand_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/thingpedia-registry/device/entities"
	"github.com/reglet-dev/thingpedia-registry/expand"
	"github.com/reglet-dev/thingpedia-registry/types"
)

func utterances(exps []entities.Expansion) []string {
	out := make([]string, len(exps))
	for i, e := range exps {
		out[i] = e.Utterance
	}
	return out
}

func TestExpand_SingleParameter(t *testing.T) {
	e := expand.New()

	exps, err := e.Expand([]string{"post $status on twitter"}, map[string]types.Type{"status": types.String})
	require.NoError(t, err)
	assert.Equal(t, []string{`post "hello" on twitter`, `post "good morning" on twitter`}, utterances(exps))
	assert.Equal(t, map[string]any{"status": "hello"}, exps[0].Assignments)
}

func TestExpand_TypedSamples(t *testing.T) {
	e := expand.New()
	argTypes := map[string]types.Type{
		"temp":  types.Measure("C"),
		"power": types.Boolean,
		"count": types.Number,
	}

	exps, err := e.Expand([]string{"set to ${temp}", "turn $power", "repeat $count times"}, argTypes)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"set to 1 C", "set to 42 C",
		"turn on", "turn off",
		"repeat 1 times", "repeat 42 times",
	}, utterances(exps))
	assert.Equal(t, entities.MeasureValue{Value: 42, Unit: "C"}, exps[1].Assignments["temp"])
	assert.Equal(t, false, exps[3].Assignments["power"])
	assert.Equal(t, 1.0, exps[4].Assignments["count"])
}

func TestExpand_Combinations(t *testing.T) {
	argTypes := map[string]types.Type{"a": types.Boolean, "b": types.Number}

	exps, err := expand.New().Expand([]string{"$a $b $a"}, argTypes)
	require.NoError(t, err)
	assert.Equal(t, []string{"on 1 on", "on 42 on", "off 1 off", "off 42 off"}, utterances(exps))

	capped, err := expand.New(expand.WithMaxPerTemplate(3)).Expand([]string{"$a $b"}, argTypes)
	require.NoError(t, err)
	assert.Len(t, capped, 3)
}

func TestExpand_Options(t *testing.T) {
	e := expand.New(expand.WithStrings("x"), expand.WithNumbers(7))

	exps, err := e.Expand([]string{"$s $n"}, map[string]types.Type{"s": types.String, "n": types.Number})
	require.NoError(t, err)
	assert.Equal(t, []string{`"x" 7`}, utterances(exps))
}

func TestExpand_LiteralTemplates(t *testing.T) {
	exps, err := expand.New().Expand([]string{"turn it on", "costs $$5", "ends with $"}, nil)
	require.NoError(t, err)
	assert.Empty(t, exps)
}

func TestExpand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		argTypes map[string]types.Type
		want     error
	}{
		{
			name:     "unknown placeholder",
			template: "play $song",
			want:     expand.ErrUnknownPlaceholder,
		},
		{
			name:     "generic measure",
			template: "set $v",
			argTypes: map[string]types.Type{"v": types.Measure("")},
			want:     expand.ErrUnsupportedType,
		},
		{
			name:     "entity",
			template: "call $who",
			argTypes: map[string]types.Type{"who": types.Entity("tt:contact")},
			want:     expand.ErrUnsupportedType,
		},
		{
			name:     "unterminated",
			template: "call ${who",
			want:     expand.ErrUnterminatedPlaceholder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expand.New().Expand([]string{tt.template}, tt.argTypes)
			require.ErrorIs(t, err, tt.want)

			var te *expand.TemplateError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.template, te.Template)
		})
	}
}
