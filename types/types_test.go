package types_test

import (
	"errors"
	"testing"

	"github.com/reglet-dev/thingpedia-registry/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  types.Type
	}{
		{"String", types.String},
		{"Bool", types.Boolean},
		{"Boolean", types.Boolean},
		{" Number ", types.Number},
		{"Measure(C)", types.Measure("C")},
		{"Measure(m)", types.Measure("m")},
		{"Measure", types.Measure("")},
		{"Measure()", types.Measure("")},
		{"Measure(_)", types.Measure("")},
		{"Enum(on,off)", types.Enum("on", "off")},
		{"Enum( on , off )", types.Enum("on", "off")},
		{"Array(String)", types.Array(types.String)},
		{"Map(String,Array(Number))", types.Map(types.String, types.Array(types.Number))},
		{"(String,Measure(kg))", types.Tuple(types.String, types.Measure("kg"))},
		{"Entity(tt:picture)", types.Entity("tt:picture")},
		{"'a", types.Var("a")},
		{"Array('a)", types.Array(types.Var("a"))},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := types.Parse(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"Strin",
		"Measure(C",
		"Enum()",
		"Array(String,Number)",
		"Map(String)",
		"Entity()",
		"String)",
		"'",
		"Array(Foo)",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := types.Parse(input)
			require.Error(t, err)

			var syntaxErr *types.SyntaxError
			assert.True(t, errors.As(err, &syntaxErr))
			assert.Equal(t, input, syntaxErr.Input)
		})
	}
}

func TestString_RoundTripsThroughParse(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"Measure(C)", "Enum(on,off)", "Map(String,Array(Number))", "(String,Boolean)", "Entity(tt:username)", "'t"} {
		assert.Equal(t, s, types.MustParse(s).String())
	}
}

func TestUnify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b    string
		want    string
		wantErr bool
	}{
		{name: "identical primitives", a: "String", b: "String", want: "String"},
		{name: "different primitives", a: "String", b: "Number", wantErr: true},
		{name: "any on the left", a: "Any", b: "Number", want: "Number"},
		{name: "any on the right", a: "Picture", b: "Any", want: "Picture"},
		{name: "generic measure left", a: "Measure", b: "Measure(C)", want: "Measure(C)"},
		{name: "generic measure right", a: "Measure(kg)", b: "Measure()", want: "Measure(kg)"},
		{name: "same units", a: "Measure(m)", b: "Measure(m)", want: "Measure(m)"},
		{name: "different units", a: "Measure(m)", b: "Measure(C)", wantErr: true},
		{name: "measure vs number", a: "Measure(m)", b: "Number", wantErr: true},
		{name: "arrays element-wise", a: "Array(Measure)", b: "Array(Measure(C))", want: "Array(Measure(C))"},
		{name: "arrays mismatched", a: "Array(String)", b: "Array(Number)", wantErr: true},
		{name: "identical enums", a: "Enum(on,off)", b: "Enum(on,off)", want: "Enum(on,off)"},
		{name: "different enums", a: "Enum(on,off)", b: "Enum(open,closed)", wantErr: true},
		{name: "entities", a: "Entity(tt:picture)", b: "Entity(tt:picture)", want: "Entity(tt:picture)"},
		{name: "tuple arity", a: "(String,Number)", b: "(String)", wantErr: true},
		{name: "type variable binds", a: "'a", b: "Number", want: "Number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.Unify(types.MustParse(tt.a), types.MustParse(tt.b), types.Scope{})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrTypeMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestUnify_TypeVariableBindsConsistently(t *testing.T) {
	t.Parallel()

	scope := types.Scope{}
	_, err := types.Unify(types.Var("a"), types.String, scope)
	require.NoError(t, err)

	_, err = types.Unify(types.Var("a"), types.Number, scope)
	assert.ErrorIs(t, err, types.ErrTypeMismatch)

	got, err := types.Unify(types.Var("a"), types.String, scope)
	require.NoError(t, err)
	assert.True(t, types.String.Equal(got))
}

func TestUnify_RejectsSelfContainingBinding(t *testing.T) {
	t.Parallel()

	scope := types.Scope{}
	_, err := types.Unify(types.Var("a"), types.Array(types.Var("b")), scope)
	require.NoError(t, err)

	_, err = types.Unify(types.Var("b"), types.Array(types.Var("a")), scope)
	assert.ErrorIs(t, err, types.ErrTypeMismatch)

	_, err = types.Unify(types.Var("a"), types.Array(types.Var("a")), types.Scope{})
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestUnify_VariableChains(t *testing.T) {
	t.Parallel()

	scope := types.Scope{}
	_, err := types.Unify(types.Var("a"), types.Var("b"), scope)
	require.NoError(t, err)

	_, err = types.Unify(types.Var("b"), types.Var("a"), scope)
	require.NoError(t, err)

	_, err = types.Unify(types.Var("b"), types.String, scope)
	require.NoError(t, err)

	got, err := types.Unify(types.Var("a"), types.String, scope)
	require.NoError(t, err)
	assert.True(t, types.String.Equal(got))
}

func TestIsCompatible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		declared []string
		required []string
		want     bool
	}{
		{name: "exact", declared: []string{"String", "Number"}, required: []string{"String", "Number"}, want: true},
		{name: "extra declared positions ignored", declared: []string{"String", "Number", "Date"}, required: []string{"String"}, want: true},
		{name: "declared shorter", declared: []string{"String"}, required: []string{"String", "Number"}, want: false},
		{name: "empty required", declared: []string{"String"}, required: nil, want: true},
		{name: "generic measure required", declared: []string{"Measure(C)"}, required: []string{"Measure"}, want: true},
		{name: "unit mismatch", declared: []string{"Measure(F)"}, required: []string{"Measure(C)"}, want: false},
		{name: "any required", declared: []string{"Picture"}, required: []string{"Any"}, want: true},
		{name: "unparseable declared", declared: []string{"Nope"}, required: []string{"String"}, want: false},
		{name: "unparseable required", declared: []string{"String"}, required: []string{"Array("}, want: false},
		{name: "variable bound across positions", declared: []string{"String", "Number"}, required: []string{"'a", "'a"}, want: false},
		{name: "variable consistent", declared: []string{"String", "String"}, required: []string{"'a", "'a"}, want: true},
		{name: "cyclic bindings", declared: []string{"Array('b)", "Array('a)", "'b"}, required: []string{"'a", "'b", "'a"}, want: false},
		{name: "self-containing binding", declared: []string{"Array('a)", "'a"}, required: []string{"'x", "'x"}, want: false},
		{name: "declared variables are separate", declared: []string{"Number", "'a"}, required: []string{"'a", "String"}, want: true},
		{name: "declared variable reused", declared: []string{"'a", "'a"}, required: []string{"String", "Number"}, want: false},
		{name: "declared variable consistent", declared: []string{"'a", "'a"}, required: []string{"String", "String"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, types.IsCompatible(tt.declared, tt.required))
		})
	}
}
