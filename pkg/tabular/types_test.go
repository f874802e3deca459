package tabular

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{Int64(), "int64"},
		{Decimal(10, 2), "decimal(10,2)"},
		{Array(String()), "array<string>"},
		{Map(Float64()), "map<float64>"},
		{Struct(
			Field{Name: "x", Type: Int32()},
			Field{Name: "y", Type: String(), Nullable: true},
		), "struct<x: int32, y: string?>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
}

func TestTypeEqual(t *testing.T) {
	nested := Struct(
		Field{Name: "a", Type: Array(Decimal(5, 1))},
		Field{Name: "b", Type: Map(Int64()), Nullable: true},
	)

	assert.True(t, nested.Equal(nested))
	assert.True(t, Decimal(10, 2).Equal(Decimal(10, 2)))
	assert.False(t, Decimal(10, 2).Equal(Decimal(10, 3)))
	assert.False(t, Array(Int32()).Equal(Array(Int64())))
	assert.False(t, Int32().Equal(Int64()))

	// Field order matters.
	reordered := Struct(
		Field{Name: "b", Type: Map(Int64()), Nullable: true},
		Field{Name: "a", Type: Array(Decimal(5, 1))},
	)
	assert.False(t, nested.Equal(reordered))

	// Nullability matters.
	stricter := Struct(
		Field{Name: "a", Type: Array(Decimal(5, 1))},
		Field{Name: "b", Type: Map(Int64())},
	)
	assert.False(t, nested.Equal(stricter))
}

func TestSchemaJSONRoundTrip(t *testing.T) {
	schema := Schema{
		Name: "events",
		Fields: []Field{
			{Name: "id", Type: Int64()},
			{Name: "price", Type: Decimal(10, 2), Nullable: true},
			{Name: "tags", Type: Array(String())},
			{Name: "attrs", Type: Map(Float64())},
			{Name: "point", Type: Struct(
				Field{Name: "x", Type: Float64()},
				Field{Name: "y", Type: Float64()},
			)},
		},
	}

	data, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"precision":10`)
	assert.Contains(t, string(data), `"nullable":true`)

	var back Schema
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, schema.Name, back.Name)
	assert.True(t, schema.AsStruct().Equal(back.AsStruct()))
}

func TestSchemaJSONRejectsMalformedTypes(t *testing.T) {
	tests := []string{
		`{"name":"x","fields":[{"name":"f","type":{"type":"varchar"}}]}`,
		`{"name":"x","fields":[{"name":"f","type":{"type":"decimal","precision":0,"scale":0}}]}`,
		`{"name":"x","fields":[{"name":"f","type":{"type":"decimal","precision":4,"scale":5}}]}`,
		`{"name":"x","fields":[{"name":"f","type":{"type":"array"}}]}`,
	}
	for _, raw := range tests {
		var s Schema
		assert.Error(t, json.Unmarshal([]byte(raw), &s), raw)
	}
}

func TestSchemaString(t *testing.T) {
	s := Schema{Name: "t", Fields: []Field{
		{Name: "n", Type: Int32(), Nullable: true},
	}}
	assert.Equal(t, "t struct<n: int32?>", s.String())
}
