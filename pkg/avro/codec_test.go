package avro

import (
	"bytes"
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabavro/pkg/errors"
	"github.com/ajitpratap0/tabavro/pkg/tabular"
)

func TestWriteLongZigZagVectors(t *testing.T) {
	tests := []struct {
		in   int64
		want []byte
	}{
		{0, []byte{0x00}},
		{-1, []byte{0x01}},
		{1, []byte{0x02}},
		{-2, []byte{0x03}},
		{2, []byte{0x04}},
		{-64, []byte{0x7f}},
		{64, []byte{0x80, 0x01}},
		{-65, []byte{0x81, 0x01}},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		require.NoError(t, NewEncoder(&buf).WriteLong(tt.in))
		assert.Equal(t, tt.want, buf.Bytes(), "value %d", tt.in)

		got, err := NewDecoder(bytes.NewReader(tt.want)).ReadLong()
		require.NoError(t, err)
		assert.Equal(t, tt.in, got)
	}
}

func referenceSchema(t *testing.T) *tabular.Schema {
	t.Helper()
	return &tabular.Schema{
		Name: "ref",
		Fields: []tabular.Field{
			{Name: "b", Type: tabular.Boolean()},
			{Name: "i", Type: tabular.Int32()},
			{Name: "l", Type: tabular.Int64()},
			{Name: "f", Type: tabular.Float32()},
			{Name: "d", Type: tabular.Float64()},
			{Name: "s", Type: tabular.String()},
			{Name: "by", Type: tabular.Bytes()},
			{Name: "dec", Type: tabular.Decimal(10, 2)},
			{Name: "ts", Type: tabular.Timestamp()},
			{Name: "n", Type: tabular.Int32(), Nullable: true},
			{Name: "arr", Type: tabular.Array(tabular.Int64())},
			{Name: "m", Type: tabular.Map(tabular.String())},
			{Name: "st", Type: tabular.Struct(
				tabular.Field{Name: "x", Type: tabular.Int64()},
				tabular.Field{Name: "y", Type: tabular.String(), Nullable: true},
			)},
		},
	}
}

func referenceRows() []tabular.Row {
	at := time.Date(2024, 5, 17, 10, 30, 0, 123_456_789, time.UTC)
	return []tabular.Row{
		{
			true, int32(42), int64(-7), float32(1.5), float64(2.25),
			"héllo", []byte{0x01, 0x02}, decimal.New(314, -2), at,
			int32(7),
			[]interface{}{int64(1), int64(2), int64(3)},
			map[string]interface{}{"k": "v"},
			tabular.Row{int64(9), "z"},
		},
		{
			false, int32(0), int64(1 << 40), float32(-0.25), float64(-3.5),
			"", []byte{}, decimal.New(-5, -2), at.Add(time.Second),
			nil,
			[]interface{}{},
			map[string]interface{}{},
			tabular.Row{int64(-9), nil},
		},
	}
}

// referenceNative is the goavro representation of referenceRows.
func referenceNative() []map[string]interface{} {
	at := time.Date(2024, 5, 17, 10, 30, 0, 123_456_789, time.UTC)
	return []map[string]interface{}{
		{
			"b": true, "i": int32(42), "l": int64(-7), "f": float32(1.5), "d": float64(2.25),
			"s": "héllo", "by": []byte{0x01, 0x02}, "dec": "3.14", "ts": at.UnixMilli(),
			"n":   map[string]interface{}{"int": int32(7)},
			"arr": []interface{}{int64(1), int64(2), int64(3)},
			"m":   map[string]interface{}{"k": "v"},
			"st":  map[string]interface{}{"x": int64(9), "y": map[string]interface{}{"string": "z"}},
		},
		{
			"b": false, "i": int32(0), "l": int64(1 << 40), "f": float32(-0.25), "d": float64(-3.5),
			"s": "", "by": []byte{}, "dec": "-0.05", "ts": at.Add(time.Second).UnixMilli(),
			"n":   nil,
			"arr": []interface{}{},
			"m":   map[string]interface{}{},
			"st":  map[string]interface{}{"x": int64(-9), "y": nil},
		},
	}
}

// Every row encoding must be byte-identical to the reference
// implementation's binary encoder.
func TestEncodeRowMatchesReferenceBytes(t *testing.T) {
	codec, err := NewCodec(referenceSchema(t), Options{})
	require.NoError(t, err)

	refCodec, err := goavro.NewCodec(codec.Container.String())
	require.NoError(t, err)

	native := referenceNative()
	for i, row := range referenceRows() {
		var buf bytes.Buffer
		require.NoError(t, codec.EncodeRow(NewEncoder(&buf), row))

		want, err := refCodec.BinaryFromNative(nil, native[i])
		require.NoError(t, err)
		assert.Equal(t, want, buf.Bytes(), "row %d", i)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	schema := referenceSchema(t)
	codec, err := NewCodec(schema, Options{})
	require.NoError(t, err)

	// Decode with the declared tabular schema so Decimal and Timestamp
	// come back typed.
	reader, err := NewCodecWithSchemas(schema, codec.Container)
	require.NoError(t, err)

	for i, row := range referenceRows() {
		var buf bytes.Buffer
		require.NoError(t, codec.EncodeRow(NewEncoder(&buf), row))

		got, err := reader.DecodeRow(NewDecoder(bytes.NewReader(buf.Bytes())))
		require.NoError(t, err)
		require.Len(t, got, len(row), "row %d", i)

		for j, want := range row {
			switch want := want.(type) {
			case decimal.Decimal:
				gotDec, ok := got[j].(decimal.Decimal)
				require.True(t, ok, "row %d field %d", i, j)
				assert.True(t, want.Equal(gotDec), "row %d field %d: got %s, want %s", i, j, gotDec, want)
			case time.Time:
				gotTime, ok := got[j].(time.Time)
				require.True(t, ok, "row %d field %d", i, j)
				// Millisecond precision only; sub-millisecond is floored away.
				assert.Equal(t, want.Truncate(time.Millisecond).UnixMilli(), gotTime.UnixMilli())
			default:
				assert.Equal(t, want, got[j], "row %d field %d", i, j)
			}
		}
	}
}

func TestEncodeNullInNonNullableField(t *testing.T) {
	schema := &tabular.Schema{Name: "t", Fields: []tabular.Field{
		{Name: "s", Type: tabular.String()},
	}}
	codec, err := NewCodec(schema, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = codec.EncodeRow(NewEncoder(&buf), tabular.Row{nil})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNullabilityViolation))

	var typed *errors.Error
	require.True(t, errors.AsError(err, &typed))
	assert.Equal(t, "s", typed.Details["field"])
}

func TestEncodeRowWidthMismatch(t *testing.T) {
	schema := &tabular.Schema{Name: "t", Fields: []tabular.Field{
		{Name: "a", Type: tabular.Int64()},
		{Name: "b", Type: tabular.Int64()},
	}}
	codec, err := NewCodec(schema, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = codec.EncodeRow(NewEncoder(&buf), tabular.Row{int64(1)})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNullabilityViolation))
}

func TestFixedSizeMismatch(t *testing.T) {
	container := &Schema{Type: TypeRecord, Name: "r", Fields: []Field{
		{Name: "id", Type: &Schema{Type: TypeFixed, Name: "id4", Size: 4}},
	}}
	codec, err := NewCodecFromContainer(container)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = codec.EncodeRow(NewEncoder(&buf), tabular.Row{[]byte{1, 2, 3}})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindFixedSizeMismatch))

	// The exact size is written raw, no truncation or padding.
	buf.Reset()
	require.NoError(t, codec.EncodeRow(NewEncoder(&buf), tabular.Row{[]byte{1, 2, 3, 4}}))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf.Bytes())
}

func TestDecimalParseError(t *testing.T) {
	schema := &tabular.Schema{Name: "t", Fields: []tabular.Field{
		{Name: "dec", Type: tabular.Decimal(10, 2)},
	}}
	codec, err := NewCodec(schema, Options{})
	require.NoError(t, err)

	// Write malformed decimal text through a plain string pairing.
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).WriteString("not-a-number"))

	_, err = codec.DecodeRow(NewDecoder(bytes.NewReader(buf.Bytes())))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDecimalParse))
}

func TestDecimalCanonicalText(t *testing.T) {
	schema := &tabular.Schema{Name: "t", Fields: []tabular.Field{
		{Name: "dec", Type: tabular.Decimal(12, 3)},
	}}
	codec, err := NewCodec(schema, Options{})
	require.NoError(t, err)

	tests := []struct {
		in   decimal.Decimal
		want string
	}{
		{decimal.New(314, -2), "3.140"},
		{decimal.New(-5, 0), "-5.000"},
		{decimal.New(12, -3), "0.012"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		require.NoError(t, codec.EncodeRow(NewEncoder(&buf), tabular.Row{tt.in}))

		s, err := NewDecoder(bytes.NewReader(buf.Bytes())).ReadString()
		require.NoError(t, err)
		assert.Equal(t, tt.want, s)
	}
}

func TestDecodeUnionIndexOutOfRange(t *testing.T) {
	schema := &tabular.Schema{Name: "t", Fields: []tabular.Field{
		{Name: "n", Type: tabular.Int32(), Nullable: true},
	}}
	codec, err := NewCodec(schema, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).WriteLong(5))

	_, err = codec.DecodeRow(NewDecoder(bytes.NewReader(buf.Bytes())))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindCorruptContainer))
}

func TestValueUnionEncodeDispatch(t *testing.T) {
	container := &Schema{Type: TypeRecord, Name: "r", Fields: []Field{
		{Name: "v", Type: &Schema{Type: TypeUnion, Union: []*Schema{
			{Type: TypeNull},
			{Type: TypeInt},
			{Type: TypeDouble},
		}}},
	}}
	codec, err := NewCodecFromContainer(container)
	require.NoError(t, err)

	// int32 picks the int member directly by tag, no trial decode.
	var buf bytes.Buffer
	require.NoError(t, codec.EncodeRow(NewEncoder(&buf), tabular.Row{int32(3)}))
	dec := NewDecoder(bytes.NewReader(buf.Bytes()))
	idx, err := dec.ReadLong()
	require.NoError(t, err)
	assert.Equal(t, int64(1), idx)

	// int64 has no lossless member, so it falls back to the widest
	// numeric member.
	buf.Reset()
	require.NoError(t, codec.EncodeRow(NewEncoder(&buf), tabular.Row{int64(1 << 40)}))
	dec = NewDecoder(bytes.NewReader(buf.Bytes()))
	idx, err = dec.ReadLong()
	require.NoError(t, err)
	assert.Equal(t, int64(2), idx)
}

func TestCheckPairingRejectsMismatch(t *testing.T) {
	declared := &tabular.Schema{Name: "t", Fields: []tabular.Field{
		{Name: "v", Type: tabular.Int64()},
	}}
	container := &Schema{Type: TypeRecord, Name: "r", Fields: []Field{
		{Name: "v", Type: &Schema{Type: TypeString}},
	}}

	_, err := NewCodecWithSchemas(declared, container)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupportedType))
}
