package convert

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabavro/pkg/avro/ocf"
	"github.com/ajitpratap0/tabavro/pkg/compression"
	"github.com/ajitpratap0/tabavro/pkg/errors"
	"github.com/ajitpratap0/tabavro/pkg/tabular"
)

func eventSchema() *tabular.Schema {
	return &tabular.Schema{
		Name: "event",
		Fields: []tabular.Field{
			{Name: "id", Type: tabular.Int64()},
			{Name: "note", Type: tabular.String(), Nullable: true},
			{Name: "price", Type: tabular.Decimal(8, 2)},
			{Name: "at", Type: tabular.Timestamp()},
		},
	}
}

func eventRows(start, n int) []tabular.Row {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]tabular.Row, n)
	for i := range rows {
		id := start + i
		var note interface{}
		if id%2 == 0 {
			note = "even"
		}
		rows[i] = tabular.Row{
			int64(id), note,
			decimal.New(int64(id), -1),
			base.Add(time.Duration(id) * time.Minute),
		}
	}
	return rows
}

func drain(t *testing.T, r *RowReader) []tabular.Row {
	t.Helper()
	var rows []tabular.Row
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestFromTabularToTabularRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "events.avro")
	rows := eventRows(0, 8)

	require.NoError(t, FromTabular(Rows(rows...), eventSchema(), dest, WriteOptions{}))

	reader, schema, err := ToTabularWithSchema([]string{dest}, eventSchema())
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, eventSchema().Fields, schema.Fields)

	got := drain(t, reader)
	require.Len(t, got, len(rows))
	assert.Equal(t, int64(5), got[5][0])
	assert.Nil(t, got[5][1])
	assert.Equal(t, "even", got[4][1])
	price, ok := got[5][2].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, decimal.New(5, -1).Equal(price))
	assert.Equal(t, rows[5][3], got[5][3])
}

func TestToTabularErasesDeclaredTypes(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "events.avro")
	require.NoError(t, FromTabular(Rows(eventRows(0, 1)...), eventSchema(), dest, WriteOptions{}))

	reader, schema, err := ToTabular([]string{dest})
	require.NoError(t, err)
	defer reader.Close()

	// Without a declared schema the container's view applies.
	assert.Equal(t, tabular.KindString, schema.Fields[2].Type.Kind)
	assert.Equal(t, tabular.KindInt64, schema.Fields[3].Type.Kind)

	got := drain(t, reader)
	require.Len(t, got, 1)
	assert.Equal(t, "0.00", got[0][2])
	assert.IsType(t, int64(0), got[0][3])
}

func TestToTabularConcatenatesInResolverOrder(t *testing.T) {
	dir := t.TempDir()

	// Written out of lexical order; patterns are passed lexically.
	require.NoError(t, FromTabular(Rows(eventRows(10, 5)...), eventSchema(),
		filepath.Join(dir, "b.avro"), WriteOptions{}))
	require.NoError(t, FromTabular(Rows(eventRows(0, 5)...), eventSchema(),
		filepath.Join(dir, "a.avro"), WriteOptions{}))

	reader, _, err := ToTabular([]string{filepath.Join(dir, "*.avro")})
	require.NoError(t, err)
	defer reader.Close()

	got := drain(t, reader)
	require.Len(t, got, 10)
	want := []int64{0, 1, 2, 3, 4, 10, 11, 12, 13, 14}
	for i, id := range want {
		assert.Equal(t, id, got[i][0], "row %d", i)
	}
}

func TestToTabularNoFiles(t *testing.T) {
	dir := t.TempDir()

	_, _, err := ToTabular([]string{filepath.Join(dir, "*.avro")})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNoFiles))
}

func TestWriteOptionsControlHeader(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "named.avro")

	err := FromTabular(Rows(eventRows(0, 1)...), eventSchema(), dest, WriteOptions{
		Codec:           "deflate",
		DeflateLevel:    9,
		RecordName:      "Event",
		RecordNamespace: "com.example.events",
	})
	require.NoError(t, err)

	r, err := ocf.Open(dest)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, compression.Deflate, r.Codec())
	assert.Equal(t, "Event", r.ContainerSchema().Name)
	assert.Equal(t, "com.example.events", r.ContainerSchema().Namespace)
}

func TestWriteOptionsUncompressedAlias(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "plain.avro")

	require.NoError(t, FromTabular(Rows(eventRows(0, 1)...), eventSchema(), dest,
		WriteOptions{Codec: "uncompressed"}))

	r, err := ocf.Open(dest)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, compression.Null, r.Codec())
}

func TestFromTabularRejectsBadCodec(t *testing.T) {
	dir := t.TempDir()
	err := FromTabular(Rows(eventRows(0, 1)...), eventSchema(),
		filepath.Join(dir, "x.avro"), WriteOptions{Codec: "zstd"})
	assert.Error(t, err)
}

func TestFromTabularPropagatesSourceError(t *testing.T) {
	dir := t.TempDir()
	src := &failingSource{after: 2}
	err := FromTabular(src, eventSchema(), filepath.Join(dir, "x.avro"), WriteOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindIO))
}

type failingSource struct {
	after int
	sent  int
}

func (s *failingSource) Next() (tabular.Row, error) {
	if s.sent >= s.after {
		return nil, errors.New(errors.KindIO, "source went away")
	}
	row := eventRows(s.sent, 1)[0]
	s.sent++
	return row, nil
}

func TestJSONBridgeRoundTrip(t *testing.T) {
	schema := &tabular.Schema{
		Name: "doc",
		Fields: []tabular.Field{
			{Name: "id", Type: tabular.Int32()},
			{Name: "raw", Type: tabular.Bytes()},
			{Name: "price", Type: tabular.Decimal(6, 2)},
			{Name: "at", Type: tabular.Timestamp()},
			{Name: "tags", Type: tabular.Array(tabular.String())},
			{Name: "point", Type: tabular.Struct(
				tabular.Field{Name: "x", Type: tabular.Float64()},
				tabular.Field{Name: "y", Type: tabular.Float64()},
			)},
		},
	}
	at := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	row := tabular.Row{
		int32(7), []byte{0xde, 0xad}, decimal.New(1999, -2), at,
		[]interface{}{"a"}, tabular.Row{1.5, -2.5},
	}

	obj, err := RowToJSON(schema, row)
	require.NoError(t, err)
	assert.Equal(t, "19.99", obj["price"])
	assert.Equal(t, "2024-06-01T08:30:00.000Z", obj["at"])
	assert.Equal(t, "3q0=", obj["raw"])

	back, err := RowFromJSON(schema, obj)
	require.NoError(t, err)
	assert.Equal(t, row[0], back[0])
	assert.Equal(t, row[1], back[1])
	price, ok := back[2].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, decimal.New(1999, -2).Equal(price))
	ts, ok := back[3].(time.Time)
	require.True(t, ok)
	assert.True(t, at.Equal(ts))
	assert.Equal(t, row[4], back[4])
	assert.Equal(t, row[5], back[5])
}

func TestRowFromJSONRejectsLossyNarrowing(t *testing.T) {
	schema := &tabular.Schema{Name: "n", Fields: []tabular.Field{
		{Name: "id", Type: tabular.Int32()},
	}}

	_, err := RowFromJSON(schema, map[string]interface{}{"id": 1.5})
	require.Error(t, err)

	_, err = RowFromJSON(schema, map[string]interface{}{"id": float64(1 << 40)})
	require.Error(t, err)

	row, err := RowFromJSON(schema, map[string]interface{}{"id": float64(41)})
	require.NoError(t, err)
	assert.Equal(t, int32(41), row[0])
}
