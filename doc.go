// Package tabavro converts between a row-oriented, strongly-typed tabular
// data model and Avro object container files, byte-compatible with the
// Avro reference implementation.
//
// # Architecture
//
// The library is layered, leaves first:
//
//   - pkg/tabular: the tabular type system (named, ordered, nullable
//     fields over primitive and nested types) and positional rows.
//   - pkg/avro: the container schema language with a canonical JSON text
//     serializer, the bidirectional type mapper, and the binary value
//     codec.
//   - pkg/compression: the block codecs (null, deflate, snappy).
//   - pkg/avro/ocf: the container file writer and reader (header, sync
//     markers, compressed blocks).
//   - pkg/paths: path-pattern resolution with a two-tier error taxonomy.
//   - pkg/convert: the orchestrator exposing the two operations callers
//     depend on.
//
// # Quick Start
//
// Write rows to a container file and read them back:
//
//	schema := &tabular.Schema{
//	    Name: "events",
//	    Fields: []tabular.Field{
//	        {Name: "id", Type: tabular.Int64()},
//	        {Name: "note", Type: tabular.String(), Nullable: true},
//	    },
//	}
//
//	err := convert.FromTabular(
//	    convert.Rows(
//	        tabular.Row{int64(1), "first"},
//	        tabular.Row{int64(2), nil},
//	    ),
//	    schema, "events.avro", convert.WriteOptions{Codec: "deflate"},
//	)
//
//	reader, schema, err := convert.ToTabular([]string{"events.avro"})
//	defer reader.Close()
//	for {
//	    row, err := reader.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    // ...
//	}
//
// Handles are single-goroutine; parallelism across files needs no
// coordination inside the library because files share no mutable state.
// All failures surface as pkg/errors typed kinds, never generic failures.
package tabavro
