// Package convert composes the path resolver, type mapper, value codec,
// and container reader/writer into the two operations surrounding code
// depends on: read container files as one tabular row stream, and write
// tabular rows out as a container file.
package convert

import (
	"io"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tabavro/pkg/avro"
	"github.com/ajitpratap0/tabavro/pkg/avro/ocf"
	"github.com/ajitpratap0/tabavro/pkg/compression"
	"github.com/ajitpratap0/tabavro/pkg/logger"
	"github.com/ajitpratap0/tabavro/pkg/paths"
	"github.com/ajitpratap0/tabavro/pkg/tabular"
)

// WriteOptions carries the caller-facing write configuration. Codec accepts
// "uncompressed", "deflate", or "snappy" (empty selects the default);
// DeflateLevel is 1-9 with 0 selecting the implementation default.
// RecordName and RecordNamespace name the top-level record and appear
// verbatim inside the schema text embedded in the file header.
type WriteOptions struct {
	Codec           string
	DeflateLevel    int
	RecordName      string
	RecordNamespace string
}

func (o WriteOptions) writerConfig() (*ocf.WriterConfig, error) {
	cfg := ocf.DefaultWriterConfig()
	if o.Codec != "" {
		codec, err := compression.ParseCodec(o.Codec)
		if err != nil {
			return nil, err
		}
		cfg.Compression = &compression.Config{Codec: codec, DeflateLevel: o.DeflateLevel}
	} else if o.DeflateLevel != 0 {
		cfg.Compression.DeflateLevel = o.DeflateLevel
	}
	return cfg, nil
}

// RowSource produces rows one at a time, ending with io.EOF.
type RowSource interface {
	Next() (tabular.Row, error)
}

type sliceSource struct {
	rows []tabular.Row
	next int
}

func (s *sliceSource) Next() (tabular.Row, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return row, nil
}

// Rows adapts an in-memory row slice to a RowSource.
func Rows(rows ...tabular.Row) RowSource {
	return &sliceSource{rows: rows}
}

// FromTabular streams rows through the value codec into one container file
// at dest. The destination handle is released on every exit path; on
// failure the partial file may be unreadable but never corrupts anything
// else.
func FromTabular(rows RowSource, schema *tabular.Schema, dest string, opts WriteOptions) error {
	codec, err := avro.NewCodec(schema, avro.Options{
		RecordName: opts.RecordName,
		Namespace:  opts.RecordNamespace,
	})
	if err != nil {
		return err
	}
	cfg, err := opts.writerConfig()
	if err != nil {
		return err
	}

	w, err := ocf.Create(dest, codec, cfg)
	if err != nil {
		return err
	}

	for {
		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			w.Close()
			return err
		}
		if err := w.Append(row); err != nil {
			w.Close()
			return err
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	logger.Named("convert").Debug("wrote container file",
		zap.String("path", dest),
		zap.Int64("rows", w.RowsWritten()))
	return nil
}

// ToTabular resolves the given path patterns and presents the matched
// container files as one logical row stream in resolver order. The schema
// comes from the first file; later files are not schema-checked against it
// here, that is the caller's choice to enforce.
func ToTabular(patterns []string) (*RowReader, *tabular.Schema, error) {
	return toTabular(patterns, nil)
}

// ToTabularWithSchema is ToTabular with a caller-declared tabular schema,
// so Decimal and Timestamp fields decode to their declared types.
func ToTabularWithSchema(patterns []string, schema *tabular.Schema) (*RowReader, *tabular.Schema, error) {
	return toTabular(patterns, schema)
}

func toTabular(patterns []string, declared *tabular.Schema) (*RowReader, *tabular.Schema, error) {
	files, err := paths.Resolve(patterns)
	if err != nil {
		return nil, nil, err
	}

	reader := &RowReader{files: files, declared: declared}
	if err := reader.advance(); err != nil {
		reader.Close()
		return nil, nil, err
	}
	return reader, reader.current.Schema(), nil
}

// RowReader concatenates the rows of resolved container files lazily: one
// file is open at a time and each is closed before the next opens. The
// sequence is finite and restartable only via a fresh call to ToTabular.
type RowReader struct {
	files    []string
	declared *tabular.Schema
	next     int
	current  *ocf.Reader
}

// Next returns the next row across all files, or io.EOF after the last.
func (r *RowReader) Next() (tabular.Row, error) {
	for {
		if r.current == nil {
			if r.next >= len(r.files) {
				return nil, io.EOF
			}
			if err := r.advance(); err != nil {
				return nil, err
			}
		}
		row, err := r.current.Next()
		if err == io.EOF {
			if err := r.closeCurrent(); err != nil {
				return nil, err
			}
			continue
		}
		return row, err
	}
}

func (r *RowReader) advance() error {
	var (
		reader *ocf.Reader
		err    error
	)
	if r.declared != nil {
		reader, err = ocf.OpenWithSchema(r.files[r.next], r.declared)
	} else {
		reader, err = ocf.Open(r.files[r.next])
	}
	if err != nil {
		return err
	}
	r.current = reader
	r.next++
	return nil
}

func (r *RowReader) closeCurrent() error {
	if r.current == nil {
		return nil
	}
	reader := r.current
	r.current = nil
	return reader.Close()
}

// Close releases the currently open file, if any.
func (r *RowReader) Close() error {
	return r.closeCurrent()
}
