// Package ocf reads and writes Avro object container files: a magic
// header, a metadata map embedding the canonical schema text and codec
// name, a random 16-byte sync marker, and a sequence of compressed blocks
// each followed by that marker. Files are byte-compatible with the Avro
// reference implementation, so they interoperate with third-party readers
// and writers.
//
// A handle is used by one goroutine at a time; parallelism across files is
// the caller's concern and needs no coordination here since files share no
// mutable state.
package ocf

import (
	"bytes"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabavro/pkg/avro"
	"github.com/ajitpratap0/tabavro/pkg/compression"
	"github.com/ajitpratap0/tabavro/pkg/errors"
	"github.com/ajitpratap0/tabavro/pkg/logger"
	"github.com/ajitpratap0/tabavro/pkg/pool"
	"github.com/ajitpratap0/tabavro/pkg/tabular"
)

// Magic identifies a container file. Its presence at file start is how the
// path resolver recognizes container files without reading a full header.
var Magic = []byte{'O', 'b', 'j', 1}

// Header metadata keys.
const (
	MetaSchema = "avro.schema"
	MetaCodec  = "avro.codec"
)

// SyncSize is the length of the per-file sync marker.
const SyncSize = 16

// WriterConfig controls block sizing and compression. Compression is
// threaded explicitly; there is no ambient codec configuration.
type WriterConfig struct {
	Compression *compression.Config
	// BlockRecords flushes a block after this many buffered records.
	BlockRecords int
	// BlockBytes flushes a block once its encoded size reaches this many
	// bytes.
	BlockBytes int
}

// DefaultWriterConfig returns the default writer configuration.
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Compression:  compression.DefaultConfig(),
		BlockRecords: 1000,
		BlockBytes:   64 * 1024,
	}
}

// Writer appends rows to one container file. Rows are buffered into a
// block, compressed on threshold or flush, and framed with the sync
// marker.
type Writer struct {
	dst    io.Writer
	closer io.Closer
	path   string
	codec  *avro.Codec
	comp   compression.Compressor
	cfg    WriterConfig
	sync   [SyncSize]byte

	block        *bytes.Buffer
	blockEnc     *avro.Encoder
	blockRecords int
	rowsWritten  int64
	closed       bool
	log          *zap.Logger
}

// Create opens a container file at path for writing, emitting the header
// immediately. The caller owns calling Close on every exit path.
func Create(path string, codec *avro.Codec, cfg *WriterConfig) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindIO, "create container file").WithPath(path)
	}
	w, err := newWriter(f, f, path, codec, cfg)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

// NewWriter writes a container to an arbitrary destination, such as an
// in-memory buffer.
func NewWriter(dst io.Writer, codec *avro.Codec, cfg *WriterConfig) (*Writer, error) {
	closer, _ := dst.(io.Closer)
	return newWriter(dst, closer, "", codec, cfg)
}

func newWriter(dst io.Writer, closer io.Closer, path string, codec *avro.Codec, cfg *WriterConfig) (*Writer, error) {
	if cfg == nil {
		cfg = DefaultWriterConfig()
	}
	if cfg.BlockRecords <= 0 {
		cfg.BlockRecords = DefaultWriterConfig().BlockRecords
	}
	if cfg.BlockBytes <= 0 {
		cfg.BlockBytes = DefaultWriterConfig().BlockBytes
	}

	comp, err := compression.NewCompressor(cfg.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnsupportedType, "configure block codec")
	}

	w := &Writer{
		dst:    dst,
		closer: closer,
		path:   path,
		codec:  codec,
		comp:   comp,
		cfg:    *cfg,
		sync:   [SyncSize]byte(uuid.New()),
		block:  pool.Buffers.Get(),
		log:    logger.Named("ocf.writer"),
	}
	w.blockEnc = avro.NewEncoder(w.block)

	if err := w.writeHeader(); err != nil {
		pool.Buffers.Put(w.block)
		return nil, err
	}
	w.log.Debug("container opened for writing",
		zap.String("path", path),
		zap.String("codec", string(comp.Codec())))
	return w, nil
}

func (w *Writer) writeHeader() error {
	enc := avro.NewEncoder(w.dst)
	if err := enc.WriteRaw(Magic); err != nil {
		return w.ioErr(err, "write header")
	}

	meta := []struct {
		key   string
		value []byte
	}{
		{MetaSchema, []byte(w.codec.Container.String())},
		{MetaCodec, []byte(w.comp.Codec())},
	}
	if err := enc.WriteLong(int64(len(meta))); err != nil {
		return w.ioErr(err, "write header")
	}
	for _, entry := range meta {
		if err := enc.WriteString(entry.key); err != nil {
			return w.ioErr(err, "write header")
		}
		if err := enc.WriteBytes(entry.value); err != nil {
			return w.ioErr(err, "write header")
		}
	}
	if err := enc.WriteLong(0); err != nil {
		return w.ioErr(err, "write header")
	}

	return w.ioErr(enc.WriteRaw(w.sync[:]), "write header")
}

// Append encodes one row into the current block, flushing the block when a
// threshold is reached. A row that fails to encode leaves the block
// exactly as it was before the call.
func (w *Writer) Append(row tabular.Row) error {
	if w.closed {
		return errors.New(errors.KindIO, "append to closed writer").WithPath(w.path)
	}

	mark := w.block.Len()
	if err := w.codec.EncodeRow(w.blockEnc, row); err != nil {
		w.block.Truncate(mark)
		return err
	}
	w.blockRecords++
	w.rowsWritten++

	if w.blockRecords >= w.cfg.BlockRecords || w.block.Len() >= w.cfg.BlockBytes {
		return w.Flush()
	}
	return nil
}

// Flush compresses and writes the buffered block, if any.
func (w *Writer) Flush() error {
	if w.blockRecords == 0 {
		return nil
	}

	compressed, err := w.comp.Compress(w.block.Bytes())
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "compress block").WithPath(w.path)
	}

	enc := avro.NewEncoder(w.dst)
	if err := enc.WriteLong(int64(w.blockRecords)); err != nil {
		return w.ioErr(err, "write block")
	}
	if err := enc.WriteLong(int64(len(compressed))); err != nil {
		return w.ioErr(err, "write block")
	}
	if err := enc.WriteRaw(compressed); err != nil {
		return w.ioErr(err, "write block")
	}
	if err := enc.WriteRaw(w.sync[:]); err != nil {
		return w.ioErr(err, "write block")
	}

	w.block.Reset()
	w.blockRecords = 0
	return nil
}

// Close flushes the final block and releases the destination. It is
// idempotent and must be called on all exit paths.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.Flush()
	pool.Buffers.Put(w.block)
	w.block = nil

	var closeErr error
	if w.closer != nil {
		closeErr = w.closer.Close()
	}
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, errors.KindIO, "close container file").WithPath(w.path)
	}
	w.log.Debug("container closed",
		zap.String("path", w.path),
		zap.Int64("rows", w.rowsWritten))
	return nil
}

// RowsWritten returns the number of rows appended so far.
func (w *Writer) RowsWritten() int64 {
	return w.rowsWritten
}

func (w *Writer) ioErr(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, errors.KindIO, message).WithPath(w.path)
}
