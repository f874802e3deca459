package ocf

import (
	"bytes"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tabavro/pkg/avro"
	"github.com/ajitpratap0/tabavro/pkg/compression"
	"github.com/ajitpratap0/tabavro/pkg/errors"
	"github.com/ajitpratap0/tabavro/pkg/logger"
	"github.com/ajitpratap0/tabavro/pkg/tabular"
)

// Reader iterates the rows of one container file lazily: blocks are
// decompressed one at a time, rows decoded on demand. The sequence is
// finite and restartable only through a fresh handle.
type Reader struct {
	closer io.Closer
	path   string
	dec    *avro.Decoder
	codec  *avro.Codec
	comp   compression.Compressor
	meta   map[string][]byte
	sync   []byte

	remaining int64
	blockDec  *avro.Decoder
	log       *zap.Logger
}

// Open opens a container file and parses its header. The tabular schema is
// derived from the embedded container schema.
func Open(path string) (*Reader, error) {
	return openPath(path, nil)
}

// OpenWithSchema opens a container file and pairs it with a caller-declared
// tabular schema, so Decimal and Timestamp fields decode to their declared
// types instead of the container's erased ones.
func OpenWithSchema(path string, schema *tabular.Schema) (*Reader, error) {
	return openPath(path, schema)
}

func openPath(path string, schema *tabular.Schema) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindIO, "open container file").WithPath(path)
	}
	r, err := newReader(f, f, path, schema)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// NewReader reads a container from an arbitrary source, such as an
// in-memory buffer.
func NewReader(src io.Reader) (*Reader, error) {
	closer, _ := src.(io.Closer)
	return newReader(src, closer, "", nil)
}

func newReader(src io.Reader, closer io.Closer, path string, schema *tabular.Schema) (*Reader, error) {
	r := &Reader{
		closer: closer,
		path:   path,
		dec:    avro.NewDecoder(src),
		log:    logger.Named("ocf.reader"),
	}
	if err := r.readHeader(schema); err != nil {
		return nil, err
	}
	r.log.Debug("container opened for reading",
		zap.String("path", path),
		zap.String("codec", string(r.comp.Codec())))
	return r, nil
}

func (r *Reader) readHeader(schema *tabular.Schema) error {
	magic, err := r.dec.ReadRaw(len(Magic))
	if err != nil {
		return r.corrupt(err, "short read on magic bytes")
	}
	if !bytes.Equal(magic, Magic) {
		return errors.New(errors.KindCorruptContainer, "not a container file: bad magic bytes").WithPath(r.path)
	}

	r.meta = make(map[string][]byte)
	for {
		n, err := r.dec.ReadLong()
		if err != nil {
			return r.corrupt(err, "unreadable header metadata")
		}
		if n == 0 {
			break
		}
		if n < 0 {
			n = -n
			if _, err := r.dec.ReadLong(); err != nil {
				return r.corrupt(err, "unreadable header metadata")
			}
		}
		for ; n > 0; n-- {
			key, err := r.dec.ReadString()
			if err != nil {
				return r.corrupt(err, "unreadable header metadata")
			}
			value, err := r.dec.ReadBytes()
			if err != nil {
				return r.corrupt(err, "unreadable header metadata")
			}
			r.meta[key] = value
		}
	}

	schemaText, ok := r.meta[MetaSchema]
	if !ok {
		return errors.New(errors.KindCorruptContainer, "header metadata has no schema").WithPath(r.path)
	}
	container, err := avro.Parse(schemaText)
	if err != nil {
		return err
	}
	if schema != nil {
		r.codec, err = avro.NewCodecWithSchemas(schema, container)
	} else {
		r.codec, err = avro.NewCodecFromContainer(container)
	}
	if err != nil {
		return err
	}

	codecName := string(r.meta[MetaCodec])
	r.comp, err = compression.ForName(codecName)
	if err != nil {
		return errors.Wrap(err, errors.KindCorruptContainer, "header names unknown codec").WithPath(r.path)
	}

	r.sync, err = r.dec.ReadRaw(SyncSize)
	if err != nil {
		return r.corrupt(err, "short read on sync marker")
	}
	return nil
}

// Schema returns the tabular schema rows decode against.
func (r *Reader) Schema() *tabular.Schema {
	return r.codec.Tabular
}

// ContainerSchema returns the schema parsed from the header.
func (r *Reader) ContainerSchema() *avro.Schema {
	return r.codec.Container
}

// Metadata returns the header metadata map.
func (r *Reader) Metadata() map[string][]byte {
	return r.meta
}

// Codec returns the block codec named in the header.
func (r *Reader) Codec() compression.Codec {
	return r.comp.Codec()
}

// Next returns the next row, or io.EOF after the last block. Corruption is
// fatal for the file and surfaces as a typed error, never a mangled row.
func (r *Reader) Next() (tabular.Row, error) {
	for r.remaining == 0 {
		if err := r.loadBlock(); err != nil {
			return nil, err
		}
	}

	row, err := r.codec.DecodeRow(r.blockDec)
	if err != nil {
		var typed *errors.Error
		if errors.AsError(err, &typed) {
			typed.WithPath(r.path)
			return nil, typed
		}
		return nil, r.corrupt(err, "undecodable row")
	}
	r.remaining--
	return row, nil
}

func (r *Reader) loadBlock() error {
	count, err := r.dec.ReadLong()
	if err == io.EOF {
		// Clean end at a block boundary.
		return io.EOF
	}
	if err != nil {
		return r.corrupt(err, "truncated block header")
	}
	if count <= 0 {
		return errors.Newf(errors.KindCorruptContainer, "block record count %d", count).WithPath(r.path)
	}

	size, err := r.dec.ReadLong()
	if err != nil {
		return r.corrupt(err, "truncated block header")
	}
	if size < 0 {
		return errors.Newf(errors.KindCorruptContainer, "block byte length %d", size).WithPath(r.path)
	}

	compressed, err := r.dec.ReadRaw(int(size))
	if err != nil {
		return r.corrupt(err, "truncated block")
	}

	marker, err := r.dec.ReadRaw(SyncSize)
	if err != nil {
		return r.corrupt(err, "truncated sync marker")
	}
	if !bytes.Equal(marker, r.sync) {
		return errors.New(errors.KindCorruptSyncMarker, "block sync marker does not match header").WithPath(r.path)
	}

	raw, err := r.comp.Decompress(compressed)
	if err != nil {
		return r.corrupt(err, "undecompressable block")
	}

	r.blockDec = avro.NewDecoder(bytes.NewReader(raw))
	r.remaining = count
	return nil
}

// Close releases the source. It is idempotent.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	closer := r.closer
	r.closer = nil
	if err := closer.Close(); err != nil {
		return errors.Wrap(err, errors.KindIO, "close container file").WithPath(r.path)
	}
	return nil
}

func (r *Reader) corrupt(err error, message string) error {
	return errors.Wrap(err, errors.KindCorruptContainer, message).WithPath(r.path)
}
