// Package compression provides the block codecs of the container format:
// null (bytes written as-is), deflate with a configurable level, and
// snappy with the format's CRC-32 block suffix.
//
// Codec choice trades file size for CPU: deflate at higher levels strictly
// shrinks output versus lower levels and versus null for non-trivial data,
// while snappy gives up some ratio for much cheaper compression. The codec
// is threaded explicitly through Config; there is no process-wide codec
// state.
package compression

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/snappy"
)

// Codec names a block compression codec by its on-disk metadata name.
type Codec string

const (
	// Null writes block bytes uncompressed.
	Null Codec = "null"
	// Deflate compresses blocks with raw DEFLATE (RFC 1951), no framing.
	Deflate Codec = "deflate"
	// Snappy compresses blocks with the snappy block format followed by a
	// 4-byte big-endian CRC-32 (IEEE) of the uncompressed bytes.
	Snappy Codec = "snappy"
)

// ParseCodec resolves a codec name, accepting "uncompressed" as an alias
// for the on-disk name "null".
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "uncompressed", string(Null):
		return Null, nil
	case string(Deflate):
		return Deflate, nil
	case string(Snappy):
		return Snappy, nil
	default:
		return "", fmt.Errorf("unsupported compression codec: %s", name)
	}
}

// Config selects a codec and its parameters.
type Config struct {
	Codec Codec
	// DeflateLevel is the deflate compression level in [1,9]. Zero selects
	// the package default. Ignored by other codecs.
	DeflateLevel int
}

// DefaultDeflateLevel balances speed and ratio the same way zlib's own
// default does.
const DefaultDeflateLevel = 6

// DefaultConfig returns the default codec configuration: snappy, matching
// the usual choice for write-heavy container workloads.
func DefaultConfig() *Config {
	return &Config{Codec: Snappy}
}

// Compressor compresses and decompresses container blocks. Implementations
// are safe for concurrent use.
type Compressor interface {
	// Compress compresses one block. The input is not modified.
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses one block. The input is not modified.
	Decompress(data []byte) ([]byte, error)

	// Codec returns the codec's on-disk name.
	Codec() Codec
}

// NewCompressor creates a compressor for the given configuration. If config
// is nil, the default configuration is used.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Codec {
	case Null:
		return &nullCompressor{}, nil
	case Deflate:
		return newDeflateCompressor(config.DeflateLevel)
	case Snappy:
		return &snappyCompressor{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression codec: %s", config.Codec)
	}
}

// ForName creates a compressor from an on-disk codec name, as read from a
// container header. Deflate decompression does not depend on the level the
// writer used.
func ForName(name string) (Compressor, error) {
	codec, err := ParseCodec(name)
	if err != nil {
		return nil, err
	}
	return NewCompressor(&Config{Codec: codec})
}

// Null compressor (blocks written as-is)
type nullCompressor struct{}

func (nc *nullCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (nc *nullCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

func (nc *nullCompressor) Codec() Codec {
	return Null
}

// Deflate compressor
type deflateCompressor struct {
	level int
}

func newDeflateCompressor(level int) (*deflateCompressor, error) {
	if level == 0 {
		level = DefaultDeflateLevel
	}
	if level < 1 || level > 9 {
		return nil, fmt.Errorf("deflate level %d out of range [1,9]", level)
	}
	return &deflateCompressor{level: level}, nil
}

func (dc *deflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := flate.NewWriter(&buf, dc.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (dc *deflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (dc *deflateCompressor) Codec() Codec {
	return Deflate
}

// Snappy compressor. Unlike deflate, the container format requires each
// snappy block to carry a CRC-32 (IEEE) of the uncompressed bytes as a
// big-endian suffix.
type snappyCompressor struct{}

func (sc *snappyCompressor) Compress(data []byte) ([]byte, error) {
	out := snappy.Encode(nil, data)
	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(data))
	return append(out, crc[:]...), nil
}

func (sc *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("snappy block of %d bytes is too short for its checksum", len(data))
	}
	payload, suffix := data[:len(data)-4], data[len(data)-4:]

	out, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, err
	}

	want := binary.BigEndian.Uint32(suffix)
	if got := crc32.ChecksumIEEE(out); got != want {
		return nil, fmt.Errorf("snappy block checksum mismatch: got %08x, want %08x", got, want)
	}
	return out, nil
}

func (sc *snappyCompressor) Codec() Codec {
	return Snappy
}
