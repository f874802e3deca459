package avro

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// maxAllocation bounds a single length-prefixed allocation while decoding.
// A longer prefix means the stream is corrupt, not that the value is large.
const maxAllocation = 1 << 30

// Encoder writes Avro binary primitives. It performs no buffering of its
// own; callers hand it the destination they want bytes in.
type Encoder struct {
	w       io.Writer
	scratch [binary.MaxVarintLen64]byte
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteLong writes a zig-zag varint encoded long.
func (e *Encoder) WriteLong(v int64) error {
	n := binary.PutUvarint(e.scratch[:], uint64((v<<1)^(v>>63)))
	_, err := e.w.Write(e.scratch[:n])
	return err
}

// WriteInt writes a zig-zag varint encoded int. The wire form is identical
// to a long of the same value.
func (e *Encoder) WriteInt(v int32) error {
	return e.WriteLong(int64(v))
}

// WriteBoolean writes a single byte, 0 or 1.
func (e *Encoder) WriteBoolean(v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := e.w.Write([]byte{b})
	return err
}

// WriteFloat writes a little-endian IEEE 754 single.
func (e *Encoder) WriteFloat(v float32) error {
	binary.LittleEndian.PutUint32(e.scratch[:4], math.Float32bits(v))
	_, err := e.w.Write(e.scratch[:4])
	return err
}

// WriteDouble writes a little-endian IEEE 754 double.
func (e *Encoder) WriteDouble(v float64) error {
	binary.LittleEndian.PutUint64(e.scratch[:8], math.Float64bits(v))
	_, err := e.w.Write(e.scratch[:8])
	return err
}

// WriteBytes writes a length-prefixed byte sequence.
func (e *Encoder) WriteBytes(v []byte) error {
	if err := e.WriteLong(int64(len(v))); err != nil {
		return err
	}
	_, err := e.w.Write(v)
	return err
}

// WriteString writes a length-prefixed UTF-8 string.
func (e *Encoder) WriteString(v string) error {
	if err := e.WriteLong(int64(len(v))); err != nil {
		return err
	}
	_, err := io.WriteString(e.w, v)
	return err
}

// WriteRaw writes bytes with no length prefix (fixed values, sync markers).
func (e *Encoder) WriteRaw(v []byte) error {
	_, err := e.w.Write(v)
	return err
}

// Decoder reads Avro binary primitives. Errors are plain I/O or format
// errors; the container layer classifies them.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	if br, ok := r.(*bufio.Reader); ok {
		return &Decoder{r: br}
	}
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadLong reads a zig-zag varint encoded long.
func (d *Decoder) ReadLong() (int64, error) {
	u, err := binary.ReadUvarint(d.r)
	if err != nil {
		return 0, err
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

// ReadInt reads a zig-zag varint encoded int, rejecting values outside the
// 32-bit range.
func (d *Decoder) ReadInt() (int32, error) {
	v, err := d.ReadLong()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("int value %d out of range", v)
	}
	return int32(v), nil
}

// ReadBoolean reads a single byte, 0 or 1.
func (d *Decoder) ReadBoolean() (bool, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("boolean byte 0x%02x", b)
	}
}

// ReadFloat reads a little-endian IEEE 754 single.
func (d *Decoder) ReadFloat() (float32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadDouble reads a little-endian IEEE 754 double.
func (d *Decoder) ReadDouble() (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

// ReadBytes reads a length-prefixed byte sequence.
func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadLong()
	if err != nil {
		return nil, err
	}
	if n < 0 || n > maxAllocation {
		return nil, fmt.Errorf("byte length %d out of range", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (d *Decoder) ReadString() (string, error) {
	buf, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadRaw reads exactly n bytes with no length prefix.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	if n < 0 || n > maxAllocation {
		return nil, fmt.Errorf("raw length %d out of range", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
