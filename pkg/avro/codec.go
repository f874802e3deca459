package avro

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/tabavro/pkg/errors"
	"github.com/ajitpratap0/tabavro/pkg/tabular"
)

// Codec encodes and decodes rows against a fixed pairing of a tabular
// schema and a container schema. The pairing is established once per
// conversion job and is immutable; a Codec is safe for concurrent use.
//
// The tabular side names the value semantics (Decimal scale, Timestamp),
// the container side names the wire format. The codec never infers
// structure from data: a row must have the schema's arity and per-position
// types or encoding fails with a nullability/conformance error naming the
// field.
type Codec struct {
	Tabular   *tabular.Schema
	Container *Schema
}

// NewCodec builds the write-path pairing: the container schema is derived
// from the tabular schema with the given naming options.
func NewCodec(schema *tabular.Schema, opts Options) (*Codec, error) {
	container, err := FromTabular(schema, opts)
	if err != nil {
		return nil, err
	}
	return &Codec{Tabular: schema, Container: container}, nil
}

// NewCodecFromContainer builds the read-path pairing from a schema parsed
// out of a file header. The tabular schema is the mapper's structural
// inverse, so Decimal fields surface as String and Timestamp as Int64.
func NewCodecFromContainer(container *Schema) (*Codec, error) {
	if err := container.Validate(); err != nil {
		return nil, err
	}
	tab, err := ToTabular(container)
	if err != nil {
		return nil, err
	}
	return &Codec{Tabular: tab, Container: container}, nil
}

// NewCodecWithSchemas builds a read-path pairing with a caller-declared
// tabular schema, letting Decimal and Timestamp fields decode to their
// declared types instead of the container's erased ones. The pairing is
// checked structurally before any value is decoded.
func NewCodecWithSchemas(schema *tabular.Schema, container *Schema) (*Codec, error) {
	if err := container.Validate(); err != nil {
		return nil, err
	}
	if container.Type != TypeRecord {
		return nil, errors.Newf(errors.KindUnsupportedType, "top-level schema is %s, want record", container.Type)
	}
	if err := checkFieldPairing(schema.Fields, container.Fields); err != nil {
		return nil, err
	}
	return &Codec{Tabular: schema, Container: container}, nil
}

func checkFieldPairing(tabFields []tabular.Field, avroFields []Field) error {
	if len(tabFields) != len(avroFields) {
		return errors.Newf(errors.KindUnsupportedType,
			"schema pairing width mismatch: %d tabular fields, %d container fields",
			len(tabFields), len(avroFields))
	}
	for i, tf := range tabFields {
		af := avroFields[i]
		cs := af.Type
		if tf.Nullable {
			if !cs.IsNullableUnion() {
				return errors.New(errors.KindUnsupportedType, "nullable field paired with non-union").WithField(tf.Name)
			}
			cs = cs.Union[1]
		} else if cs.Type == TypeUnion {
			return errors.New(errors.KindUnsupportedType, "non-nullable field paired with union").WithField(tf.Name)
		}
		if err := checkTypePairing(tf.Type, cs); err != nil {
			var e *errors.Error
			if errors.AsError(err, &e) {
				e.WithField(tf.Name)
			}
			return err
		}
	}
	return nil
}

func checkTypePairing(t tabular.Type, cs *Schema) error {
	ok := false
	switch t.Kind {
	case tabular.KindNull:
		ok = cs.Type == TypeNull
	case tabular.KindBoolean:
		ok = cs.Type == TypeBoolean
	case tabular.KindInt32:
		ok = cs.Type == TypeInt
	case tabular.KindInt64, tabular.KindTimestamp:
		ok = cs.Type == TypeLong
	case tabular.KindFloat32:
		ok = cs.Type == TypeFloat
	case tabular.KindFloat64:
		ok = cs.Type == TypeDouble
	case tabular.KindString, tabular.KindDecimal:
		ok = cs.Type == TypeString || cs.Type == TypeEnum
	case tabular.KindBytes:
		ok = cs.Type == TypeBytes || cs.Type == TypeFixed
	case tabular.KindArray:
		if cs.Type == TypeArray {
			return checkTypePairing(*t.Elem, cs.Items)
		}
	case tabular.KindMap:
		if cs.Type == TypeMap {
			return checkTypePairing(*t.Elem, cs.Values)
		}
	case tabular.KindStruct:
		if cs.Type == TypeRecord {
			return checkFieldPairing(t.Fields, cs.Fields)
		}
	}
	if !ok {
		return errors.Newf(errors.KindUnsupportedType, "tabular %s cannot pair with container %s", t, cs.Type)
	}
	return nil
}

// EncodeRow writes one row in the container binary format.
func (c *Codec) EncodeRow(enc *Encoder, row tabular.Row) error {
	return c.encodeRecord(enc, c.Tabular.Fields, c.Container.Fields, row)
}

func (c *Codec) encodeRecord(enc *Encoder, tabFields []tabular.Field, avroFields []Field, row tabular.Row) error {
	if len(row) != len(tabFields) {
		return errors.Newf(errors.KindNullabilityViolation,
			"row width %d does not conform to schema width %d", len(row), len(tabFields))
	}
	for i, tf := range tabFields {
		if err := c.encodeField(enc, tf, avroFields[i].Type, row[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Codec) encodeField(enc *Encoder, f tabular.Field, cs *Schema, v interface{}) error {
	if cs.Type == TypeUnion {
		idx, member := unionMemberForValue(cs, v)
		if member == nil {
			return errors.Newf(errors.KindNullabilityViolation,
				"value %T matches no union member", v).WithField(f.Name)
		}
		if err := enc.WriteLong(int64(idx)); err != nil {
			return err
		}
		if member.Type == TypeNull {
			return nil
		}
		return c.encodeValue(enc, f.Name, f.Type, member, v)
	}
	if v == nil && cs.Type != TypeNull {
		return errors.New(errors.KindNullabilityViolation, "null value in non-nullable field").WithField(f.Name)
	}
	return c.encodeValue(enc, f.Name, f.Type, cs, v)
}

// unionMemberForValue picks the union member a runtime value encodes as.
// The tabular value carries its variant tag (its dynamic type), so this is
// a direct lookup, not a trial decode: the first member whose type admits
// the value losslessly wins, and a numeric value with no lossless member
// falls back to the widest numeric member.
func unionMemberForValue(cs *Schema, v interface{}) (int, *Schema) {
	for i, m := range cs.Union {
		if memberAdmits(m, v) {
			return i, m
		}
	}
	if isNumericValue(v) {
		widest, width := -1, 0
		for i, m := range cs.Union {
			if w, ok := numericWidth[m.Type]; ok && w > width {
				widest, width = i, w
			}
		}
		if widest >= 0 {
			return widest, cs.Union[widest]
		}
	}
	return -1, nil
}

func memberAdmits(m *Schema, v interface{}) bool {
	switch v := v.(type) {
	case nil:
		return m.Type == TypeNull
	case bool:
		return m.Type == TypeBoolean
	case int32:
		return m.Type == TypeInt || m.Type == TypeLong || m.Type == TypeDouble
	case int64:
		return m.Type == TypeLong
	case float32:
		return m.Type == TypeFloat || m.Type == TypeDouble
	case float64:
		return m.Type == TypeDouble
	case string:
		return m.Type == TypeString || (m.Type == TypeEnum && enumIndex(m, v) >= 0)
	case []byte:
		return m.Type == TypeBytes || (m.Type == TypeFixed && len(v) == m.Size)
	case decimal.Decimal:
		return m.Type == TypeString
	case time.Time:
		return m.Type == TypeLong
	case []interface{}:
		return m.Type == TypeArray || m.Type == TypeRecord
	case map[string]interface{}:
		return m.Type == TypeMap
	case tabular.Row:
		return m.Type == TypeRecord
	default:
		return false
	}
}

func isNumericValue(v interface{}) bool {
	switch v.(type) {
	case int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func enumIndex(cs *Schema, symbol string) int {
	for i, s := range cs.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

func (c *Codec) encodeValue(enc *Encoder, field string, t tabular.Type, cs *Schema, v interface{}) error {
	mismatch := func() error {
		return errors.Newf(errors.KindNullabilityViolation,
			"value %T does not conform to %s", v, cs.Type).WithField(field)
	}

	switch cs.Type {
	case TypeNull:
		if v != nil {
			return mismatch()
		}
		return nil

	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		return enc.WriteBoolean(b)

	case TypeInt:
		i, ok := v.(int32)
		if !ok {
			return mismatch()
		}
		return enc.WriteInt(i)

	case TypeLong:
		switch v := v.(type) {
		case int64:
			return enc.WriteLong(v)
		case int32:
			return enc.WriteLong(int64(v))
		case time.Time:
			// Milliseconds since epoch, flooring sub-millisecond
			// precision toward the earlier instant.
			return enc.WriteLong(v.UnixMilli())
		default:
			return mismatch()
		}

	case TypeFloat:
		switch v := v.(type) {
		case float32:
			return enc.WriteFloat(v)
		case float64:
			return enc.WriteFloat(float32(v))
		case int32:
			return enc.WriteFloat(float32(v))
		case int64:
			return enc.WriteFloat(float32(v))
		default:
			return mismatch()
		}

	case TypeDouble:
		switch v := v.(type) {
		case float64:
			return enc.WriteDouble(v)
		case float32:
			return enc.WriteDouble(float64(v))
		case int32:
			return enc.WriteDouble(float64(v))
		case int64:
			return enc.WriteDouble(float64(v))
		default:
			return mismatch()
		}

	case TypeBytes:
		b, ok := v.([]byte)
		if !ok {
			return mismatch()
		}
		return enc.WriteBytes(b)

	case TypeString:
		switch v := v.(type) {
		case string:
			return enc.WriteString(v)
		case decimal.Decimal:
			scale := t.Scale
			if t.Kind != tabular.KindDecimal {
				scale = cs.Scale
			}
			return enc.WriteString(v.StringFixed(int32(scale)))
		default:
			return mismatch()
		}

	case TypeFixed:
		b, ok := v.([]byte)
		if !ok {
			return mismatch()
		}
		if len(b) != cs.Size {
			return errors.Newf(errors.KindFixedSizeMismatch,
				"fixed %q wants %d bytes, value has %d", cs.Name, cs.Size, len(b)).WithField(field)
		}
		return enc.WriteRaw(b)

	case TypeEnum:
		s, ok := v.(string)
		if !ok {
			return mismatch()
		}
		idx := enumIndex(cs, s)
		if idx < 0 {
			return errors.Newf(errors.KindNullabilityViolation,
				"value %q is not a symbol of enum %q", s, cs.Name).WithField(field)
		}
		return enc.WriteInt(int32(idx))

	case TypeArray:
		items, ok := v.([]interface{})
		if !ok {
			return mismatch()
		}
		elem := elemType(t)
		if len(items) > 0 {
			if err := enc.WriteLong(int64(len(items))); err != nil {
				return err
			}
			for _, item := range items {
				if item == nil {
					return errors.New(errors.KindNullabilityViolation,
						"null array item in non-nullable array").WithField(field)
				}
				if err := c.encodeValue(enc, field, elem, cs.Items, item); err != nil {
					return err
				}
			}
		}
		return enc.WriteLong(0)

	case TypeMap:
		entries, ok := v.(map[string]interface{})
		if !ok {
			return mismatch()
		}
		elem := elemType(t)
		if len(entries) > 0 {
			if err := enc.WriteLong(int64(len(entries))); err != nil {
				return err
			}
			for key, value := range entries {
				if err := enc.WriteString(key); err != nil {
					return err
				}
				if value == nil {
					return errors.New(errors.KindNullabilityViolation,
						"null map value in non-nullable map").WithField(field)
				}
				if err := c.encodeValue(enc, field, elem, cs.Values, value); err != nil {
					return err
				}
			}
		}
		return enc.WriteLong(0)

	case TypeRecord:
		row, ok := v.(tabular.Row)
		if !ok {
			if generic, isSlice := v.([]interface{}); isSlice {
				row = tabular.Row(generic)
			} else {
				return mismatch()
			}
		}
		tabFields := t.Fields
		if t.Kind != tabular.KindStruct {
			return mismatch()
		}
		return c.encodeRecord(enc, tabFields, cs.Fields, row)

	default:
		return errors.Newf(errors.KindUnsupportedType, "cannot encode container type %s", cs.Type)
	}
}

// elemType returns the element (array) or value (map) type of t, or a
// zero Type when t carries none.
func elemType(t tabular.Type) tabular.Type {
	if t.Elem != nil {
		return *t.Elem
	}
	return tabular.Type{}
}

// DecodeRow reads one row in the container binary format.
func (c *Codec) DecodeRow(dec *Decoder) (tabular.Row, error) {
	return c.decodeRecord(dec, c.Tabular.Fields, c.Container.Fields)
}

func (c *Codec) decodeRecord(dec *Decoder, tabFields []tabular.Field, avroFields []Field) (tabular.Row, error) {
	row := make(tabular.Row, len(tabFields))
	for i, tf := range tabFields {
		v, err := c.decodeField(dec, tf, avroFields[i].Type)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func (c *Codec) decodeField(dec *Decoder, f tabular.Field, cs *Schema) (interface{}, error) {
	if cs.Type == TypeUnion {
		idx, err := dec.ReadLong()
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= int64(len(cs.Union)) {
			return nil, errors.Newf(errors.KindCorruptContainer,
				"union index %d out of range [0,%d)", idx, len(cs.Union)).WithField(f.Name)
		}
		member := cs.Union[idx]
		if member.Type == TypeNull {
			return nil, nil
		}
		return c.decodeValue(dec, f.Name, f.Type, member)
	}
	return c.decodeValue(dec, f.Name, f.Type, cs)
}

func (c *Codec) decodeValue(dec *Decoder, field string, t tabular.Type, cs *Schema) (interface{}, error) {
	switch cs.Type {
	case TypeNull:
		return nil, nil

	case TypeBoolean:
		return dec.ReadBoolean()

	case TypeInt:
		v, err := dec.ReadInt()
		if err != nil {
			return nil, err
		}
		return widenInt32(v, t.Kind), nil

	case TypeLong:
		v, err := dec.ReadLong()
		if err != nil {
			return nil, err
		}
		switch t.Kind {
		case tabular.KindTimestamp:
			return time.UnixMilli(v).UTC(), nil
		case tabular.KindFloat64:
			return float64(v), nil
		default:
			return v, nil
		}

	case TypeFloat:
		v, err := dec.ReadFloat()
		if err != nil {
			return nil, err
		}
		if t.Kind == tabular.KindFloat64 {
			return float64(v), nil
		}
		return v, nil

	case TypeDouble:
		return dec.ReadDouble()

	case TypeBytes:
		return dec.ReadBytes()

	case TypeString:
		s, err := dec.ReadString()
		if err != nil {
			return nil, err
		}
		if t.Kind == tabular.KindDecimal {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, errors.Newf(errors.KindDecimalParse,
					"malformed decimal text %q", s).WithField(field)
			}
			return d, nil
		}
		return s, nil

	case TypeFixed:
		return dec.ReadRaw(cs.Size)

	case TypeEnum:
		idx, err := dec.ReadInt()
		if err != nil {
			return nil, err
		}
		if idx < 0 || int(idx) >= len(cs.Symbols) {
			return nil, errors.Newf(errors.KindCorruptContainer,
				"enum index %d out of range for %q", idx, cs.Name).WithField(field)
		}
		return cs.Symbols[idx], nil

	case TypeArray:
		elem := elemType(t)
		items := []interface{}{}
		for {
			n, err := dec.ReadLong()
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return items, nil
			}
			if n < 0 {
				// A negative count is followed by the block's byte size,
				// which sequential decoding does not need.
				n = -n
				if _, err := dec.ReadLong(); err != nil {
					return nil, err
				}
			}
			for ; n > 0; n-- {
				item, err := c.decodeValue(dec, field, elem, cs.Items)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
		}

	case TypeMap:
		elem := elemType(t)
		entries := map[string]interface{}{}
		for {
			n, err := dec.ReadLong()
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return entries, nil
			}
			if n < 0 {
				n = -n
				if _, err := dec.ReadLong(); err != nil {
					return nil, err
				}
			}
			for ; n > 0; n-- {
				key, err := dec.ReadString()
				if err != nil {
					return nil, err
				}
				value, err := c.decodeValue(dec, field, elem, cs.Values)
				if err != nil {
					return nil, err
				}
				entries[key] = value
			}
		}

	case TypeRecord:
		return c.decodeRecord(dec, t.Fields, cs.Fields)

	default:
		return nil, errors.Newf(errors.KindUnsupportedType, "cannot decode container type %s", cs.Type)
	}
}

func widenInt32(v int32, kind tabular.Kind) interface{} {
	switch kind {
	case tabular.KindInt64:
		return int64(v)
	case tabular.KindFloat32:
		return float32(v)
	case tabular.KindFloat64:
		return float64(v)
	default:
		return v
	}
}
