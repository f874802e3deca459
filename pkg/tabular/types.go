// Package tabular defines the row-oriented type system tabavro converts
// from and to: named, ordered, nullable fields over a closed set of
// primitive and nested types.
//
// Runtime values are held as interface{} with one concrete Go type per
// kind:
//
//	Null      nil
//	Boolean   bool
//	Int32     int32
//	Int64     int64
//	Float32   float32
//	Float64   float64
//	String    string
//	Bytes     []byte
//	Decimal   decimal.Decimal
//	Timestamp time.Time
//	Array     []interface{}
//	Map       map[string]interface{}
//	Struct    tabular.Row
//
// A Row is positional: element i conforms to field i of the struct type it
// belongs to. The codec never infers structure from data; a row's width and
// per-position types must conform to its schema.
package tabular

import (
	"fmt"
	"strings"
)

// Kind identifies a tabular type variant.
type Kind string

const (
	KindNull      Kind = "null"
	KindBoolean   Kind = "boolean"
	KindInt32     Kind = "int32"
	KindInt64     Kind = "int64"
	KindFloat32   Kind = "float32"
	KindFloat64   Kind = "float64"
	KindString    Kind = "string"
	KindBytes     Kind = "bytes"
	KindDecimal   Kind = "decimal"
	KindTimestamp Kind = "timestamp"
	KindArray     Kind = "array"
	KindMap       Kind = "map"
	KindStruct    Kind = "struct"
)

// Type is a tabular field type. Precision and Scale apply to Decimal only,
// Elem to Array (element type) and Map (value type; keys are always
// strings), Fields to Struct.
type Type struct {
	Kind      Kind
	Precision int
	Scale     int
	Elem      *Type
	Fields    []Field
}

// Field is a named, ordered member of a struct type. Field order is
// significant and preserved through both mapping directions.
type Field struct {
	Name     string
	Type     Type
	Nullable bool
}

// Schema is the root struct type of a conversion job: a named, ordered
// field list. Schemas are derived once per job and treated as immutable.
type Schema struct {
	Name   string
	Fields []Field
}

// Row is one record's values in field order.
type Row []interface{}

// Constructors for the closed type set.

func Null() Type      { return Type{Kind: KindNull} }
func Boolean() Type   { return Type{Kind: KindBoolean} }
func Int32() Type     { return Type{Kind: KindInt32} }
func Int64() Type     { return Type{Kind: KindInt64} }
func Float32() Type   { return Type{Kind: KindFloat32} }
func Float64() Type   { return Type{Kind: KindFloat64} }
func String() Type    { return Type{Kind: KindString} }
func Bytes() Type     { return Type{Kind: KindBytes} }
func Timestamp() Type { return Type{Kind: KindTimestamp} }

// Decimal returns a decimal type with the given precision and scale.
func Decimal(precision, scale int) Type {
	return Type{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// Array returns an array type with the given element type.
func Array(elem Type) Type {
	return Type{Kind: KindArray, Elem: &elem}
}

// Map returns a map type with string keys and the given value type.
func Map(value Type) Type {
	return Type{Kind: KindMap, Elem: &value}
}

// Struct returns a struct type with the given ordered fields.
func Struct(fields ...Field) Type {
	return Type{Kind: KindStruct, Fields: fields}
}

// String renders the type for diagnostics.
func (t Type) String() string {
	switch t.Kind {
	case KindDecimal:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case KindArray:
		return fmt.Sprintf("array<%s>", t.Elem)
	case KindMap:
		return fmt.Sprintf("map<%s>", t.Elem)
	case KindStruct:
		var b strings.Builder
		b.WriteString("struct<")
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(f.Type.String())
			if f.Nullable {
				b.WriteString("?")
			}
		}
		b.WriteString(">")
		return b.String()
	default:
		return string(t.Kind)
	}
}

// Equal reports structural equality of two types, including field order.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindDecimal:
		return t.Precision == other.Precision && t.Scale == other.Scale
	case KindArray, KindMap:
		return t.Elem.Equal(*other.Elem)
	case KindStruct:
		if len(t.Fields) != len(other.Fields) {
			return false
		}
		for i, f := range t.Fields {
			o := other.Fields[i]
			if f.Name != o.Name || f.Nullable != o.Nullable || !f.Type.Equal(o.Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// AsStruct returns the schema's root type as a struct Type.
func (s *Schema) AsStruct() Type {
	return Type{Kind: KindStruct, Fields: s.Fields}
}

// String renders the schema for diagnostics.
func (s *Schema) String() string {
	return fmt.Sprintf("%s %s", s.Name, s.AsStruct())
}
