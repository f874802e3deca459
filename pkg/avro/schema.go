// Package avro implements the container-format side of tabavro: the schema
// language of Avro object container files, the bidirectional mapper between
// that language and the tabular type system, and the binary value codec.
//
// The schema subset covered here is the one the mapper can produce or
// consume: primitives, fixed, enum, array, map, record, and unions. Anything
// outside it fails with a typed error rather than a best-effort guess.
package avro

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/tabavro/pkg/errors"
)

// Type identifies an Avro schema type.
type Type string

const (
	TypeNull    Type = "null"
	TypeBoolean Type = "boolean"
	TypeInt     Type = "int"
	TypeLong    Type = "long"
	TypeFloat   Type = "float"
	TypeDouble  Type = "double"
	TypeBytes   Type = "bytes"
	TypeString  Type = "string"
	TypeFixed   Type = "fixed"
	TypeEnum    Type = "enum"
	TypeArray   Type = "array"
	TypeMap     Type = "map"
	TypeRecord  Type = "record"
	TypeUnion   Type = "union"
)

// Schema is one node of an Avro schema tree.
//
// Name and Namespace apply to record, enum, and fixed types. Fields applies
// to records, Symbols to enums, Size to fixed, Items to arrays, Values to
// maps, and Union to unions. Scale carries the declared fractional-digit
// count of a decimal that the mapper materialized as a string; it is not
// part of the schema text.
type Schema struct {
	Type      Type
	Name      string
	Namespace string
	Fields    []Field
	Symbols   []string
	Size      int
	Items     *Schema
	Values    *Schema
	Union     []*Schema

	Scale int
}

// Field is a named member of a record schema. Order is significant: values
// are written positionally with no field name on the wire.
type Field struct {
	Name string
	Type *Schema
}

// FullName returns the namespace-qualified name of a named type, or the
// bare type for everything else.
func (s *Schema) FullName() string {
	switch s.Type {
	case TypeRecord, TypeEnum, TypeFixed:
		if s.Namespace != "" {
			return s.Namespace + "." + s.Name
		}
		return s.Name
	default:
		return string(s.Type)
	}
}

// IsNullableUnion reports whether s is a two-member union with null first.
func (s *Schema) IsNullableUnion() bool {
	return s.Type == TypeUnion && len(s.Union) == 2 && s.Union[0].Type == TypeNull
}

// identity returns the key by which union members must be pairwise
// distinct: the full name for named types, the bare type otherwise. Avro
// permits at most one array and one map per union regardless of their
// element types.
func (s *Schema) identity() string {
	switch s.Type {
	case TypeRecord, TypeEnum, TypeFixed:
		return string(s.Type) + ":" + s.FullName()
	default:
		return string(s.Type)
	}
}

// Validate checks the structural invariants the container format requires
// before any bytes are written: named types have non-empty names, union
// members are pairwise distinct, and unions do not nest.
func (s *Schema) Validate() error {
	switch s.Type {
	case TypeRecord:
		if s.Name == "" {
			return errors.New(errors.KindUnsupportedType, "record with empty name")
		}
		seen := make(map[string]bool, len(s.Fields))
		for _, f := range s.Fields {
			if seen[f.Name] {
				return errors.Newf(errors.KindUnsupportedType, "duplicate record field %q", f.Name).WithField(f.Name)
			}
			seen[f.Name] = true
			if err := f.Type.Validate(); err != nil {
				return err
			}
		}
	case TypeEnum:
		if s.Name == "" {
			return errors.New(errors.KindUnsupportedType, "enum with empty name")
		}
		if len(s.Symbols) == 0 {
			return errors.Newf(errors.KindUnsupportedType, "enum %q with no symbols", s.Name)
		}
	case TypeFixed:
		if s.Name == "" {
			return errors.New(errors.KindUnsupportedType, "fixed with empty name")
		}
		if s.Size <= 0 {
			return errors.Newf(errors.KindUnsupportedType, "fixed %q with size %d", s.Name, s.Size)
		}
	case TypeArray:
		return s.Items.Validate()
	case TypeMap:
		return s.Values.Validate()
	case TypeUnion:
		if len(s.Union) == 0 {
			return errors.New(errors.KindUnsupportedUnionShape, "empty union")
		}
		seen := make(map[string]bool, len(s.Union))
		for _, m := range s.Union {
			if m.Type == TypeUnion {
				return errors.New(errors.KindUnsupportedUnionShape, "union nested inside union")
			}
			id := m.identity()
			if seen[id] {
				return errors.Newf(errors.KindUnsupportedUnionShape, "union members not pairwise distinct: %s", id)
			}
			seen[id] = true
			if err := m.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// String returns the canonical JSON schema text. Namespace and name appear
// verbatim inside this text so downstream readers recover them from header
// metadata alone.
func (s *Schema) String() string {
	data, err := json.Marshal(s.jsonValue())
	if err != nil {
		// The tree is built from plain strings, maps, and slices; marshal
		// cannot fail on it.
		panic(fmt.Sprintf("avro: schema marshal: %v", err))
	}
	return string(data)
}

// jsonValue builds the JSON tree for the canonical schema text. Primitives
// render as bare strings, unions as arrays, everything else as objects.
func (s *Schema) jsonValue() interface{} {
	switch s.Type {
	case TypeNull, TypeBoolean, TypeInt, TypeLong, TypeFloat, TypeDouble, TypeBytes, TypeString:
		return string(s.Type)
	case TypeFixed:
		return map[string]interface{}{
			"type": "fixed",
			"name": s.Name,
			"size": s.Size,
		}
	case TypeEnum:
		return map[string]interface{}{
			"type":    "enum",
			"name":    s.Name,
			"symbols": s.Symbols,
		}
	case TypeArray:
		return map[string]interface{}{
			"type":  "array",
			"items": s.Items.jsonValue(),
		}
	case TypeMap:
		return map[string]interface{}{
			"type":   "map",
			"values": s.Values.jsonValue(),
		}
	case TypeUnion:
		members := make([]interface{}, len(s.Union))
		for i, m := range s.Union {
			members[i] = m.jsonValue()
		}
		return members
	case TypeRecord:
		fields := make([]interface{}, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = map[string]interface{}{
				"name": f.Name,
				"type": f.Type.jsonValue(),
			}
		}
		obj := map[string]interface{}{
			"type":   "record",
			"name":   s.Name,
			"fields": fields,
		}
		if s.Namespace != "" {
			obj["namespace"] = s.Namespace
		}
		return obj
	default:
		panic(fmt.Sprintf("avro: unknown schema type %q", s.Type))
	}
}

// Parse decodes Avro schema text into a Schema tree. It accepts the subset
// Validate accepts and fails with UnsupportedType for anything else.
func Parse(text []byte) (*Schema, error) {
	var raw interface{}
	if err := json.Unmarshal(text, &raw); err != nil {
		return nil, errors.Wrap(err, errors.KindUnsupportedType, "schema text is not valid JSON")
	}
	s, err := parseValue(raw)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseValue(raw interface{}) (*Schema, error) {
	switch v := raw.(type) {
	case string:
		return parsePrimitive(v)
	case []interface{}:
		members := make([]*Schema, 0, len(v))
		for _, m := range v {
			member, err := parseValue(m)
			if err != nil {
				return nil, err
			}
			members = append(members, member)
		}
		return &Schema{Type: TypeUnion, Union: members}, nil
	case map[string]interface{}:
		return parseObject(v)
	default:
		return nil, errors.Newf(errors.KindUnsupportedType, "unexpected schema element %T", raw)
	}
}

func parsePrimitive(name string) (*Schema, error) {
	switch Type(name) {
	case TypeNull, TypeBoolean, TypeInt, TypeLong, TypeFloat, TypeDouble, TypeBytes, TypeString:
		return &Schema{Type: Type(name)}, nil
	default:
		return nil, errors.Newf(errors.KindUnsupportedType, "unknown type %q", name)
	}
}

func parseObject(obj map[string]interface{}) (*Schema, error) {
	typeName, _ := obj["type"].(string)
	switch Type(typeName) {
	case TypeNull, TypeBoolean, TypeInt, TypeLong, TypeFloat, TypeDouble, TypeBytes, TypeString:
		// Primitives may legally be wrapped in an object.
		return &Schema{Type: Type(typeName)}, nil
	case TypeFixed:
		size, ok := obj["size"].(float64)
		if !ok {
			return nil, errors.New(errors.KindUnsupportedType, "fixed without numeric size")
		}
		name, _ := obj["name"].(string)
		namespace, _ := obj["namespace"].(string)
		return &Schema{Type: TypeFixed, Name: name, Namespace: namespace, Size: int(size)}, nil
	case TypeEnum:
		name, _ := obj["name"].(string)
		namespace, _ := obj["namespace"].(string)
		rawSymbols, _ := obj["symbols"].([]interface{})
		symbols := make([]string, 0, len(rawSymbols))
		for _, rs := range rawSymbols {
			symbol, ok := rs.(string)
			if !ok {
				return nil, errors.Newf(errors.KindUnsupportedType, "enum %q with non-string symbol", name)
			}
			symbols = append(symbols, symbol)
		}
		return &Schema{Type: TypeEnum, Name: name, Namespace: namespace, Symbols: symbols}, nil
	case TypeArray:
		items, err := parseValue(obj["items"])
		if err != nil {
			return nil, err
		}
		return &Schema{Type: TypeArray, Items: items}, nil
	case TypeMap:
		values, err := parseValue(obj["values"])
		if err != nil {
			return nil, err
		}
		return &Schema{Type: TypeMap, Values: values}, nil
	case TypeRecord:
		name, _ := obj["name"].(string)
		namespace, _ := obj["namespace"].(string)
		rawFields, ok := obj["fields"].([]interface{})
		if !ok {
			return nil, errors.Newf(errors.KindUnsupportedType, "record %q without fields", name)
		}
		fields := make([]Field, 0, len(rawFields))
		for _, rf := range rawFields {
			fieldObj, ok := rf.(map[string]interface{})
			if !ok {
				return nil, errors.Newf(errors.KindUnsupportedType, "record %q with malformed field", name)
			}
			fieldName, _ := fieldObj["name"].(string)
			fieldType, err := parseValue(fieldObj["type"])
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: fieldName, Type: fieldType})
		}
		return &Schema{Type: TypeRecord, Name: name, Namespace: namespace, Fields: fields}, nil
	default:
		return nil, errors.Newf(errors.KindUnsupportedType, "unknown type %q", typeName)
	}
}
