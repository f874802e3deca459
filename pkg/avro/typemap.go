package avro

import (
	"github.com/ajitpratap0/tabavro/pkg/errors"
	"github.com/ajitpratap0/tabavro/pkg/tabular"
)

// DefaultRecordName is the name given to the top-level record when the
// caller supplies none. It appears verbatim in the schema text embedded in
// container file headers.
const DefaultRecordName = "topLevelRecord"

// Options controls naming of the top-level record produced by FromTabular.
// Nested records are named after their field, qualified under the enclosing
// record's full name, so naming stays deterministic and unique without
// further options.
type Options struct {
	RecordName string
	Namespace  string
}

// FromTabular maps a tabular schema to a container schema. Nullable fields
// become two-member unions with null first; Decimal materializes as string
// and Timestamp as long (millisecond precision, documented loss). The
// result is validated before being returned.
func FromTabular(schema *tabular.Schema, opts Options) (*Schema, error) {
	name := opts.RecordName
	if name == "" {
		name = DefaultRecordName
	}

	root := &Schema{Type: TypeRecord, Name: name, Namespace: opts.Namespace}
	enclosing := root.FullName()
	for _, f := range schema.Fields {
		mapped, err := fieldToContainer(f, enclosing)
		if err != nil {
			return nil, err
		}
		root.Fields = append(root.Fields, Field{Name: f.Name, Type: mapped})
	}
	if err := root.Validate(); err != nil {
		return nil, err
	}
	return root, nil
}

func fieldToContainer(f tabular.Field, enclosing string) (*Schema, error) {
	mapped, err := typeToContainer(f.Type, f.Name, enclosing)
	if err != nil {
		return nil, err
	}
	if f.Nullable {
		if mapped.Type == TypeNull {
			return nil, errors.New(errors.KindUnsupportedType, "nullable null field").WithField(f.Name)
		}
		return &Schema{Type: TypeUnion, Union: []*Schema{{Type: TypeNull}, mapped}}, nil
	}
	return mapped, nil
}

// typeToContainer maps one tabular type. nameHint is the enclosing field
// name, used to name nested records; enclosing is the full name of the
// record the result will live in, used as the nested namespace.
func typeToContainer(t tabular.Type, nameHint, enclosing string) (*Schema, error) {
	switch t.Kind {
	case tabular.KindNull:
		return &Schema{Type: TypeNull}, nil
	case tabular.KindBoolean:
		return &Schema{Type: TypeBoolean}, nil
	case tabular.KindInt32:
		return &Schema{Type: TypeInt}, nil
	case tabular.KindInt64:
		return &Schema{Type: TypeLong}, nil
	case tabular.KindFloat32:
		return &Schema{Type: TypeFloat}, nil
	case tabular.KindFloat64:
		return &Schema{Type: TypeDouble}, nil
	case tabular.KindString:
		return &Schema{Type: TypeString}, nil
	case tabular.KindBytes:
		return &Schema{Type: TypeBytes}, nil
	case tabular.KindDecimal:
		// No native representation; canonical decimal text with the
		// declared scale. Scale rides along for the encoder but is not
		// part of the schema text.
		return &Schema{Type: TypeString, Scale: t.Scale}, nil
	case tabular.KindTimestamp:
		return &Schema{Type: TypeLong}, nil
	case tabular.KindArray:
		items, err := typeToContainer(*t.Elem, nameHint, enclosing)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: TypeArray, Items: items}, nil
	case tabular.KindMap:
		values, err := typeToContainer(*t.Elem, nameHint, enclosing)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: TypeMap, Values: values}, nil
	case tabular.KindStruct:
		record := &Schema{Type: TypeRecord, Name: nameHint, Namespace: enclosing}
		inner := record.FullName()
		for _, f := range t.Fields {
			mapped, err := fieldToContainer(f, inner)
			if err != nil {
				return nil, err
			}
			record.Fields = append(record.Fields, Field{Name: f.Name, Type: mapped})
		}
		return record, nil
	default:
		return nil, errors.Newf(errors.KindUnsupportedType, "tabular type %s has no container representation", t)
	}
}

// ToTabular maps a container schema back to a tabular schema. The root must
// be a record. Decimal cannot be recovered (its container form is a plain
// string) and comes back as String; Timestamp comes back as Int64.
func ToTabular(schema *Schema) (*tabular.Schema, error) {
	if schema.Type != TypeRecord {
		return nil, errors.Newf(errors.KindUnsupportedType, "top-level schema is %s, want record", schema.Type)
	}
	fields, err := recordToTabularFields(schema)
	if err != nil {
		return nil, err
	}
	return &tabular.Schema{Name: schema.Name, Fields: fields}, nil
}

func recordToTabularFields(record *Schema) ([]tabular.Field, error) {
	fields := make([]tabular.Field, 0, len(record.Fields))
	for _, f := range record.Fields {
		t, nullable, err := typeToTabular(f.Type)
		if err != nil {
			var e *errors.Error
			if errors.AsError(err, &e) {
				e.WithField(f.Name)
			}
			return nil, err
		}
		fields = append(fields, tabular.Field{Name: f.Name, Type: t, Nullable: nullable})
	}
	return fields, nil
}

func typeToTabular(s *Schema) (tabular.Type, bool, error) {
	switch s.Type {
	case TypeNull:
		return tabular.Null(), false, nil
	case TypeBoolean:
		return tabular.Boolean(), false, nil
	case TypeInt:
		return tabular.Int32(), false, nil
	case TypeLong:
		return tabular.Int64(), false, nil
	case TypeFloat:
		return tabular.Float32(), false, nil
	case TypeDouble:
		return tabular.Float64(), false, nil
	case TypeString:
		return tabular.String(), false, nil
	case TypeBytes, TypeFixed:
		// Fixed surfaces as bytes; the codec still enforces its size.
		return tabular.Bytes(), false, nil
	case TypeEnum:
		return tabular.String(), false, nil
	case TypeArray:
		elem, nullable, err := typeToTabular(s.Items)
		if err != nil {
			return tabular.Type{}, false, err
		}
		if nullable {
			return tabular.Type{}, false, errors.New(errors.KindUnsupportedUnionShape, "nullable array items are not supported")
		}
		return tabular.Array(elem), false, nil
	case TypeMap:
		elem, nullable, err := typeToTabular(s.Values)
		if err != nil {
			return tabular.Type{}, false, err
		}
		if nullable {
			return tabular.Type{}, false, errors.New(errors.KindUnsupportedUnionShape, "nullable map values are not supported")
		}
		return tabular.Map(elem), false, nil
	case TypeRecord:
		fields, err := recordToTabularFields(s)
		if err != nil {
			return tabular.Type{}, false, err
		}
		return tabular.Struct(fields...), false, nil
	case TypeUnion:
		return unionToTabular(s)
	default:
		return tabular.Type{}, false, errors.Newf(errors.KindUnsupportedType, "container type %s has no tabular representation", s.Type)
	}
}

// unionToTabular resolves the two supported union shapes: [null, T] becomes
// nullable T, and a union whose non-null members are all numeric becomes
// the widest member (double > float > long > int), nullable when null is
// present. Anything else is an unsupported shape.
func unionToTabular(s *Schema) (tabular.Type, bool, error) {
	members := s.Union
	nullable := false
	if len(members) > 0 && members[0].Type == TypeNull {
		nullable = true
		members = members[1:]
	}
	switch {
	case len(members) == 0:
		return tabular.Type{}, false, errors.New(errors.KindUnsupportedUnionShape, "union of null alone")
	case len(members) == 1:
		t, innerNullable, err := typeToTabular(members[0])
		if err != nil {
			return tabular.Type{}, false, err
		}
		if innerNullable {
			return tabular.Type{}, false, errors.New(errors.KindUnsupportedUnionShape, "union nested inside union")
		}
		return t, nullable, nil
	default:
		widest, err := widestNumeric(members)
		if err != nil {
			return tabular.Type{}, false, err
		}
		return widest, nullable, nil
	}
}

var numericWidth = map[Type]int{
	TypeInt:    1,
	TypeLong:   2,
	TypeFloat:  3,
	TypeDouble: 4,
}

var numericTabular = map[Type]tabular.Type{
	TypeInt:    tabular.Int32(),
	TypeLong:   tabular.Int64(),
	TypeFloat:  tabular.Float32(),
	TypeDouble: tabular.Float64(),
}

func widestNumeric(members []*Schema) (tabular.Type, error) {
	widest := Type("")
	width := 0
	for _, m := range members {
		w, ok := numericWidth[m.Type]
		if !ok {
			return tabular.Type{}, errors.Newf(errors.KindUnsupportedUnionShape,
				"union member %s in a multi-member union", m.Type)
		}
		if w > width {
			width = w
			widest = m.Type
		}
	}
	return numericTabular[widest], nil
}
