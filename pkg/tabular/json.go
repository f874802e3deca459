package tabular

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// JSON form of schemas, used by the CLI and anything else that stores a
// tabular schema outside a container file. The shape mirrors the Type
// tree:
//
//	{"name": "events", "fields": [
//	  {"name": "id", "type": {"type": "int64"}},
//	  {"name": "price", "type": {"type": "decimal", "precision": 10, "scale": 2}, "nullable": true},
//	  {"name": "tags", "type": {"type": "array", "elem": {"type": "string"}}}
//	]}

type typeDTO struct {
	Type      string     `json:"type"`
	Precision int        `json:"precision,omitempty"`
	Scale     int        `json:"scale,omitempty"`
	Elem      *typeDTO   `json:"elem,omitempty"`
	Fields    []fieldDTO `json:"fields,omitempty"`
}

type fieldDTO struct {
	Name     string  `json:"name"`
	Type     typeDTO `json:"type"`
	Nullable bool    `json:"nullable,omitempty"`
}

type schemaDTO struct {
	Name   string     `json:"name"`
	Fields []fieldDTO `json:"fields"`
}

// MarshalJSON renders the type tree in the documented JSON form.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toDTO())
}

// UnmarshalJSON parses the documented JSON form.
func (t *Type) UnmarshalJSON(data []byte) error {
	var dto typeDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	parsed, err := dto.toType()
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON renders the schema in the documented JSON form.
func (s Schema) MarshalJSON() ([]byte, error) {
	dto := schemaDTO{Name: s.Name, Fields: fieldsToDTO(s.Fields)}
	return json.Marshal(dto)
}

// UnmarshalJSON parses the documented JSON form.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var dto schemaDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	fields, err := fieldsFromDTO(dto.Fields)
	if err != nil {
		return err
	}
	s.Name = dto.Name
	s.Fields = fields
	return nil
}

func (t Type) toDTO() typeDTO {
	dto := typeDTO{Type: string(t.Kind)}
	switch t.Kind {
	case KindDecimal:
		dto.Precision = t.Precision
		dto.Scale = t.Scale
	case KindArray, KindMap:
		elem := t.Elem.toDTO()
		dto.Elem = &elem
	case KindStruct:
		dto.Fields = fieldsToDTO(t.Fields)
	}
	return dto
}

func fieldsToDTO(fields []Field) []fieldDTO {
	dtos := make([]fieldDTO, len(fields))
	for i, f := range fields {
		dtos[i] = fieldDTO{Name: f.Name, Type: f.Type.toDTO(), Nullable: f.Nullable}
	}
	return dtos
}

func (dto typeDTO) toType() (Type, error) {
	kind := Kind(dto.Type)
	switch kind {
	case KindNull, KindBoolean, KindInt32, KindInt64, KindFloat32, KindFloat64,
		KindString, KindBytes, KindTimestamp:
		return Type{Kind: kind}, nil
	case KindDecimal:
		if dto.Precision <= 0 || dto.Scale < 0 || dto.Scale > dto.Precision {
			return Type{}, fmt.Errorf("invalid decimal(%d,%d)", dto.Precision, dto.Scale)
		}
		return Decimal(dto.Precision, dto.Scale), nil
	case KindArray, KindMap:
		if dto.Elem == nil {
			return Type{}, fmt.Errorf("%s type without elem", kind)
		}
		elem, err := dto.Elem.toType()
		if err != nil {
			return Type{}, err
		}
		if kind == KindArray {
			return Array(elem), nil
		}
		return Map(elem), nil
	case KindStruct:
		fields, err := fieldsFromDTO(dto.Fields)
		if err != nil {
			return Type{}, err
		}
		return Struct(fields...), nil
	default:
		return Type{}, fmt.Errorf("unknown tabular type %q", dto.Type)
	}
}

func fieldsFromDTO(dtos []fieldDTO) ([]Field, error) {
	fields := make([]Field, len(dtos))
	for i, dto := range dtos {
		t, err := dto.Type.toType()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", dto.Name, err)
		}
		fields[i] = Field{Name: dto.Name, Type: t, Nullable: dto.Nullable}
	}
	return fields, nil
}
