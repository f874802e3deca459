package convert

import (
	"encoding/base64"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/tabavro/pkg/errors"
	"github.com/ajitpratap0/tabavro/pkg/tabular"
)

// JSON-lines bridge for the CLI: rows render as objects keyed by field
// name, and objects parse back into positional rows against a declared
// schema. Decimal renders as its canonical text, Timestamp as RFC 3339
// with millisecond precision, Bytes as base64.

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// RowToJSON converts one row to a JSON-marshalable object.
func RowToJSON(schema *tabular.Schema, row tabular.Row) (map[string]interface{}, error) {
	if len(row) != len(schema.Fields) {
		return nil, errors.Newf(errors.KindNullabilityViolation,
			"row width %d does not conform to schema width %d", len(row), len(schema.Fields))
	}
	obj := make(map[string]interface{}, len(row))
	for i, f := range schema.Fields {
		v, err := valueToJSON(f.Type, row[i])
		if err != nil {
			return nil, err
		}
		obj[f.Name] = v
	}
	return obj, nil
}

func valueToJSON(t tabular.Type, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Kind {
	case tabular.KindDecimal:
		d, ok := v.(decimal.Decimal)
		if !ok {
			return v, nil
		}
		return d.StringFixed(int32(t.Scale)), nil
	case tabular.KindTimestamp:
		ts, ok := v.(time.Time)
		if !ok {
			return v, nil
		}
		return ts.UTC().Format(timestampLayout), nil
	case tabular.KindBytes:
		b, ok := v.([]byte)
		if !ok {
			return v, nil
		}
		return base64.StdEncoding.EncodeToString(b), nil
	case tabular.KindArray:
		items, ok := v.([]interface{})
		if !ok {
			return v, nil
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			converted, err := valueToJSON(*t.Elem, item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case tabular.KindMap:
		entries, ok := v.(map[string]interface{})
		if !ok {
			return v, nil
		}
		out := make(map[string]interface{}, len(entries))
		for key, value := range entries {
			converted, err := valueToJSON(*t.Elem, value)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case tabular.KindStruct:
		row, ok := v.(tabular.Row)
		if !ok {
			return v, nil
		}
		nested := &tabular.Schema{Fields: t.Fields}
		return RowToJSON(nested, row)
	default:
		return v, nil
	}
}

// RowFromJSON converts one JSON object to a positional row against the
// schema. JSON numbers arrive as float64 and are narrowed to the declared
// kind; lossy narrowing fails rather than rounding silently.
func RowFromJSON(schema *tabular.Schema, obj map[string]interface{}) (tabular.Row, error) {
	row := make(tabular.Row, len(schema.Fields))
	for i, f := range schema.Fields {
		raw, present := obj[f.Name]
		if !present || raw == nil {
			row[i] = nil
			continue
		}
		v, err := valueFromJSON(f.Type, raw)
		if err != nil {
			var e *errors.Error
			if errors.AsError(err, &e) {
				e.WithField(f.Name)
			}
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func valueFromJSON(t tabular.Type, raw interface{}) (interface{}, error) {
	badValue := func() error {
		return errors.Newf(errors.KindNullabilityViolation,
			"JSON value %T does not conform to %s", raw, t)
	}

	switch t.Kind {
	case tabular.KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, badValue()
		}
		return b, nil

	case tabular.KindInt32:
		f, ok := raw.(float64)
		if !ok || f != float64(int32(f)) {
			return nil, badValue()
		}
		return int32(f), nil

	case tabular.KindInt64:
		f, ok := raw.(float64)
		if !ok || f != float64(int64(f)) {
			return nil, badValue()
		}
		return int64(f), nil

	case tabular.KindFloat32:
		f, ok := raw.(float64)
		if !ok {
			return nil, badValue()
		}
		return float32(f), nil

	case tabular.KindFloat64:
		f, ok := raw.(float64)
		if !ok {
			return nil, badValue()
		}
		return f, nil

	case tabular.KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, badValue()
		}
		return s, nil

	case tabular.KindBytes:
		s, ok := raw.(string)
		if !ok {
			return nil, badValue()
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindNullabilityViolation, "malformed base64 bytes value")
		}
		return b, nil

	case tabular.KindDecimal:
		s, ok := raw.(string)
		if !ok {
			if f, isNumber := raw.(float64); isNumber {
				return decimal.NewFromFloat(f).Round(int32(t.Scale)), nil
			}
			return nil, badValue()
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, errors.Newf(errors.KindDecimalParse, "malformed decimal text %q", s)
		}
		return d, nil

	case tabular.KindTimestamp:
		switch v := raw.(type) {
		case string:
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, errors.Wrap(err, errors.KindNullabilityViolation, "malformed timestamp")
			}
			return ts, nil
		case float64:
			// Milliseconds since epoch.
			return time.UnixMilli(int64(v)).UTC(), nil
		default:
			return nil, badValue()
		}

	case tabular.KindArray:
		items, ok := raw.([]interface{})
		if !ok {
			return nil, badValue()
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			converted, err := valueFromJSON(*t.Elem, item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil

	case tabular.KindMap:
		entries, ok := raw.(map[string]interface{})
		if !ok {
			return nil, badValue()
		}
		out := make(map[string]interface{}, len(entries))
		for key, value := range entries {
			converted, err := valueFromJSON(*t.Elem, value)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil

	case tabular.KindStruct:
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, badValue()
		}
		nested := &tabular.Schema{Fields: t.Fields}
		return RowFromJSON(nested, obj)

	default:
		return nil, errors.Newf(errors.KindUnsupportedType, "cannot build %s from JSON", t)
	}
}
