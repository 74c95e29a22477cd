package monday

import (
	"strconv"
	"time"

	"github.com/ajitpratap0/tap-monday/pkg/connector/core"
	"github.com/ajitpratap0/tap-monday/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-monday/pkg/json"
)

// MapRow projects row onto schema. The result holds exactly the schema's
// fields: absent nullable fields become nil and undeclared keys are dropped.
// A missing required field or a value of the wrong shape is an
// ErrorTypeData error.
func MapRow(schema *core.Schema, row Row) (core.Record, error) {
	record := make(core.Record, len(schema.Fields))
	for _, field := range schema.Fields {
		raw, present := row[field.Name]
		if !present || raw == nil {
			if !field.Nullable {
				return nil, errors.Newf(errors.ErrorTypeData, "missing required field %q", field.Name).
					WithDetail("field", field.Name)
			}
			record[field.Name] = nil
			continue
		}

		value, err := convertValue(field, raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "field "+field.Name).
				WithDetail("field", field.Name)
		}
		record[field.Name] = value
	}
	return record, nil
}

func convertValue(field core.Field, raw interface{}) (interface{}, error) {
	switch field.Type {
	case core.FieldTypeString:
		return toString(raw)
	case core.FieldTypeInt:
		return toInt(raw)
	case core.FieldTypeFloat:
		return toFloat(raw)
	case core.FieldTypeBool:
		return toBool(raw)
	case core.FieldTypeTimestamp:
		return toTimestamp(raw)
	case core.FieldTypeJSON:
		return toStringMap(raw)
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unsupported field type %s", field.Type)
	}
}

func wrongShape(want string, raw interface{}) error {
	return errors.Newf(errors.ErrorTypeData, "expected %s, got %T", want, raw)
}

// toString accepts strings and numbers; the API returns some ids as numbers
func toString(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case jsonpool.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", wrongShape("string", raw)
	}
}

func toInt(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case jsonpool.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil || f != float64(int64(f)) {
			return 0, wrongShape("integer", raw)
		}
		return int64(f), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, wrongShape("integer", raw)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, wrongShape("integer", raw)
		}
		return i, nil
	default:
		return 0, wrongShape("integer", raw)
	}
}

func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case jsonpool.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, wrongShape("number", raw)
		}
		return f, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, wrongShape("number", raw)
		}
		return f, nil
	default:
		return 0, wrongShape("number", raw)
	}
}

func toBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, wrongShape("boolean", raw)
		}
		return b, nil
	default:
		return false, wrongShape("boolean", raw)
	}
}

// toTimestamp validates an RFC 3339 string and keeps it unchanged
func toTimestamp(raw interface{}) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", wrongShape("date-time string", raw)
	}
	if _, err := time.Parse(time.RFC3339, s); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "invalid date-time")
	}
	return s, nil
}

// toStringMap accepts an object, or a column_values style array of
// {id, text, value} objects which is flattened to id -> text, falling back
// to value when text is null.
func toStringMap(raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			s, err := scalarText(val)
			if err != nil {
				return nil, err
			}
			out[k] = s
		}
		return out, nil
	case []interface{}:
		return flattenColumnValues(v)
	default:
		return nil, wrongShape("object", raw)
	}
}

func flattenColumnValues(list []interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(list))
	for i, elem := range list {
		cv, ok := elem.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeData, "column value %d: expected object, got %T", i, elem)
		}
		id, err := toString(cv["id"])
		if err != nil || id == "" {
			return nil, errors.Newf(errors.ErrorTypeData, "column value %d: missing id", i)
		}
		text := cv["text"]
		if text == nil {
			text = cv["value"]
		}
		s, err := scalarText(text)
		if err != nil {
			return nil, err
		}
		out[id] = s
	}
	return out, nil
}

// scalarText renders a value as a string, encoding nested values as JSON
func scalarText(v interface{}) (interface{}, error) {
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case string:
		return vv, nil
	case jsonpool.Number:
		return vv.String(), nil
	case bool:
		return strconv.FormatBool(vv), nil
	default:
		b, err := jsonpool.Marshal(vv)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode nested value")
		}
		return string(b), nil
	}
}
