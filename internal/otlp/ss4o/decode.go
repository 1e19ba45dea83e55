package ss4o

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

// zonelessLayout is accepted for timestamps written without an offset; they
// are read as UTC.
const zonelessLayout = "2006-01-02T15:04:05.999999999"

// ParseTime converts an ISO-8601 timestamp into nanoseconds since the epoch
// keeping every fractional digit.
func ParseTime(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		var zerr error
		if t, zerr = time.ParseInLocation(zonelessLayout, s, time.UTC); zerr != nil {
			return 0, otlp.Malformedf("invalid timestamp %q: %v", s, err)
		}
	}
	return t.UnixNano(), nil
}

func asObject(v any, what string) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, otlp.Malformedf("%s must be an object, got %T", what, v)
	}
	return obj, nil
}

func optionalObject(obj map[string]any, key string) (map[string]any, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	return asObject(v, key)
}

func optionalList(obj map[string]any, key string) ([]any, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, otlp.Malformedf("%s must be a list, got %T", key, v)
	}
	return list, nil
}

func optionalString(obj map[string]any, key string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", otlp.Malformedf("%s must be a string, got %T", key, v)
	}
	return s, nil
}

func optionalUint32(obj map[string]any, key string) (uint32, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, nil
	}
	var text string
	switch x := v.(type) {
	case json.Number:
		text = x.String()
	case float64:
		text = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return 0, otlp.Malformedf("%s must be a number, got %T", key, v)
	}
	n, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, otlp.Malformedf("%s must be an unsigned 32-bit integer: %v", key, err)
	}
	return uint32(n), nil
}

func requiredTime(obj map[string]any, key string) (int64, error) {
	s, err := optionalString(obj, key)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, otlp.Malformedf("missing %s", key)
	}
	return ParseTime(s)
}

// enumName reads an enum stored by name, or by number.
func enumName(obj map[string]any, key string, byName func(string) (int32, error)) (int32, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch x := v.(type) {
	case string:
		return byName(x)
	case json.Number:
		n, err := strconv.ParseInt(x.String(), 10, 32)
		if err != nil {
			return 0, otlp.Malformedf("%s must be a 32-bit integer: %v", key, err)
		}
		return int32(n), nil
	default:
		return 0, otlp.Malformedf("%s must be a name, got %T", key, v)
	}
}

// attributes converts a stored attribute object into a nested map. Flattened
// dotted keys and nested objects both end up in the same nested shape.
func attributes(obj map[string]any) attribute.Fields {
	return func(yield func(attribute.Field, error) bool) {
		m, err := objectToMap(obj)
		if err != nil {
			yield(attribute.Field{}, err)
			return
		}
		for f, err := range attribute.FieldsOf(attribute.Unflatten(attribute.Flatten(m))) {
			if !yield(f, err) {
				return
			}
		}
	}
}

func objectToMap(obj map[string]any) (attribute.Map, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out attribute.Map
	for _, k := range keys {
		v, err := toValue(obj[k], k)
		if err != nil {
			return nil, err
		}
		out = append(out, attribute.KeyValue{Key: k, Value: v})
	}
	return out, nil
}

func toValue(raw any, key string) (attribute.Value, error) {
	switch x := raw.(type) {
	case string:
		return attribute.String(x), nil
	case bool:
		return attribute.Bool(x), nil
	case json.Number:
		return numberValue(x.String(), key)
	case float64:
		return attribute.Double(x), nil
	case []any:
		items := make([]attribute.Value, 0, len(x))
		for _, item := range x {
			v, err := toValue(item, key)
			if err != nil {
				return attribute.Value{}, err
			}
			items = append(items, v)
		}
		return attribute.List(items...), nil
	case map[string]any:
		m, err := objectToMap(x)
		if err != nil {
			return attribute.Value{}, err
		}
		return attribute.MapOf(m), nil
	default:
		return attribute.Value{}, otlp.Malformedf("unsupported value for attribute %q: %T", key, raw)
	}
}

// numberValue keeps integers as ints; anything with a fraction or exponent
// is a double.
func numberValue(text, key string) (attribute.Value, error) {
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return attribute.Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return attribute.Value{}, otlp.Malformedf("invalid number for attribute %q: %v", key, err)
	}
	return attribute.Double(f), nil
}
