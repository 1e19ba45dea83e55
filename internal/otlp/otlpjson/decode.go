package otlpjson

import (
	"encoding/json"
	"strconv"

	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

func asObject(v any, what string) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, otlp.Malformedf("%s must be an object, got %T", what, v)
	}
	return obj, nil
}

func asList(v any, what string) ([]any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, otlp.Malformedf("%s must be a list, got %T", what, v)
	}
	return list, nil
}

// optionalList returns the list under key, or nil when the key is absent.
func optionalList(obj map[string]any, key string) ([]any, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	return asList(v, key)
}

// optionalObject returns the object under key, or an empty object when absent.
func optionalObject(obj map[string]any, key string) (map[string]any, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	return asObject(v, key)
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
	raw, ok, err := numberText(obj, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, otlp.Malformedf("%s must be an unsigned 32-bit integer: %v", key, err)
	}
	return uint32(n), nil
}

// timestamp reads a nanosecond timestamp written either as a decimal string
// or as a number.
func timestamp(obj map[string]any, key string) (int64, error) {
	raw, ok, err := numberText(obj, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, otlp.Malformedf("%s must be an integer timestamp: %v", key, err)
	}
	return n, nil
}

// enum reads an enum written either as its number or as its name.
func enum(obj map[string]any, key string, byName func(string) (int32, error)) (int32, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, nil
	}
	var raw string
	switch x := v.(type) {
	case json.Number:
		raw = x.String()
	case float64:
		raw = strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return byName(x)
	default:
		return 0, otlp.Malformedf("%s must be a number, got %T", key, v)
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, otlp.Malformedf("%s must be a 32-bit integer: %v", key, err)
	}
	return int32(n), nil
}

func numberText(obj map[string]any, key string) (string, bool, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch x := v.(type) {
	case json.Number:
		return x.String(), true, nil
	case string:
		return x, true, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true, nil
	default:
		return "", false, otlp.Malformedf("%s must be a number or numeric string, got %T", key, v)
	}
}
