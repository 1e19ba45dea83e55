package otlpjson

import (
	"encoding/json"
	"strconv"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

// keyValues streams a list of {"key": ..., "value": {...}} pairs.
func keyValues(list []any) attribute.Fields {
	return func(yield func(attribute.Field, error) bool) {
		for _, item := range list {
			obj, err := asObject(item, "attribute")
			if err != nil {
				yield(attribute.Field{}, err)
				return
			}
			key, ok := obj["key"].(string)
			if !ok {
				yield(attribute.Field{}, otlp.Malformedf("attribute key must be a string, got %T", obj["key"]))
				return
			}
			node, err := anyValue(obj["value"])
			if err != nil {
				yield(attribute.Field{}, err)
				return
			}
			if !yield(attribute.Field{Key: key, Value: node}, nil) {
				return
			}
		}
	}
}

func attributesOf(obj map[string]any) attribute.Fields {
	list, err := optionalList(obj, "attributes")
	if err != nil {
		return attribute.ErrorFields(err)
	}
	return keyValues(list)
}

// anyValue decodes a typed value envelope. Both the wrapped
// {"values": [...]} and the bare list shapes are accepted for arrays and
// key/value lists.
func anyValue(v any) (attribute.Node, error) {
	obj, err := asObject(v, "attribute value")
	if err != nil {
		return attribute.Node{}, err
	}
	if len(obj) == 0 {
		return attribute.Node{}, nil
	}
	if len(obj) != 1 {
		return attribute.Node{}, otlp.Malformedf("attribute value must have exactly one field, got %d", len(obj))
	}

	for typ, raw := range obj {
		switch typ {
		case "stringValue":
			s, ok := raw.(string)
			if !ok {
				return attribute.Node{}, otlp.Malformedf("stringValue must be a string, got %T", raw)
			}
			return attribute.NodeOf(attribute.String(s)), nil
		case "boolValue":
			b, ok := raw.(bool)
			if !ok {
				return attribute.Node{}, otlp.Malformedf("boolValue must be a bool, got %T", raw)
			}
			return attribute.NodeOf(attribute.Bool(b)), nil
		case "intValue":
			text, err := scalarText(raw, typ)
			if err != nil {
				return attribute.Node{}, err
			}
			i, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return attribute.Node{}, otlp.Malformedf("intValue %q: %v", text, err)
			}
			return attribute.NodeOf(attribute.Int(i)), nil
		case "doubleValue":
			text, err := scalarText(raw, typ)
			if err != nil {
				return attribute.Node{}, err
			}
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return attribute.Node{}, otlp.Malformedf("doubleValue %q: %v", text, err)
			}
			return attribute.NodeOf(attribute.Double(f)), nil
		case "arrayValue":
			list, err := wrappedList(raw, typ)
			if err != nil {
				return attribute.Node{}, err
			}
			return attribute.ListNode(items(list)), nil
		case "kvlistValue":
			list, err := wrappedList(raw, typ)
			if err != nil {
				return attribute.Node{}, err
			}
			return attribute.MapNode(keyValues(list)), nil
		default:
			return attribute.Node{}, otlp.Malformedf("unsupported attribute value type %q", typ)
		}
	}
	return attribute.Node{}, nil
}

func items(list []any) attribute.Items {
	return func(yield func(attribute.Node, error) bool) {
		for _, item := range list {
			node, err := anyValue(item)
			if err != nil {
				yield(attribute.Node{}, err)
				return
			}
			if !yield(node, nil) {
				return
			}
		}
	}
}

func wrappedList(raw any, typ string) ([]any, error) {
	switch x := raw.(type) {
	case []any:
		return x, nil
	case map[string]any:
		return optionalList(x, "values")
	default:
		return nil, otlp.Malformedf("%s must be a list or an object, got %T", typ, raw)
	}
}

func scalarText(raw any, typ string) (string, error) {
	switch x := raw.(type) {
	case json.Number:
		return x.String(), nil
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", otlp.Malformedf("%s must be a number or numeric string, got %T", typ, raw)
	}
}
