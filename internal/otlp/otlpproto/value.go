package otlpproto

import (
	"go.opentelemetry.io/collector/pdata/pcommon"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

// fields streams a pdata map in insertion order.
func fields(m pcommon.Map) attribute.Fields {
	return func(yield func(attribute.Field, error) bool) {
		var err error
		m.Range(func(k string, v pcommon.Value) bool {
			var n attribute.Node
			if n, err = node(v); err != nil {
				return false
			}
			return yield(attribute.Field{Key: k, Value: n}, nil)
		})
		if err != nil {
			yield(attribute.Field{}, err)
		}
	}
}

func node(v pcommon.Value) (attribute.Node, error) {
	switch v.Type() {
	case pcommon.ValueTypeStr:
		return attribute.NodeOf(attribute.String(v.Str())), nil
	case pcommon.ValueTypeBool:
		return attribute.NodeOf(attribute.Bool(v.Bool())), nil
	case pcommon.ValueTypeInt:
		return attribute.NodeOf(attribute.Int(v.Int())), nil
	case pcommon.ValueTypeDouble:
		return attribute.NodeOf(attribute.Double(v.Double())), nil
	case pcommon.ValueTypeSlice:
		return attribute.ListNode(items(v.Slice())), nil
	case pcommon.ValueTypeMap:
		return attribute.MapNode(fields(v.Map())), nil
	case pcommon.ValueTypeEmpty:
		return attribute.Node{}, nil
	default:
		return attribute.Node{}, otlp.Malformedf("unsupported attribute value type %s", v.Type())
	}
}

func items(s pcommon.Slice) attribute.Items {
	return func(yield func(attribute.Node, error) bool) {
		for i := 0; i < s.Len(); i++ {
			n, err := node(s.At(i))
			if err != nil {
				yield(attribute.Node{}, err)
				return
			}
			if !yield(n, nil) {
				return
			}
		}
	}
}
