package attribute

import (
	"iter"
)

// Field is one entry of a streaming map.
type Field struct {
	Key   string
	Value Node
}

// Fields is a single-pass producer of map entries.
type Fields iter.Seq2[Field, error]

// Items is a single-pass producer of list items.
type Items iter.Seq2[Node, error]

// Node is the streaming counterpart of Value. Literals are held directly,
// lists and maps are produced on demand.
type Node struct {
	kind   Kind
	lit    Value
	items  Items
	fields Fields
}

// NodeOf wraps a materialized value as a streaming node.
func NodeOf(v Value) Node {
	switch v.kind {
	case KindList:
		return ListNode(ItemsOf(v.list))
	case KindMap:
		return MapNode(FieldsOf(v.kvs))
	default:
		return Node{kind: v.kind, lit: v}
	}
}

// ListNode creates a node producing list items.
func ListNode(items Items) Node { return Node{kind: KindList, items: items} }

// MapNode creates a node producing map entries.
func MapNode(fields Fields) Node { return Node{kind: KindMap, fields: fields} }

// Kind returns the kind of the node.
func (n Node) Kind() Kind { return n.kind }

// Literal returns the literal value of a non-container node.
func (n Node) Literal() Value { return n.lit }

// Items returns the item producer of a list node.
func (n Node) Items() Items {
	if n.items == nil {
		return func(func(Node, error) bool) {}
	}
	return n.items
}

// Fields returns the entry producer of a map node.
func (n Node) Fields() Fields {
	if n.fields == nil {
		return func(func(Field, error) bool) {}
	}
	return n.fields
}

// FieldsOf streams the entries of a materialized map.
func FieldsOf(m Map) Fields {
	return func(yield func(Field, error) bool) {
		for _, kv := range m {
			if !yield(Field{Key: kv.Key, Value: NodeOf(kv.Value)}, nil) {
				return
			}
		}
	}
}

// ItemsOf streams the items of a materialized list.
func ItemsOf(list []Value) Items {
	return func(yield func(Node, error) bool) {
		for _, v := range list {
			if !yield(NodeOf(v), nil) {
				return
			}
		}
	}
}

// ErrorFields returns a producer that fails immediately with err.
func ErrorFields(err error) Fields {
	return func(yield func(Field, error) bool) {
		yield(Field{}, err)
	}
}

// Force materializes a streaming node, consuming its producers.
func Force(n Node) (Value, error) {
	switch n.kind {
	case KindList:
		items, err := ForceItems(n.Items())
		if err != nil {
			return Value{}, err
		}
		return List(items...), nil
	case KindMap:
		m, err := ForceFields(n.Fields())
		if err != nil {
			return Value{}, err
		}
		return MapOf(m), nil
	default:
		return n.lit, nil
	}
}

// ForceFields materializes a map producer. Duplicate keys keep the last value.
func ForceFields(fields Fields) (Map, error) {
	var out Map
	if fields == nil {
		return out, nil
	}
	for f, err := range fields {
		if err != nil {
			return nil, err
		}
		v, err := Force(f.Value)
		if err != nil {
			return nil, err
		}
		out = out.Put(f.Key, v)
	}
	return out, nil
}

// ForceItems materializes a list producer.
func ForceItems(items Items) ([]Value, error) {
	var out []Value
	if items == nil {
		return out, nil
	}
	for n, err := range items {
		if err != nil {
			return nil, err
		}
		v, err := Force(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
