package attribute

import (
	"math"
)

// Kind identifies the shape of an attribute value.
type Kind int

const (
	KindEmpty Kind = iota
	KindString
	KindBool
	KindInt
	KindDouble
	KindList
	KindMap
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "empty"
	}
}

// Value is a materialized attribute value. The zero Value is empty.
type Value struct {
	kind Kind
	str  string
	num  int64
	dbl  float64
	list []Value
	kvs  Map
}

// KeyValue is a single attribute entry.
type KeyValue struct {
	Key   string
	Value Value
}

// Map is an ordered attribute map. Keys are unique when built through Put.
type Map []KeyValue

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool creates a bool value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Int creates an int value.
func Int(i int64) Value { return Value{kind: KindInt, num: i} }

// Double creates a double value.
func Double(f float64) Value { return Value{kind: KindDouble, dbl: f} }

// List creates a list value. The slice is owned by the value afterwards.
func List(items ...Value) Value {
	if len(items) == 0 {
		items = nil
	}
	return Value{kind: KindList, list: items}
}

// MapOf creates a map value. The map is owned by the value afterwards.
func MapOf(m Map) Value {
	if len(m) == 0 {
		m = nil
	}
	return Value{kind: KindMap, kvs: m}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload, or "" for other kinds.
func (v Value) Str() string { return v.str }

// BoolVal returns the bool payload.
func (v Value) BoolVal() bool { return v.kind == KindBool && v.num != 0 }

// IntVal returns the int payload.
func (v Value) IntVal() int64 {
	if v.kind != KindInt {
		return 0
	}
	return v.num
}

// DoubleVal returns the double payload.
func (v Value) DoubleVal() float64 { return v.dbl }

// ListVal returns the list items. Callers must not modify the returned slice.
func (v Value) ListVal() []Value { return v.list }

// MapVal returns the map entries. Callers must not modify the returned map.
func (v Value) MapVal() Map { return v.kvs }

// Equal reports whether two values have the same kind and deep content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindBool, KindInt:
		return v.num == o.num
	case KindDouble:
		return v.dbl == o.dbl || (math.IsNaN(v.dbl) && math.IsNaN(o.dbl))
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.kvs.Equal(o.kvs)
	default:
		return true
	}
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return List(items...)
	case KindMap:
		return MapOf(v.kvs.Clone())
	default:
		return v
	}
}

// Get returns the value stored under key.
func (m Map) Get(key string) (Value, bool) {
	for _, kv := range m {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return Value{}, false
}

// Put sets key to v, replacing an existing entry in place.
func (m Map) Put(key string, v Value) Map {
	for i := range m {
		if m[i].Key == key {
			m[i].Value = v
			return m
		}
	}
	return append(m, KeyValue{Key: key, Value: v})
}

// Equal compares two maps entry by entry, in order.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for i := range m {
		if m[i].Key != o[i].Key || !m[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the map.
func (m Map) Clone() Map {
	if len(m) == 0 {
		return nil
	}
	out := make(Map, len(m))
	for i, kv := range m {
		out[i] = KeyValue{Key: kv.Key, Value: kv.Value.Clone()}
	}
	return out
}
