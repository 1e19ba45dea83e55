package attribute

import (
	"sort"
	"strings"
)

// Flatten turns nested maps into dot-joined keys. Lists are kept as values.
func Flatten(m Map) []KeyValue {
	var out []KeyValue
	flattenInto(&out, "", m)
	return out
}

func flattenInto(out *[]KeyValue, prefix string, m Map) {
	for _, kv := range m {
		key := kv.Key
		if prefix != "" {
			key = prefix + "." + kv.Key
		}
		if kv.Value.Kind() == KindMap {
			flattenInto(out, key, kv.Value.MapVal())
			continue
		}
		*out = append(*out, KeyValue{Key: key, Value: kv.Value})
	}
}

// Unflatten rebuilds nested maps from dot-joined keys.
//
// Entries are sorted by key and grouped on their first path segment. Within a
// group, an entry whose key has no remaining dot is terminal and the other
// entries of that group are dropped.
func Unflatten(kvs []KeyValue) Map {
	sorted := make([]KeyValue, len(kvs))
	copy(sorted, kvs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	sort.SliceStable(sorted, func(i, j int) bool {
		return headSegment(sorted[i].Key) < headSegment(sorted[j].Key)
	})

	var out Map
	for start := 0; start < len(sorted); {
		head := headSegment(sorted[start].Key)
		end := start + 1
		for end < len(sorted) && headSegment(sorted[end].Key) == head {
			end++
		}
		out = append(out, KeyValue{Key: head, Value: unflattenGroup(head, sorted[start:end])})
		start = end
	}
	return out
}

func unflattenGroup(head string, group []KeyValue) Value {
	first := group[0]
	if first.Key == head {
		return first.Value
	}
	rest := make([]KeyValue, 0, len(group))
	for _, kv := range group {
		rest = append(rest, KeyValue{Key: kv.Key[len(head)+1:], Value: kv.Value})
	}
	return MapOf(Unflatten(rest))
}

func headSegment(key string) string {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[:i]
	}
	return key
}
