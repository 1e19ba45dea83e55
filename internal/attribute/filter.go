package attribute

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedFilter is returned for attribute filter tokens that cannot be parsed.
var ErrMalformedFilter = errors.New("malformed attribute filter")

// Filter maps a flattened attribute key to the accepted values. A nil value
// list only requires the key to be present.
type Filter map[string][]string

// ParseFilter parses "key" and "key=value" tokens. Repeated keys accumulate
// values; a key given with values never falls back to presence-only.
func ParseFilter(tokens []string) (Filter, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	f := make(Filter, len(tokens))
	for _, tok := range tokens {
		key, value, hasValue := strings.Cut(tok, "=")
		if key == "" {
			return nil, fmt.Errorf("%w: empty key in %q", ErrMalformedFilter, tok)
		}
		if !hasValue {
			if _, ok := f[key]; !ok {
				f[key] = nil
			}
			continue
		}
		f[key] = append(f[key], value)
	}
	return f, nil
}

// Tokens renders the filter back into "key" and "key=value" tokens.
func (f Filter) Tokens() []string {
	var out []string
	for key, values := range f {
		if values == nil {
			out = append(out, key)
			continue
		}
		for _, v := range values {
			out = append(out, key+"="+v)
		}
	}
	return out
}

// Match reports whether every filter key is satisfied by the flattened map.
func (f Filter) Match(m Map) bool {
	if len(f) == 0 {
		return true
	}
	flat := make(map[string]Value, len(m))
	for _, kv := range Flatten(m) {
		flat[kv.Key] = kv.Value
	}
	for key, accepted := range f {
		v, ok := flat[key]
		if !ok {
			return false
		}
		if accepted == nil {
			continue
		}
		s, ok := Stringify(v)
		if !ok || !contains(accepted, s) {
			return false
		}
	}
	return true
}

// Stringify renders a literal value the way filter values are written.
// Lists and maps have no literal form.
func Stringify(v Value) (string, bool) {
	switch v.Kind() {
	case KindString:
		return v.Str(), true
	case KindBool:
		return strconv.FormatBool(v.BoolVal()), true
	case KindInt:
		return strconv.FormatInt(v.IntVal(), 10), true
	case KindDouble:
		return strconv.FormatFloat(v.DoubleVal(), 'f', -1, 64), true
	default:
		return "", false
	}
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
