package match

import "reflect"

// normalizeNumber widens every Go numeric kind to float64 so that templates
// decoded via gopkg.in/yaml.v3 (which produces int/int64 for integers) and
// actual values decoded via encoding/json (which produces float64 for every
// number) compare equal.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// normalizeTree recursively normalizes numeric leaves in a decoded tree,
// used when comparing two already-decoded trees for literal equality.
func normalizeTree(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, val := range n {
			out[k] = normalizeTree(val)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, val := range n {
			out[i] = normalizeTree(val)
		}
		return out
	default:
		return normalizeNumber(v)
	}
}

// deepEqual compares two decoded JSON trees for structural equality,
// treating all numeric types as equivalent when their float64 widenings are
// equal.
func deepEqual(a, b any) bool {
	return reflect.DeepEqual(normalizeTree(a), normalizeTree(b))
}

// asFloat64 extracts a numeric actual value, returning false if it isn't one.
func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
