package accumulate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Values flowing through accumulators are JSON-shaped: nil, bool, numbers,
// strings, []any and map[string]any. Membership testing and sorting need a
// total order over that universe, with nil sorting last so that sorted sets
// keep absent data out of the way.

// typeRank orders value classes relative to each other; nil is always last.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 6
	case bool:
		return 0
	case int, int64, float64:
		return 1
	case string:
		return 2
	case []any:
		return 3
	case map[string]any:
		return 4
	default:
		return 5
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// compareValues imposes a nil-last total order across the JSON value universe.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		ab, bb := a.(bool), b.(bool)
		if ab == bb {
			return 0
		}
		if !ab {
			return -1
		}
		return 1
	case 1:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 6:
		return 0
	default:
		return strings.Compare(canonicalKey(a), canonicalKey(b))
	}
}

func sortValues(vs []any) {
	sort.SliceStable(vs, func(i, j int) bool {
		return compareValues(vs[i], vs[j]) < 0
	})
}

// canonicalKey renders a value into a deterministic string usable as a set
// membership key. Structurally equal dicts and lists produce identical keys
// regardless of construction order; integer and float representations of the
// same number collapse to one key.
func canonicalKey(v any) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("~")
	case bool:
		if x {
			b.WriteString("b1")
		} else {
			b.WriteString("b0")
		}
	case string:
		b.WriteString("s:")
		b.WriteString(strconv.Quote(x))
	case []any:
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, x[k])
		}
		b.WriteByte('}')
	default:
		if f, ok := toFloat(v); ok {
			b.WriteString("n:")
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			return
		}
		fmt.Fprintf(b, "?:%v", v)
	}
}

// flatten expands a slice value into its elements; scalars pass through as a
// single-element stream.
func flatten(v any) []any {
	if vs, ok := v.([]any); ok {
		return vs
	}
	return []any{v}
}

// deepCopy clones nested maps and slices so accumulated structures cannot be
// mutated through aliasing.
func deepCopy(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = deepCopy(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}
