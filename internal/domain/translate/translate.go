// Package translate maps explicit nulls to type-specific sentinel values
// before documents reach the store, and back on the way out. The store
// otherwise collapses "field is null" with "field is missing", which breaks
// filtering on absent data.
package translate

// Sentinel values. NullInt is 2^63 - 1024: large, unmistakable, and exactly
// representable in both int64 and float64 so it round-trips through either
// numeric representation.
const (
	NullString = "~null"
	NullInt    = int64(9223372036854774784)

	// Booleans are stored as integers so that null gets its own slot.
	BoolFalse = int64(0)
	BoolTrue  = int64(1)
	BoolNull  = int64(-1)
)

// Kind is the scalar type of a leaf field.
type Kind int

const (
	KindString Kind = iota
	KindLong
	KindFloat
	KindBool
)

// FieldType describes one schema position: a scalar leaf, a nested object,
// or a list of either. Repeated marks list positions; only repeated scalar
// positions get the empty-list sentinel treatment.
type FieldType struct {
	Kind     Kind
	Nested   FieldTypes
	Repeated bool
}

// FieldTypes is the field-type schema for one document level, supplied by
// the metadata plugin.
type FieldTypes map[string]FieldType

// Scalar builds a leaf field type.
func Scalar(k Kind) FieldType { return FieldType{Kind: k} }

// ScalarList builds a list-of-scalar field type.
func ScalarList(k Kind) FieldType { return FieldType{Kind: k, Repeated: true} }

// Object builds a nested object field type.
func Object(nested FieldTypes) FieldType { return FieldType{Nested: nested} }

// ObjectList builds a list-of-object field type.
func ObjectList(nested FieldTypes) FieldType {
	return FieldType{Nested: nested, Repeated: true}
}

// ShadowName is the field name under which the untranslated raw numeric
// value is kept, so numeric aggregations never see null sentinels.
func ShadowName(field string) string { return field + "_" }

// IsShadow reports whether field is a shadow-copy field name.
func IsShadow(field string) bool {
	return len(field) > 1 && field[len(field)-1] == '_'
}

func isNumeric(k Kind) bool { return k == KindLong || k == KindFloat }

// ToIndex translates a document tree for storage, guided by types. Fields
// absent from the schema pass through untouched. Numeric leaves additionally
// emit a shadow copy of the raw value.
func ToIndex(contents map[string]any, types FieldTypes) map[string]any {
	if contents == nil {
		return nil
	}
	out := make(map[string]any, len(contents))
	for field, value := range contents {
		ft, ok := types[field]
		if !ok {
			out[field] = value
			continue
		}
		switch {
		case ft.Nested != nil && ft.Repeated:
			out[field] = translateObjectList(value, ft.Nested, true)
		case ft.Nested != nil:
			if m, ok := value.(map[string]any); ok {
				out[field] = ToIndex(m, ft.Nested)
			} else {
				out[field] = value
			}
		case ft.Repeated:
			translated, raw := translateScalarList(value, ft.Kind, true)
			out[field] = translated
			if isNumeric(ft.Kind) && raw != nil {
				out[ShadowName(field)] = raw
			}
		default:
			out[field] = toIndexScalar(value, ft.Kind)
			if isNumeric(ft.Kind) && value != nil {
				out[ShadowName(field)] = value
			}
		}
	}
	return out
}

// FromIndex reverses ToIndex: sentinels become nil, shadow copies are
// dropped, the empty-list sentinel becomes an empty list again.
func FromIndex(contents map[string]any, types FieldTypes) map[string]any {
	if contents == nil {
		return nil
	}
	out := make(map[string]any, len(contents))
	for field, value := range contents {
		ft, ok := types[field]
		if !ok {
			if IsShadow(field) {
				if _, isNum := numericShadowSource(field, types); isNum {
					continue
				}
			}
			out[field] = value
			continue
		}
		switch {
		case ft.Nested != nil && ft.Repeated:
			out[field] = translateObjectList(value, ft.Nested, false)
		case ft.Nested != nil:
			if m, ok := value.(map[string]any); ok {
				out[field] = FromIndex(m, ft.Nested)
			} else {
				out[field] = value
			}
		case ft.Repeated:
			translated, _ := translateScalarList(value, ft.Kind, false)
			out[field] = translated
		default:
			out[field] = fromIndexScalar(value, ft.Kind)
		}
	}
	return out
}

// numericShadowSource resolves a shadow field name back to its schema entry.
func numericShadowSource(shadow string, types FieldTypes) (FieldType, bool) {
	source := shadow[:len(shadow)-1]
	ft, ok := types[source]
	if !ok || ft.Nested != nil || !isNumeric(ft.Kind) {
		return FieldType{}, false
	}
	return ft, true
}

func translateObjectList(value any, nested FieldTypes, toIdx bool) any {
	items, ok := value.([]any)
	if !ok {
		return value
	}
	out := make([]any, len(items))
	for i, item := range items {
		if m, ok := item.(map[string]any); ok {
			if toIdx {
				out[i] = ToIndex(m, nested)
			} else {
				out[i] = FromIndex(m, nested)
			}
		} else {
			out[i] = item
		}
	}
	return out
}

// translateScalarList translates a list-of-scalar position. An empty list is
// stored as a single-element list holding the translated null, so that
// "no values" remains queryable; it comes back empty. A list of exactly one
// null therefore encodes identically to an empty list and also decodes to
// the empty list: the two are indistinguishable after a round trip. The
// second return is the raw shadow list for numeric kinds (nil when not
// applicable).
func translateScalarList(value any, k Kind, toIdx bool) (any, []any) {
	items, ok := value.([]any)
	if !ok {
		return value, nil
	}
	if toIdx {
		if len(items) == 0 {
			return []any{toIndexScalar(nil, k)}, nil
		}
		out := make([]any, len(items))
		var raw []any
		for i, item := range items {
			out[i] = toIndexScalar(item, k)
			if isNumeric(k) && item != nil {
				raw = append(raw, item)
			}
		}
		return out, raw
	}
	if len(items) == 1 && isSentinel(items[0], k) {
		return []any{}, nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = fromIndexScalar(item, k)
	}
	return out, nil
}

func toIndexScalar(v any, k Kind) any {
	switch k {
	case KindString:
		if v == nil {
			return NullString
		}
		return v
	case KindLong, KindFloat:
		if v == nil {
			return NullInt
		}
		return v
	case KindBool:
		switch b := v.(type) {
		case nil:
			return BoolNull
		case bool:
			if b {
				return BoolTrue
			}
			return BoolFalse
		default:
			return v
		}
	default:
		return v
	}
}

func fromIndexScalar(v any, k Kind) any {
	if isSentinel(v, k) {
		return nil
	}
	if k == KindBool {
		if n, ok := asInt64(v); ok {
			return n == BoolTrue
		}
	}
	return v
}

func isSentinel(v any, k Kind) bool {
	switch k {
	case KindString:
		return v == NullString
	case KindLong, KindFloat:
		n, ok := asInt64(v)
		return ok && n == NullInt
	case KindBool:
		n, ok := asInt64(v)
		return ok && n == BoolNull
	default:
		return false
	}
}

// asInt64 normalizes the numeric representations a JSON round trip can
// produce. NullInt is chosen to survive the float64 path exactly.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), n == float64(int64(n))
	default:
		return 0, false
	}
}
