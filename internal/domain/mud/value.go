package mud

import "fmt"

// Field maps travel through encoding/json, so numbers arrive as float64
// and everything else as string/bool/nil. These helpers keep the
// evaluator honest about that.

// Num coerces a field value to float64. The second return is false for
// anything non-numeric.
func Num(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ScalarEqual compares two field values the way the rule language does:
// numbers by value, everything else by string form.
func ScalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	an, aok := Num(a)
	bn, bok := Num(b)
	if aok && bok {
		return an == bn
	}
	if aok != bok {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Str renders a field value for interpolation into say text.
func Str(v any) string {
	if v == nil {
		return ""
	}
	if n, ok := Num(v); ok && n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprint(v)
}

// CloneFields deep-copies a field map one level down; values are JSON
// scalars so a shallow value copy is enough below the top level.
func CloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// MergeFields overlays patch onto base (shallow), returning a new map.
func MergeFields(base, patch map[string]any) map[string]any {
	out := CloneFields(base)
	for k, v := range patch {
		out[k] = v
	}
	return out
}
