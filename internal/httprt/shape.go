package httprt

import "github.com/hanpama/restgraph/internal/schema"

// shape is what the structural match knows about a union member type: the
// keys it requires and every key it declares.
type shape struct {
	name     string
	required []string
	known    map[string]bool
}

// outputShape describes an object type by the JSON keys of its fields.
// Non-Null fields are required.
func outputShape(t *schema.Type) shape {
	s := shape{name: t.Name, known: map[string]bool{}}
	for _, f := range t.Fields {
		key := f.SourceKey()
		s.known[key] = true
		if f.Type.IsNonNull() {
			s.required = append(s.required, key)
		}
	}
	return s
}

// keysOf returns the keys of obj holding a non-null value.
func keysOf(obj map[string]any) map[string]bool {
	keys := make(map[string]bool, len(obj))
	for k, v := range obj {
		if v != nil {
			keys[k] = true
		}
	}
	return keys
}

// bestMatch ranks shapes against the keys present in the data and returns
// the index of the winner, or -1.
//
// A shape qualifies when every key it requires is present. Among qualifying
// shapes the one requiring the most keys wins, then the one knowing the most
// present keys (equivalently, leaving the fewest unknown), then declaration
// order. When no shape qualifies, the shape knowing the most present keys
// wins, provided it knows at least one.
func bestMatch(keys map[string]bool, shapes []shape) int {
	best, bestRequired, bestKnown := -1, 0, 0
	fallback, fallbackKnown := -1, 0
	for i, s := range shapes {
		known := 0
		for k := range keys {
			if s.known[k] {
				known++
			}
		}
		qualifies := true
		for _, k := range s.required {
			if !keys[k] {
				qualifies = false
				break
			}
		}
		if !qualifies {
			if known > fallbackKnown {
				fallback, fallbackKnown = i, known
			}
			continue
		}
		required := len(s.required)
		if best < 0 || required > bestRequired || (required == bestRequired && known > bestKnown) {
			best, bestRequired, bestKnown = i, required, known
		}
	}
	if best >= 0 {
		return best
	}
	return fallback
}
