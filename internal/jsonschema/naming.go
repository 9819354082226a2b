package jsonschema

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"unicode"
)

// TypeName converts s into a PascalCase GraphQL type name. It returns ""
// when s has no letters or digits.
func TypeName(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !isNameRune(r) || r == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out != "" && unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}

// FieldName replaces every character GraphQL does not allow in a name with
// an underscore.
func FieldName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || unicode.IsDigit(rune(out[0])) {
		out = "_" + out
	}
	return out
}

// EnumValueName maps a JSON enum value to a GraphQL enum value name.
func EnumValueName(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		if t == "" {
			return "_EMPTY"
		}
		s = t
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = formatScalar(t)
	}
	switch s {
	case "true", "false", "null":
		return strings.ToUpper(s)
	}
	return FieldName(s)
}

func isNameRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

var locationKeywords = map[string]bool{
	"properties": true, "items": true, "prefixItems": true, "additionalProperties": true,
	"allOf": true, "anyOf": true, "oneOf": true, "definitions": true, "$defs": true,
}

// locationName derives a type name from a schema location: the last
// meaningful JSON pointer segment, or the document's file name.
func locationName(loc string) string {
	doc, frag, _ := strings.Cut(loc, "#")
	segs := strings.Split(strings.Trim(frag, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		seg := unescapePointer(segs[i])
		if seg == "" || locationKeywords[seg] {
			continue
		}
		if _, err := strconv.Atoi(seg); err == nil {
			continue
		}
		if n := TypeName(seg); n != "" {
			return n
		}
	}
	if u, err := url.Parse(doc); err == nil {
		base := path.Base(u.Path)
		base = strings.TrimSuffix(base, path.Ext(base))
		if base != compositeName[:len(compositeName)-len(".json")] {
			return TypeName(base)
		}
	}
	return ""
}

func unescapePointer(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		s = u
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(s)
}
