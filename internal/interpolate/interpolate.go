// Package interpolate substitutes ${name} and ${name:default} placeholders in
// URLs, headers, topics and error templates.
//
// A name is a dotted path. Everything after the first ':' is the default,
// which may itself contain ':'. Missing values render as the default, or as
// the empty string when there is none.
package interpolate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Placeholder is one ${...} occurrence in a template.
type Placeholder struct {
	Name       string
	Default    string
	HasDefault bool
	// Start and End delimit the placeholder, including "${" and "}".
	Start, End int
}

// Parse returns the placeholders of s in order of appearance. An unterminated
// "${" is left as literal text.
func Parse(s string) []Placeholder {
	var out []Placeholder
	for i := 0; i < len(s); {
		open := strings.Index(s[i:], "${")
		if open < 0 {
			break
		}
		open += i
		closing := strings.IndexByte(s[open+2:], '}')
		if closing < 0 {
			break
		}
		closing += open + 2
		body := s[open+2 : closing]
		p := Placeholder{Start: open, End: closing + 1}
		if name, def, ok := strings.Cut(body, ":"); ok {
			p.Name, p.Default, p.HasDefault = strings.TrimSpace(name), def, true
		} else {
			p.Name = strings.TrimSpace(body)
		}
		out = append(out, p)
		i = closing + 1
	}
	return out
}

// Has reports whether s contains at least one placeholder.
func Has(s string) bool { return len(Parse(s)) > 0 }

// Resolver looks up a placeholder name.
type Resolver func(name string) (any, bool)

// Render replaces every placeholder of tmpl using resolve.
func Render(tmpl string, resolve Resolver) string {
	ps := Parse(tmpl)
	if len(ps) == 0 {
		return tmpl
	}
	var b strings.Builder
	last := 0
	for _, p := range ps {
		b.WriteString(tmpl[last:p.Start])
		v, ok := resolve(p.Name)
		if ok && v != nil {
			b.WriteString(Format(v))
		} else if p.HasDefault {
			b.WriteString(p.Default)
		}
		last = p.End
	}
	b.WriteString(tmpl[last:])
	return b.String()
}

// Lookup resolves a dotted path against nested maps and slices.
func Lookup(data any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	x := jp.R()
	for _, seg := range strings.Split(path, ".") {
		if n, err := strconv.Atoi(seg); err == nil {
			x = x.N(n)
			continue
		}
		x = x.C(seg)
	}
	v := x.First(data)
	return v, v != nil
}

// Object renders tmpl against the fields of obj. It is used for error
// message templates where ${code} refers to obj["code"].
func Object(tmpl string, obj map[string]any) string {
	return Render(tmpl, func(name string) (any, bool) { return Lookup(obj, name) })
}

// Format renders a resolved value as text. Objects and lists are encoded as
// compact JSON.
func Format(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
