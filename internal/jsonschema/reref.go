package jsonschema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Rereference names every object, enum and union node reachable from the
// operation fields of doc and merges structurally identical nodes, so a
// shape used in several places becomes one shared definition. The root and
// its operation containers are left unnamed.
func Rereference(doc *Document) {
	r := &rereferencer{
		doc:     doc,
		prints:  map[*Schema]string{},
		byPrint: map[string]*Schema{},
		canon:   map[*Schema]*Schema{},
		used:    map[string]bool{},
	}
	doc.Definitions = nil
	if doc.Root == nil {
		return
	}
	for _, container := range doc.Root.Properties {
		for _, field := range container.Schema.Properties {
			field.Schema = r.visit(field.Schema)
		}
	}
}

type rereferencer struct {
	doc     *Document
	prints  map[*Schema]string
	byPrint map[string]*Schema
	canon   map[*Schema]*Schema
	used    map[string]bool
}

func (r *rereferencer) visit(s *Schema) *Schema {
	if s == nil {
		return nil
	}
	if c, ok := r.canon[s]; ok {
		return c
	}
	fp, _ := r.fingerprint(s, nil)
	if c, ok := r.byPrint[fp]; ok {
		r.canon[s] = c
		return c
	}
	r.byPrint[fp] = s
	r.canon[s] = s

	switch s.Kind {
	case KindObject, KindEnum, KindUnion:
		s.Name = r.unique(r.baseName(s))
		r.doc.Definitions = append(r.doc.Definitions, s)
	}
	for _, p := range s.Properties {
		p.Schema = r.visit(p.Schema)
	}
	s.Items = r.visit(s.Items)
	s.AdditionalProperties = r.visit(s.AdditionalProperties)
	for i, m := range s.Members {
		s.Members[i] = r.visit(m)
	}
	return s
}

func (r *rereferencer) baseName(s *Schema) string {
	if n := TypeName(s.Title); n != "" {
		return n
	}
	if n := locationName(s.Location); n != "" {
		return n
	}
	switch s.Kind {
	case KindEnum:
		return "Enum"
	case KindUnion:
		return "Union"
	}
	return "Object"
}

func (r *rereferencer) unique(name string) string {
	if !r.used[name] && !reserved[name] {
		r.used[name] = true
		return name
	}
	for i := 2; ; i++ {
		n := fmt.Sprintf("%s%d", name, i)
		if !r.used[n] && !reserved[n] {
			r.used[n] = true
			return n
		}
	}
}

// reserved names are taken by root types and built-in scalars.
var reserved = map[string]bool{
	"Query": true, "Mutation": true, "Subscription": true,
	"String": true, "Int": true, "Float": true, "Boolean": true, "ID": true,
	"JSON": true, "DateTime": true, "Date": true, "Time": true, "EmailAddress": true,
	"URL": true, "UUID": true, "IPv4": true, "IPv6": true, "BigInt": true,
}

// fingerprint hashes the structure of s. Back references into the current
// path are encoded by distance, so recursive shapes hash finitely. It
// returns the lowest stack index referenced; a node's hash is memoized only
// when it does not depend on its ancestors.
func (r *rereferencer) fingerprint(s *Schema, stack []*Schema) (string, int) {
	if s == nil {
		return "-", math.MaxInt
	}
	if fp, ok := r.prints[s]; ok {
		return fp, math.MaxInt
	}
	for i, a := range stack {
		if a == s {
			return fmt.Sprintf("^%d", len(stack)-i), i
		}
	}
	depth := len(stack)
	stack = append(stack, s)
	low := math.MaxInt

	var b strings.Builder
	fmt.Fprintf(&b, "k=%d;t=%q;d=%q;f=%q;n=%t;c=%t;dep=%t;", s.Kind, s.Title, s.Description, s.Format, s.Nullable, s.Closed, s.Deprecated)
	fmt.Fprintf(&b, "types=%v;enum=%v;", s.Types, s.Enum)
	req := append([]string(nil), s.Required...)
	sort.Strings(req)
	fmt.Fprintf(&b, "req=%v;", req)
	child := func(label string, c *Schema) {
		fp, l := r.fingerprint(c, stack)
		if l < low {
			low = l
		}
		b.WriteString(label)
		b.WriteByte('=')
		b.WriteString(fp)
		b.WriteByte(';')
	}
	for _, p := range s.Properties {
		child("p:"+p.Name, p.Schema)
	}
	child("items", s.Items)
	child("ap", s.AdditionalProperties)
	for i, m := range s.Members {
		child(fmt.Sprintf("m%d", i), m)
	}

	sum := sha256.Sum256([]byte(b.String()))
	fp := hex.EncodeToString(sum[:16])
	if low >= depth {
		r.prints[s] = fp
	}
	return fp, low
}
