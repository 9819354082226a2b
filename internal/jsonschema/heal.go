package jsonschema

// Heal normalizes a dereferenced document in place and assigns every node's
// Kind:
//   - a missing type is inferred from properties, items, enum or const;
//   - ["T", "null"] becomes T with Nullable set;
//   - const becomes a single-value enum;
//   - allOf members are merged into their parent;
//   - oneOf/anyOf with one member collapse to that member, more become a
//     union, unless the node declares properties or a type other than a
//     bare object;
//   - required names without a matching property are dropped;
//   - objects without properties become KindAny.
func Heal(doc *Document) {
	h := healer{done: map[*Schema]*Schema{}}
	doc.Root = h.heal(doc.Root)
}

type healer struct {
	// done maps a node to its replacement. A node maps to itself while it is
	// being healed so cycles terminate.
	done map[*Schema]*Schema
}

func (h *healer) heal(s *Schema) *Schema {
	if s == nil {
		return nil
	}
	if r, ok := h.done[s]; ok {
		return r
	}
	h.done[s] = s

	h.normalizeTypes(s)
	if len(s.AllOf) > 0 {
		h.mergeAllOf(s)
	}
	for _, p := range s.Properties {
		p.Schema = h.heal(p.Schema)
	}
	s.AdditionalProperties = h.heal(s.AdditionalProperties)
	s.Items = h.heal(s.Items)
	s.Required = keepDeclared(s.Required, s.Properties)

	// A bare "type": "object" beside oneOf/anyOf only labels the
	// alternatives. Next to a real shape they just constrain it.
	if hasAlternatives(s) && isShapelessObject(s) {
		s.Types = nil
	}
	if len(s.Types) > 0 || len(s.Properties) > 0 {
		s.OneOf, s.AnyOf = nil, nil
	}
	if alts := h.alternatives(s); len(alts) > 0 {
		if len(alts) == 1 {
			s.Kind, s.Members = KindUnion, alts
			m := alts[0]
			if s.Nullable && !m.Nullable {
				// Shared members must not inherit the nullability of one use.
				cp := *m
				cp.Nullable = true
				m = &cp
			}
			h.done[s] = m
			return m
		}
		if len(alts) > 1 {
			s.Kind = KindUnion
			s.Members = alts
			return s
		}
	}
	s.Kind = kindOf(s)
	return s
}

func (h *healer) normalizeTypes(s *Schema) {
	if s.HasConst && len(s.Enum) == 0 {
		s.Enum = []any{s.Const}
	}
	for _, v := range s.Enum {
		if v == nil {
			s.Nullable = true
		}
	}
	types := s.Types[:0:0]
	for _, t := range s.Types {
		if t == "null" {
			s.Nullable = true
			continue
		}
		types = append(types, t)
	}
	if len(types) == 0 && s.Nullable && len(s.Types) == 1 {
		// A lone "null" type.
		s.Types = []string{"null"}
		return
	}
	s.Types = types
	if len(s.Types) > 0 {
		return
	}
	switch {
	case len(s.Properties) > 0 || s.AdditionalProperties != nil || s.Closed:
		s.Types = []string{"object"}
	case s.Items != nil:
		s.Types = []string{"array"}
	case len(s.Enum) > 0:
		if t := enumType(s.Enum); t != "" {
			s.Types = []string{t}
		}
	}
}

// mergeAllOf folds allOf members into s. The parent's own keywords win.
func (h *healer) mergeAllOf(s *Schema) {
	members := s.AllOf
	s.AllOf = nil
	for _, m := range members {
		m = h.heal(m)
		if m == nil || m == s {
			continue
		}
		if m.Kind == KindUnion {
			s.AnyOf = append(s.AnyOf, m.Members...)
			continue
		}
		if len(s.Types) == 0 && len(m.Types) > 0 {
			s.Types = append([]string(nil), m.Types...)
		}
		if s.Format == "" {
			s.Format = m.Format
		}
		if s.Description == "" {
			s.Description = m.Description
		}
		if s.Items == nil {
			s.Items = m.Items
		}
		if len(s.Enum) == 0 {
			s.Enum = m.Enum
		}
		if s.AdditionalProperties == nil {
			s.AdditionalProperties = m.AdditionalProperties
		}
		for _, p := range m.Properties {
			if s.Property(p.Name) == nil {
				s.Properties = append(s.Properties, &Property{Name: p.Name, Schema: p.Schema})
			}
		}
		for _, r := range m.Required {
			if !s.IsRequired(r) {
				s.Required = append(s.Required, r)
			}
		}
	}
	if len(s.Types) == 0 && len(s.Properties) > 0 {
		s.Types = []string{"object"}
	}
}

// alternatives heals oneOf/anyOf members, dropping null members and
// duplicates.
func (h *healer) alternatives(s *Schema) []*Schema {
	if len(s.OneOf) == 0 && len(s.AnyOf) == 0 {
		return nil
	}
	var out []*Schema
	seen := map[*Schema]bool{}
	for _, m := range append(append([]*Schema(nil), s.OneOf...), s.AnyOf...) {
		m = h.heal(m)
		if m == nil || seen[m] {
			continue
		}
		seen[m] = true
		if m.Kind == KindNull {
			s.Nullable = true
			continue
		}
		if m.Kind == KindUnion {
			for _, mm := range m.Members {
				if !seen[mm] {
					seen[mm] = true
					out = append(out, mm)
				}
			}
			continue
		}
		out = append(out, m)
	}
	s.OneOf, s.AnyOf = nil, nil
	return out
}

func hasAlternatives(s *Schema) bool { return len(s.OneOf) > 0 || len(s.AnyOf) > 0 }

func isShapelessObject(s *Schema) bool {
	return len(s.Types) == 1 && s.Types[0] == "object" && len(s.Properties) == 0 && s.AdditionalProperties == nil
}

func kindOf(s *Schema) Kind {
	if len(s.Types) != 1 {
		return KindAny
	}
	switch s.Types[0] {
	case "object":
		if len(s.Properties) == 0 {
			return KindAny
		}
		return KindObject
	case "array":
		return KindArray
	case "string", "integer", "number":
		if len(s.Enum) > 0 {
			return KindEnum
		}
		switch s.Types[0] {
		case "integer":
			return KindInteger
		case "number":
			return KindNumber
		}
		return KindString
	case "boolean":
		return KindBoolean
	case "null":
		return KindNull
	}
	return KindAny
}

func enumType(values []any) string {
	t := ""
	for _, v := range values {
		var vt string
		switch v.(type) {
		case nil:
			continue
		case string:
			vt = "string"
		case bool:
			vt = "boolean"
		case int64, int, float64:
			vt = "number"
		default:
			return ""
		}
		if t != "" && t != vt {
			return ""
		}
		t = vt
	}
	return t
}

func keepDeclared(required []string, props []*Property) []string {
	if len(required) == 0 {
		return nil
	}
	out := required[:0:0]
	for _, r := range required {
		for _, p := range props {
			if p.Name == r {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
