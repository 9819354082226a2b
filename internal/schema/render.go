package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render produces SDL from the Schema. Types and directives are sorted by
// name; built-in scalars and parser-prelude directives are omitted.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	r := renderer{schema: s}

	for _, name := range s.TypeNames() {
		typ := s.Types[name]
		if typ.Kind == TypeKindScalar && IsBuiltinScalar(name) || strings.HasPrefix(name, "__") {
			continue
		}
		switch typ.Kind {
		case TypeKindScalar:
			r.scalar(typ)
		case TypeKindEnum:
			r.enum(typ)
		case TypeKindInputObject:
			r.inputObject(typ)
		case TypeKindObject:
			r.object("type", typ)
		case TypeKindInterface:
			r.object("interface", typ)
		case TypeKindUnion:
			r.union(typ)
		}
	}

	names := make([]string, 0, len(s.Directives))
	for name := range s.Directives {
		if !preludeDirectives[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		r.directive(s.Directives[name])
	}

	return strings.TrimRight(r.b.String(), "\n") + "\n"
}

// FormatValue renders value as a GraphQL literal of type typ.
func FormatValue(s *Schema, value any, typ *TypeRef) string {
	r := renderer{schema: s}
	return r.value(value, typ)
}

type renderer struct {
	schema *Schema
	b      strings.Builder
}

func (r *renderer) description(desc, indent string) {
	if desc == "" {
		return
	}
	r.b.WriteString(indent)
	r.b.WriteString(`"""`)
	r.b.WriteString("\n")
	for _, line := range strings.Split(strings.ReplaceAll(desc, `"""`, `\"""`), "\n") {
		r.b.WriteString(indent)
		r.b.WriteString(line)
		r.b.WriteString("\n")
	}
	r.b.WriteString(indent)
	r.b.WriteString(`"""`)
	r.b.WriteString("\n")
}

func (r *renderer) deprecation(deprecated bool, reason string) {
	if !deprecated {
		return
	}
	r.b.WriteString(" @deprecated")
	if reason != "" {
		r.b.WriteString("(reason: ")
		r.b.WriteString(strconv.Quote(reason))
		r.b.WriteString(")")
	}
}

func (r *renderer) scalar(typ *Type) {
	r.description(typ.Description, "")
	r.b.WriteString("scalar ")
	r.b.WriteString(typ.Name)
	if typ.SpecifiedByURL != nil {
		r.b.WriteString(" @specifiedBy(url: ")
		r.b.WriteString(strconv.Quote(*typ.SpecifiedByURL))
		r.b.WriteString(")")
	}
	r.b.WriteString("\n\n")
}

func (r *renderer) enum(typ *Type) {
	r.description(typ.Description, "")
	fmt.Fprintf(&r.b, "enum %s {\n", typ.Name)
	for _, val := range typ.EnumValues {
		r.description(val.Description, "  ")
		r.b.WriteString("  ")
		r.b.WriteString(val.Name)
		r.deprecation(val.IsDeprecated, val.DeprecationReason)
		r.b.WriteString("\n")
	}
	r.b.WriteString("}\n\n")
}

func (r *renderer) inputObject(typ *Type) {
	r.description(typ.Description, "")
	r.b.WriteString("input ")
	r.b.WriteString(typ.Name)
	if typ.OneOf {
		r.b.WriteString(" @oneOf")
	}
	r.b.WriteString(" {\n")
	for _, field := range typ.InputFields {
		r.description(field.Description, "  ")
		r.b.WriteString("  ")
		r.inputValue(field)
		r.b.WriteString("\n")
	}
	r.b.WriteString("}\n\n")
}

func (r *renderer) object(keyword string, typ *Type) {
	r.description(typ.Description, "")
	r.b.WriteString(keyword)
	r.b.WriteString(" ")
	r.b.WriteString(typ.Name)
	if len(typ.Interfaces) > 0 {
		r.b.WriteString(" implements ")
		r.b.WriteString(strings.Join(typ.Interfaces, " & "))
	}
	r.b.WriteString(" {\n")
	for _, field := range typ.Fields {
		r.field(field)
	}
	r.b.WriteString("}\n\n")
}

func (r *renderer) union(typ *Type) {
	r.description(typ.Description, "")
	fmt.Fprintf(&r.b, "union %s = %s\n\n", typ.Name, strings.Join(typ.PossibleTypes, " | "))
}

func (r *renderer) field(field *Field) {
	r.description(field.Description, "  ")
	r.b.WriteString("  ")
	r.b.WriteString(field.Name)
	r.arguments(field.Arguments)
	r.b.WriteString(": ")
	r.b.WriteString(field.Type.String())
	r.deprecation(field.IsDeprecated, field.DeprecationReason)
	r.b.WriteString("\n")
}

func (r *renderer) arguments(args []*InputValue) {
	if len(args) == 0 {
		return
	}
	r.b.WriteString("(")
	for i, arg := range args {
		if i > 0 {
			r.b.WriteString(", ")
		}
		r.inputValue(arg)
	}
	r.b.WriteString(")")
}

func (r *renderer) inputValue(v *InputValue) {
	r.b.WriteString(v.Name)
	r.b.WriteString(": ")
	r.b.WriteString(v.Type.String())
	if v.DefaultValue != nil {
		r.b.WriteString(" = ")
		r.b.WriteString(r.value(v.DefaultValue, v.Type))
	}
	r.deprecation(v.IsDeprecated, v.DeprecationReason)
}

func (r *renderer) directive(d *Directive) {
	r.description(d.Description, "")
	r.b.WriteString("directive @")
	r.b.WriteString(d.Name)
	r.arguments(d.Arguments)
	if d.IsRepeatable {
		r.b.WriteString(" repeatable")
	}
	r.b.WriteString(" on ")
	r.b.WriteString(strings.Join(d.Locations, " | "))
	r.b.WriteString("\n\n")
}

// value renders a GraphQL literal. typ decides whether a string is an enum
// value; it may be nil.
func (r *renderer) value(value any, typ *TypeRef) string {
	if value == nil {
		return "null"
	}
	var named *Type
	if typ != nil {
		named = r.schema.Types[typ.GetNamedType()]
	}
	switch v := value.(type) {
	case string:
		if named != nil && named.Kind == TypeKindEnum {
			return v
		}
		return strconv.Quote(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		var inner *TypeRef
		if typ != nil && typ.IsList() {
			inner = Nullable(typ).OfType
		}
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = r.value(item, inner)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			var ft *TypeRef
			if named != nil {
				if f := named.InputField(k); f != nil {
					ft = f.Type
				}
			}
			parts[i] = k + ": " + r.value(v[k], ft)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}
