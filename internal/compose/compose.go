// Package compose turns a resolved JSON Schema document into a GraphQL
// schema builder.
package compose

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/hanpama/restgraph/internal/jsonschema"
	"github.com/hanpama/restgraph/internal/logging"
	"github.com/hanpama/restgraph/internal/schema"
)

// Root containers of the composite document and the root types they feed.
var roots = []struct {
	container string
	typeName  string
}{
	{"query", "Query"},
	{"mutation", "Mutation"},
	{"subscription", "Subscription"},
}

// InputArgument is the argument carrying an operation's request body.
const InputArgument = "input"

// PlaceholderField is added to an otherwise empty Query type.
const PlaceholderField = "_empty"

type Options struct {
	Logger *slog.Logger
}

// Diagnostic is an informational note about a lossy conversion.
type Diagnostic struct {
	Message string
	Pointer string
}

func (d Diagnostic) String() string {
	if d.Pointer == "" {
		return d.Message
	}
	return d.Message + " (" + d.Pointer + ")"
}

// Compose builds the GraphQL schema for doc. Root fields are async; every
// other field projects its parent value.
func Compose(doc *jsonschema.Document, opts Options) (*schema.Schema, []Diagnostic, error) {
	if doc == nil || doc.Root == nil {
		return nil, nil, fmt.Errorf("compose: empty document")
	}
	c := &composer{
		out:     schema.NewSchema(""),
		outputs: map[*jsonschema.Schema]*schema.TypeRef{},
		inputs:  map[*jsonschema.Schema]*schema.TypeRef{},
		log:     logging.Component(logging.OrNop(opts.Logger), "compose"),
	}
	c.out.AddDirective(schema.DeferDirective()).AddDirective(schema.StreamDirective())

	for _, r := range roots {
		container := doc.Root.Property(r.container)
		if container == nil || len(container.Properties) == 0 {
			continue
		}
		inputs := doc.Root.Property(r.container + "Input")
		root := schema.NewType(r.typeName, schema.TypeKindObject, "")
		for _, p := range container.Properties {
			root.AddField(c.rootField(p, inputs.Property(p.Name)))
		}
		c.out.AddType(root)
		c.setRoot(r.typeName)
	}

	if c.out.GetQueryType() == nil {
		c.out.AddType(schema.NewType("Query", schema.TypeKindObject, "").
			AddField(schema.NewField(PlaceholderField, "Present because no query operation is configured.", schema.NamedType("Boolean"))))
		c.out.SetQueryType("Query")
	}

	for _, d := range c.diags {
		c.log.Debug("composition note", "message", d.Message, "pointer", d.Pointer)
	}
	c.log.Debug("schema composed", "types", len(c.out.Types))
	return c.out, c.diags, nil
}

type composer struct {
	out     *schema.Schema
	outputs map[*jsonschema.Schema]*schema.TypeRef
	inputs  map[*jsonschema.Schema]*schema.TypeRef
	diags   []Diagnostic
	log     *slog.Logger
}

func (c *composer) setRoot(name string) {
	switch name {
	case "Query":
		c.out.SetQueryType(name)
	case "Mutation":
		c.out.SetMutationType(name)
	case "Subscription":
		c.out.SetSubscriptionType(name)
	}
}

func (c *composer) note(node *jsonschema.Schema, format string, args ...any) {
	d := Diagnostic{Message: fmt.Sprintf(format, args...)}
	if node != nil {
		d.Pointer = node.Location
	}
	c.diags = append(c.diags, d)
}

func (c *composer) rootField(p *jsonschema.Property, input *jsonschema.Schema) *schema.Field {
	f := schema.NewField(jsonschema.FieldName(p.Name), p.Schema.Description, c.output(p.Schema)).SetAsync(true)
	if p.Schema.Deprecated {
		f.Deprecate("")
	}
	if input != nil {
		typ := c.input(input)
		if requiresInput(input) {
			typ = schema.NonNullType(typ)
		}
		f.AddArgument(schema.NewInputValue(InputArgument, input.Description, typ))
	}
	return f
}

// requiresInput reports whether a request schema needs a non-null input:
// an object with required members, or a union.
func requiresInput(s *jsonschema.Schema) bool {
	if s.Nullable {
		return false
	}
	switch s.Kind {
	case jsonschema.KindObject:
		return len(s.Required) > 0
	case jsonschema.KindUnion:
		return true
	}
	return false
}

// output returns the nullable output type of node.
func (c *composer) output(node *jsonschema.Schema) *schema.TypeRef {
	if ref, ok := c.outputs[node]; ok {
		return ref
	}
	switch node.Kind {
	case jsonschema.KindObject:
		name := c.typeName(node, "Object")
		ref := schema.NamedType(name)
		c.outputs[node] = ref
		obj := schema.NewType(name, schema.TypeKindObject, node.Description)
		c.out.AddType(obj)
		for _, m := range c.members(node) {
			typ := c.output(m.prop.Schema)
			if m.required {
				typ = schema.NonNullType(typ)
			}
			f := schema.NewField(m.name, m.prop.Schema.Description, typ).SetKey(m.prop.Name)
			if m.prop.Schema.Deprecated {
				f.Deprecate("")
			}
			obj.AddField(f)
		}
		return ref

	case jsonschema.KindArray:
		if node.Items == nil {
			return schema.ListType(c.scalar(jsonScalar))
		}
		return schema.ListType(c.output(node.Items))

	case jsonschema.KindEnum:
		ref := c.enum(node)
		c.outputs[node] = ref
		return ref

	case jsonschema.KindUnion:
		var objects []string
		for _, m := range node.Members {
			if m.Kind != jsonschema.KindObject {
				c.note(node, "union member of kind %s is not an object; union degrades to JSON", m.Kind)
				ref := c.scalar(jsonScalar)
				c.outputs[node] = ref
				return ref
			}
		}
		name := c.typeName(node, "Union")
		ref := schema.NamedType(name)
		c.outputs[node] = ref
		union := schema.NewType(name, schema.TypeKindUnion, node.Description)
		c.out.AddType(union)
		for _, m := range node.Members {
			objects = append(objects, c.output(m).Named)
		}
		for _, o := range objects {
			union.AddPossibleType(o)
		}
		return ref
	}
	return c.leaf(node)
}

// leaf maps scalar kinds. Unknown shapes become JSON.
func (c *composer) leaf(node *jsonschema.Schema) *schema.TypeRef {
	switch node.Kind {
	case jsonschema.KindString:
		if name, ok := formatScalars[node.Format]; ok {
			return c.scalar(name)
		}
		return schema.NamedType("String")
	case jsonschema.KindInteger:
		if node.Format == "int64" {
			return c.scalar(bigIntScalar)
		}
		return schema.NamedType("Int")
	case jsonschema.KindNumber:
		return schema.NamedType("Float")
	case jsonschema.KindBoolean:
		return schema.NamedType("Boolean")
	}
	return c.scalar(jsonScalar)
}

func (c *composer) enum(node *jsonschema.Schema) *schema.TypeRef {
	name := c.typeName(node, "Enum")
	enum := schema.NewType(name, schema.TypeKindEnum, node.Description)
	seen := map[string]bool{}
	for _, v := range node.Enum {
		if v == nil {
			continue
		}
		valueName := jsonschema.EnumValueName(v)
		if seen[valueName] {
			c.note(node, "enum value %v collides with %s and is dropped", v, valueName)
			continue
		}
		seen[valueName] = true
		ev := schema.NewEnumValue(valueName, "")
		if s, ok := v.(string); !ok || s != valueName {
			ev.SetValue(v)
		}
		enum.AddEnumValue(ev)
	}
	if len(enum.EnumValues) == 0 {
		c.note(node, "enum without usable values becomes JSON")
		return c.scalar(jsonScalar)
	}
	c.out.AddType(enum)
	return schema.NamedType(name)
}

// input returns the nullable input type of node.
func (c *composer) input(node *jsonschema.Schema) *schema.TypeRef {
	if ref, ok := c.inputs[node]; ok {
		return ref
	}
	switch node.Kind {
	case jsonschema.KindObject:
		name := c.inputName(node)
		ref := schema.NamedType(name)
		c.inputs[node] = ref
		obj := schema.NewType(name, schema.TypeKindInputObject, node.Description)
		c.out.AddType(obj)
		for _, m := range c.members(node) {
			typ := c.input(m.prop.Schema)
			if m.required {
				typ = schema.NonNullType(typ)
			}
			v := schema.NewInputValue(m.name, m.prop.Schema.Description, typ).SetKey(m.prop.Name)
			if def, ok := c.defaultValue(m.prop.Schema); ok && !m.required {
				v.SetDefault(def)
			}
			if m.prop.Schema.Deprecated && !m.required {
				v.Deprecate("")
			}
			obj.AddInputField(v)
		}
		return ref

	case jsonschema.KindArray:
		if node.Items == nil {
			return schema.ListType(c.scalar(jsonScalar))
		}
		return schema.ListType(c.input(node.Items))

	case jsonschema.KindEnum:
		ref := c.output(node)
		c.inputs[node] = ref
		return ref

	case jsonschema.KindUnion:
		name := c.inputName(node)
		ref := schema.NamedType(name)
		c.inputs[node] = ref
		wrapper := schema.NewType(name, schema.TypeKindInputObject, node.Description).SetOneOf(true)
		c.out.AddType(wrapper)
		used := map[string]bool{}
		for _, m := range node.Members {
			key := memberKey(m)
			for i := 2; used[key]; i++ {
				key = fmt.Sprintf("%s%d", memberKey(m), i)
			}
			used[key] = true
			wrapper.AddInputField(schema.NewInputValue(key, m.Description, c.input(m)))
		}
		return ref
	}
	return c.leaf(node)
}

// memberKey names the @oneOf field of a union member: its type name, or its
// kind for unnamed scalar members.
func memberKey(m *jsonschema.Schema) string {
	if m.Name != "" {
		return m.Name
	}
	return jsonschema.TypeName(m.Kind.String())
}

// defaultValue returns a GraphQL-compatible default for leaf nodes.
func (c *composer) defaultValue(node *jsonschema.Schema) (any, bool) {
	if node.Default == nil {
		return nil, false
	}
	switch node.Kind {
	case jsonschema.KindString:
		v, ok := node.Default.(string)
		return v, ok
	case jsonschema.KindBoolean:
		v, ok := node.Default.(bool)
		return v, ok
	case jsonschema.KindInteger:
		switch v := node.Default.(type) {
		case int64:
			return v, true
		case float64:
			if v == float64(int64(v)) {
				return int64(v), true
			}
		}
	case jsonschema.KindNumber:
		switch v := node.Default.(type) {
		case int64:
			return float64(v), true
		case float64:
			return v, true
		}
	case jsonschema.KindEnum:
		for _, v := range node.Enum {
			if v == node.Default {
				return jsonschema.EnumValueName(v), true
			}
		}
	}
	c.note(node, "default value %v is not representable and is dropped", node.Default)
	return nil, false
}

type member struct {
	name     string
	prop     *jsonschema.Property
	required bool
}

// members lists the GraphQL fields of an object node. Property names are
// sanitized; collisions after sanitization get numeric suffixes.
func (c *composer) members(node *jsonschema.Schema) []member {
	out := make([]member, 0, len(node.Properties))
	used := map[string]bool{}
	for _, p := range node.Properties {
		name := jsonschema.FieldName(p.Name)
		if used[name] {
			base := name
			for i := 2; used[name]; i++ {
				name = fmt.Sprintf("%s_%d", base, i)
			}
			c.note(node, "property %q renamed to %s", p.Name, name)
		}
		used[name] = true
		out = append(out, member{
			name:     name,
			prop:     p,
			required: node.IsRequired(p.Name) && !p.Schema.Nullable,
		})
	}
	return out
}

func (c *composer) typeName(node *jsonschema.Schema, fallback string) string {
	if node.Name != "" && c.out.Types[node.Name] == nil {
		return node.Name
	}
	base := node.Name
	if base == "" {
		base = jsonschema.TypeName(node.Title)
	}
	if base == "" {
		base = fallback
	}
	return c.free(base)
}

func (c *composer) inputName(node *jsonschema.Schema) string {
	base := node.Name
	if base == "" {
		base = jsonschema.TypeName(node.Title)
	}
	if base == "" {
		base = "Object"
	}
	return c.free(base + "Input")
}

// free returns name, or name with the lowest numeric suffix not yet taken.
func (c *composer) free(name string) string {
	if c.out.Types[name] == nil {
		return name
	}
	for i := 2; ; i++ {
		n := fmt.Sprintf("%s%d", name, i)
		if c.out.Types[n] == nil {
			return n
		}
	}
}

// Scalars added on demand.
const (
	jsonScalar   = "JSON"
	bigIntScalar = "BigInt"
)

var formatScalars = map[string]string{
	"date-time": "DateTime",
	"date":      "Date",
	"time":      "Time",
	"email":     "EmailAddress",
	"uri":       "URL",
	"url":       "URL",
	"uuid":      "UUID",
	"ipv4":      "IPv4",
	"ipv6":      "IPv6",
}

var scalarSpecs = map[string]struct {
	description string
	url         string
}{
	jsonScalar:     {"Arbitrary JSON value.", "https://www.ecma-international.org/publications-and-standards/standards/ecma-404/"},
	bigIntScalar:   {"Integer outside the 32-bit range, serialized as a JSON number.", ""},
	"DateTime":     {"Date and time in RFC 3339 format.", "https://www.rfc-editor.org/rfc/rfc3339"},
	"Date":         {"Calendar date in RFC 3339 full-date format.", "https://www.rfc-editor.org/rfc/rfc3339"},
	"Time":         {"Time of day in RFC 3339 partial-time format.", "https://www.rfc-editor.org/rfc/rfc3339"},
	"EmailAddress": {"Email address.", "https://www.rfc-editor.org/rfc/rfc5322"},
	"URL":          {"Absolute URL.", "https://www.rfc-editor.org/rfc/rfc3986"},
	"UUID":         {"RFC 4122 UUID.", "https://www.rfc-editor.org/rfc/rfc4122"},
	"IPv4":         {"IPv4 address in dotted-quad notation.", ""},
	"IPv6":         {"IPv6 address.", "https://www.rfc-editor.org/rfc/rfc4291"},
}

// ScalarNames lists the custom scalars the composer may emit.
func ScalarNames() []string {
	names := make([]string, 0, len(scalarSpecs))
	for name := range scalarSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *composer) scalar(name string) *schema.TypeRef {
	if c.out.Types[name] == nil {
		spec := scalarSpecs[name]
		t := schema.NewType(name, schema.TypeKindScalar, spec.description)
		if spec.url != "" {
			t.SetSpecifiedByURL(spec.url)
		}
		c.out.AddType(t)
	}
	return schema.NamedType(name)
}
