// Package jsonschema resolves the composite JSON Schema of a restgraph source
// into a graph of Schema nodes ready for GraphQL composition.
//
// Resolution always runs three stages in order: Dereference (load and inline
// every $ref), Heal (normalize shapes the composer cannot use directly) and
// Rereference (name and deduplicate shared nodes).
package jsonschema

// Raw is an unresolved JSON Schema document.
type Raw = map[string]any

// Kind is the shape of a healed schema node.
type Kind int

const (
	KindAny Kind = iota
	KindObject
	KindArray
	KindString
	KindInteger
	KindNumber
	KindBoolean
	KindNull
	KindEnum
	KindUnion
)

var kindNames = [...]string{"any", "object", "array", "string", "integer", "number", "boolean", "null", "enum", "union"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Schema is a dereferenced JSON Schema node. Nodes form a graph: shared and
// recursive references point at the same *Schema.
type Schema struct {
	// Kind is set by Heal.
	Kind Kind
	// Name is the GraphQL type name assigned by Rereference for object, enum
	// and union nodes.
	Name string

	Location    string
	Types       []string
	Title       string
	Description string
	Format      string
	Default     any
	Deprecated  bool
	Nullable    bool

	Properties []*Property
	Required   []string
	// AdditionalProperties is the schema of extra object members, if any.
	AdditionalProperties *Schema
	// Closed is true when additionalProperties is false.
	Closed bool

	Items *Schema

	Enum     []any
	Const    any
	HasConst bool

	AllOf []*Schema
	AnyOf []*Schema
	OneOf []*Schema
	// Members holds the alternatives of a KindUnion node after Heal.
	Members []*Schema
}

// Property is a named object member. Order is deterministic.
type Property struct {
	Name   string
	Schema *Schema
}

// Property returns the member with the given name, or nil.
func (s *Schema) Property(name string) *Schema {
	if s == nil {
		return nil
	}
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema
		}
	}
	return nil
}

// IsRequired reports whether name is a required member.
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// HasType reports whether t is one of the declared JSON types.
func (s *Schema) HasType(t string) bool {
	for _, x := range s.Types {
		if x == t {
			return true
		}
	}
	return false
}

// Document is the resolved composite schema.
type Document struct {
	Root *Schema
	// Definitions lists every named node in discovery order.
	Definitions []*Schema
}

// Definition returns the named node, or nil.
func (d *Document) Definition(name string) *Schema {
	for _, s := range d.Definitions {
		if s.Name == name {
			return s
		}
	}
	return nil
}
