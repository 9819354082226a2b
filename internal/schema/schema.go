// Package schema is the mutable GraphQL type registry the composer fills and
// the executor runs against.
package schema

// Schema is a complete GraphQL schema.
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type
	Directives       map[string]*Directive
	Description      string
}

func (s *Schema) GetQueryType() *Type        { return s.Types[s.QueryType] }
func (s *Schema) GetMutationType() *Type     { return s.Types[s.MutationType] }
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

// RootType returns the root type for "query", "mutation" or "subscription".
func (s *Schema) RootType(operation string) *Type {
	switch operation {
	case "query":
		return s.GetQueryType()
	case "mutation":
		return s.GetMutationType()
	case "subscription":
		return s.GetSubscriptionType()
	}
	return nil
}

// PossibleType reports whether object is a member of the abstract type
// abstract, or is abstract itself.
func (s *Schema) PossibleType(abstract, object string) bool {
	if abstract == object {
		return true
	}
	t := s.Types[abstract]
	if t == nil {
		return false
	}
	for _, name := range t.PossibleTypes {
		if name == object {
			return true
		}
	}
	return false
}

// Type is a named GraphQL type.
type Type struct {
	Name           string
	Kind           TypeKind
	Description    string
	Fields         []*Field      // OBJECT, INTERFACE
	Interfaces     []string      // OBJECT, INTERFACE
	PossibleTypes  []string      // INTERFACE, UNION
	EnumValues     []*EnumValue  // ENUM
	InputFields    []*InputValue // INPUT_OBJECT
	SpecifiedByURL *string
	OneOf          bool
}

// Field looks up an output field by name.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// InputField looks up an input field by name.
func (t *Type) InputField(name string) *InputValue {
	for _, f := range t.InputFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// EnumValue looks up an enum value by name.
func (t *Type) EnumValue(name string) *EnumValue {
	for _, v := range t.EnumValues {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// IsLeaf reports whether values of t serialize without a selection set.
func (t *Type) IsLeaf() bool {
	return t.Kind == TypeKindScalar || t.Kind == TypeKindEnum
}

// Field is a field on an object or interface.
type Field struct {
	Name        string
	Description string
	Type        *TypeRef
	Arguments   []*InputValue
	// Async routes the field through the runtime's batch path. Root fields
	// backed by upstream calls are async; projections of a parent value are
	// not.
	Async bool
	// Key is the property name in the upstream JSON when it differs from
	// Name.
	Key               string
	IsDeprecated      bool
	DeprecationReason string
}

// SourceKey returns the upstream JSON property the field reads.
func (f *Field) SourceKey() string {
	if f.Key != "" {
		return f.Key
	}
	return f.Name
}

// Argument looks up an argument by name.
func (f *Field) Argument(name string) *InputValue {
	for _, a := range f.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// TypeRef references a named type, possibly wrapped in List or Non-Null.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef
	Named  string
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

// IsList reports whether t is a list, or a non-null list.
func (t *TypeRef) IsList() bool {
	switch {
	case t == nil:
		return false
	case t.Kind == TypeRefKindList:
		return true
	case t.Kind == TypeRefKindNonNull:
		return t.OfType != nil && t.OfType.Kind == TypeRefKindList
	}
	return false
}

// Unwrap removes one List or Non-Null layer.
func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

// GetNamedType returns the innermost type name.
func (t *TypeRef) GetNamedType() string {
	for cur := t; cur != nil; cur = cur.OfType {
		if cur.Named != "" {
			return cur.Named
		}
	}
	return ""
}

// String renders t in SDL notation, e.g. "[User!]!".
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	}
	return t.Named
}

type EnumValue struct {
	Name        string
	Description string
	// Value is the upstream representation. Nil means the name itself.
	Value             any
	IsDeprecated      bool
	DeprecationReason string
}

type InputValue struct {
	Name         string
	Description  string
	Type         *TypeRef
	DefaultValue any
	// Key is the upstream JSON property when it differs from Name.
	Key               string
	IsDeprecated      bool
	DeprecationReason string
}

// SourceKey returns the upstream JSON property the value is written to.
func (v *InputValue) SourceKey() string {
	if v.Key != "" {
		return v.Key
	}
	return v.Name
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

func IsNonNull(t *TypeRef) bool     { return t != nil && t.IsNonNull() }
func IsList(t *TypeRef) bool        { return t != nil && t.IsList() }
func Unwrap(t *TypeRef) *TypeRef    { return t.Unwrap() }
func GetNamedType(t *TypeRef) string { return t.GetNamedType() }

// Nullable strips an outer Non-Null wrapper.
func Nullable(t *TypeRef) *TypeRef {
	if t.IsNonNull() {
		return t.OfType
	}
	return t
}
