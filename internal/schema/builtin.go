package schema

var builtinScalars = []*Type{
	{Name: "String", Kind: TypeKindScalar, Description: "The `String` scalar type represents textual data, represented as UTF-8 character sequences."},
	{Name: "Int", Kind: TypeKindScalar, Description: "The `Int` scalar type represents non-fractional signed whole numeric values."},
	{Name: "Float", Kind: TypeKindScalar, Description: "The `Float` scalar type represents signed double-precision fractional values."},
	{Name: "Boolean", Kind: TypeKindScalar, Description: "The `Boolean` scalar type represents `true` or `false`."},
	{Name: "ID", Kind: TypeKindScalar, Description: "The `ID` scalar type represents a unique identifier."},
}

func requiredBoolean() *TypeRef { return NonNullType(NamedType("Boolean")) }

var executableLocations = []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"}

var builtinDirectives = []*Directive{
	NewDirective("include", "Directs the executor to include this field or fragment only when the `if` argument is true.", executableLocations...).
		AddArgument(NewInputValue("if", "Included when true.", requiredBoolean())),
	NewDirective("skip", "Directs the executor to skip this field or fragment when the `if` argument is true.", executableLocations...).
		AddArgument(NewInputValue("if", "Skipped when true.", requiredBoolean())),
	NewDirective("deprecated", "Marks an element of a GraphQL schema as no longer supported.",
		"FIELD_DEFINITION", "ARGUMENT_DEFINITION", "INPUT_FIELD_DEFINITION", "ENUM_VALUE").
		AddArgument(NewInputValue("reason", "", NamedType("String")).SetDefault("No longer supported")),
	NewDirective("specifiedBy", "Exposes a URL that specifies the behavior of this scalar.", "SCALAR").
		AddArgument(NewInputValue("url", "The URL that specifies the behavior of this scalar.", NonNullType(NamedType("String")))),
	NewDirective("oneOf", "Indicates exactly one field must be supplied and this field must not be `null`.", "INPUT_OBJECT"),
}

// preludeDirectives are declared by the GraphQL parser's prelude and must
// not be rendered into SDL.
var preludeDirectives = map[string]bool{
	"include": true, "skip": true, "deprecated": true, "specifiedBy": true, "oneOf": true, "defer": true,
}

// IsBuiltinScalar reports whether name is one of the five standard scalars.
func IsBuiltinScalar(name string) bool {
	switch name {
	case "String", "Int", "Float", "Boolean", "ID":
		return true
	}
	return false
}

// DeferDirective returns the incremental delivery @defer directive.
func DeferDirective() *Directive {
	return NewDirective("defer", "Allows a fragment to be delivered after the initial payload.", "FRAGMENT_SPREAD", "INLINE_FRAGMENT").
		AddArgument(NewInputValue("if", "", requiredBoolean()).SetDefault(true)).
		AddArgument(NewInputValue("label", "", NamedType("String")))
}

// StreamDirective returns the incremental delivery @stream directive.
func StreamDirective() *Directive {
	return NewDirective("stream", "Allows a list field to be delivered incrementally.", "FIELD").
		AddArgument(NewInputValue("if", "", requiredBoolean()).SetDefault(true)).
		AddArgument(NewInputValue("label", "", NamedType("String"))).
		AddArgument(NewInputValue("initialCount", "", NamedType("Int")).SetDefault(0))
}
