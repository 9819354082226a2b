package schema

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// Load renders s and loads it with gqlparser, which validates the type
// system. The returned schema is what queries are validated against.
func Load(s *Schema) (*ast.Schema, error) {
	loaded, err := gqlparser.LoadSchema(&ast.Source{Name: "restgraph.graphql", Input: Render(s)})
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return loaded, nil
}

// ParseTypeRef parses a type reference such as "[ID!]!".
func ParseTypeRef(src string) (*TypeRef, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty type reference")
	}
	doc, err := parser.ParseQuery(&ast.Source{Input: "query($v: " + src + ") { __typename }"})
	if err != nil {
		return nil, fmt.Errorf("parse type %q: %w", src, err)
	}
	op := doc.Operations[0]
	if len(op.VariableDefinitions) != 1 {
		return nil, fmt.Errorf("parse type %q: not a type reference", src)
	}
	return FromASTType(op.VariableDefinitions[0].Type), nil
}

// FromASTType converts a gqlparser type reference.
func FromASTType(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(FromASTType(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = NonNullType(ref)
	}
	return ref
}

// FromASTDefinition converts a gqlparser type definition.
func FromASTDefinition(def *ast.Definition) *Type {
	t := NewType(def.Name, kindFromAST(def.Kind), def.Description)
	t.Interfaces = append(t.Interfaces, def.Interfaces...)
	t.PossibleTypes = append(t.PossibleTypes, def.Types...)
	for _, ev := range def.EnumValues {
		v := NewEnumValue(ev.Name, ev.Description)
		if reason, ok := deprecation(ev.Directives); ok {
			v.Deprecate(reason)
		}
		t.AddEnumValue(v)
	}
	for _, fd := range def.Fields {
		if def.Kind == ast.InputObject {
			t.AddInputField(inputValueFromAST(fd.Name, fd.Description, fd.Type, fd.DefaultValue, fd.Directives))
			continue
		}
		f := NewField(fd.Name, fd.Description, FromASTType(fd.Type))
		for _, arg := range fd.Arguments {
			f.AddArgument(inputValueFromAST(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives))
		}
		if reason, ok := deprecation(fd.Directives); ok {
			f.Deprecate(reason)
		}
		t.AddField(f)
	}
	if def.Directives.ForName("oneOf") != nil {
		t.OneOf = true
	}
	return t
}

// IntrospectionTypes returns the __Schema, __Type and related types declared
// by the parser prelude.
func IntrospectionTypes() ([]*Type, error) {
	doc, err := parser.ParseSchema(validator.Prelude)
	if err != nil {
		return nil, fmt.Errorf("parse prelude: %w", err)
	}
	var out []*Type
	for _, def := range doc.Definitions {
		if strings.HasPrefix(def.Name, "__") {
			out = append(out, FromASTDefinition(def))
		}
	}
	return out, nil
}

func inputValueFromAST(name, description string, typ *ast.Type, def *ast.Value, dirs ast.DirectiveList) *InputValue {
	v := NewInputValue(name, description, FromASTType(typ))
	if def != nil {
		if value, err := def.Value(nil); err == nil {
			v.SetDefault(value)
		}
	}
	if reason, ok := deprecation(dirs); ok {
		v.Deprecate(reason)
	}
	return v
}

func deprecation(dirs ast.DirectiveList) (string, bool) {
	d := dirs.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return "No longer supported", true
}

func kindFromAST(k ast.DefinitionKind) TypeKind {
	switch k {
	case ast.Object:
		return TypeKindObject
	case ast.Interface:
		return TypeKindInterface
	case ast.Union:
		return TypeKindUnion
	case ast.Enum:
		return TypeKindEnum
	case ast.InputObject:
		return TypeKindInputObject
	}
	return TypeKindScalar
}
