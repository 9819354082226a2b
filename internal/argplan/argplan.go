// Package argplan adds GraphQL arguments for the ${...} placeholders used by
// operation URLs, headers and topics.
package argplan

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hanpama/restgraph/internal/config"
	"github.com/hanpama/restgraph/internal/errs"
	"github.com/hanpama/restgraph/internal/interpolate"
	"github.com/hanpama/restgraph/internal/jsonschema"
	"github.com/hanpama/restgraph/internal/schema"
)

// Argument is one placeholder-derived argument of an operation.
type Argument struct {
	Name       string
	Default    string
	HasDefault bool
}

// Placeholders lists the distinct argument placeholders an operation uses,
// in first-seen order. Scoped names (root., context., info., env.) are
// skipped. The first placeholder carrying a default supplies it.
func Placeholders(op config.Operation, src *config.Source) []Argument {
	var templates []string
	templates = append(templates, src.BaseURL, op.Path)
	templates = append(templates, sortedValues(src.OperationHeaders)...)
	templates = append(templates, sortedValues(op.Headers)...)
	templates = append(templates, op.PubSubTopic)
	templates = append(templates, sortedValues(src.QueryParams)...)

	var out []Argument
	index := map[string]int{}
	for _, tmpl := range templates {
		for _, p := range interpolate.Parse(tmpl) {
			name, ok := interpolate.ArgumentName(p.Name)
			if !ok {
				continue
			}
			if i, seen := index[name]; seen {
				if !out[i].HasDefault && p.HasDefault {
					out[i].Default, out[i].HasDefault = p.Default, true
				}
				continue
			}
			index[name] = len(out)
			out = append(out, Argument{Name: name, Default: p.Default, HasDefault: p.HasDefault})
		}
	}
	return out
}

// Plan adds the placeholder arguments of every operation to its root field.
// Existing arguments are never replaced. Argument types come from the
// operation's argTypeMap and default to String.
func Plan(s *schema.Schema, ops []config.Operation, src *config.Source) error {
	for _, op := range ops {
		md := op.Metadata()
		root := s.Types[md.RootTypeName]
		if root == nil {
			return errs.Configuration(op.Field, nil, "root type %s is missing", md.RootTypeName)
		}
		field := root.Field(jsonschema.FieldName(md.FieldName))
		if field == nil {
			return errs.Configuration(op.Field, nil, "field %s.%s is missing", md.RootTypeName, md.FieldName)
		}
		for _, arg := range Placeholders(op, src) {
			if field.Argument(arg.Name) != nil {
				continue
			}
			typ := schema.NamedType("String")
			if spec, ok := op.ArgTypeMap[arg.Name]; ok {
				var err error
				if typ, err = schema.ParseTypeRef(spec); err != nil {
					return errs.Configuration(op.Field, err, "argTypeMap[%s]", arg.Name)
				}
				if named := s.Types[typ.GetNamedType()]; named == nil || !isInputType(named) {
					return errs.Configuration(op.Field, nil, "argTypeMap[%s]: %s is not an input type", arg.Name, spec)
				}
			}
			iv := schema.NewInputValue(arg.Name, "", typ)
			if arg.HasDefault {
				def, err := defaultFor(s, typ, arg.Default)
				if err != nil {
					return errs.Configuration(op.Field, err, "default of %s", arg.Name)
				}
				iv.SetDefault(def)
			}
			field.AddArgument(iv)
		}
	}
	return nil
}

func isInputType(t *schema.Type) bool {
	switch t.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum, schema.TypeKindInputObject:
		return true
	}
	return false
}

// defaultFor converts a placeholder default to the argument type. Defaults
// for list and input object arguments are not representable as text and are
// rejected.
func defaultFor(s *schema.Schema, typ *schema.TypeRef, text string) (any, error) {
	if schema.Nullable(typ).IsList() {
		return nil, fmt.Errorf("list arguments cannot take a placeholder default")
	}
	named := s.Types[typ.GetNamedType()]
	switch {
	case named == nil:
		return text, nil
	case named.Kind == schema.TypeKindEnum:
		if named.EnumValue(text) == nil {
			return nil, fmt.Errorf("%q is not a value of %s", text, named.Name)
		}
		return text, nil
	case named.Kind == schema.TypeKindInputObject:
		return nil, fmt.Errorf("input object arguments cannot take a placeholder default")
	}
	switch named.Name {
	case "Int":
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%q is not an Int", text)
		}
		return int(n), nil
	case "Float":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a Float", text)
		}
		return f, nil
	case "Boolean":
		switch text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a Boolean", text)
	}
	return text, nil
}

func sortedValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
