// Package introspection serves the GraphQL __schema and __type fields by
// wrapping another executor.Runtime.
package introspection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	executor "github.com/hanpama/restgraph/internal/executor"
	schema "github.com/hanpama/restgraph/internal/schema"
)

// Wrapped is an executable pair: the runtime answers introspection fields
// and delegates everything else; Schema is the original schema extended
// with the introspection types.
type Wrapped struct {
	Runtime executor.SubscriptionRuntime
	Schema  *schema.Schema
}

func Wrap(base executor.Runtime, sch *schema.Schema) (*Wrapped, error) {
	extended, err := extendSchema(sch)
	if err != nil {
		return nil, fmt.Errorf("introspection: %w", err)
	}
	return &Wrapped{
		Runtime: &runtime{base: base, schema: extended},
		Schema:  extended,
	}, nil
}

type runtime struct {
	base executor.Runtime
	schema *schema.Schema
}

func isIntrospectionType(name string) bool {
	return strings.HasPrefix(name, "__")
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			if t, ok := r.schema.Types[name]; ok {
				return t, nil
			}
			return nil, nil
		}
	}
	if !isIntrospectionType(objectType) {
		return r.base.ResolveSync(ctx, objectType, field, source, args)
	}

	switch src := source.(type) {
	case *schema.Schema:
		return r.schemaField(src, field), nil
	case *schema.Type:
		return r.typeField(src, field, args), nil
	case *schema.TypeRef:
		return r.wrapperField(src, field), nil
	case *schema.Field:
		return r.fieldField(src, field, args), nil
	case *schema.InputValue:
		return r.inputValueField(src, field), nil
	case *schema.EnumValue:
		return enumValueField(src, field), nil
	case *schema.Directive:
		return r.directiveField(src, field, args), nil
	}
	return nil, fmt.Errorf("introspection: unexpected source %T for %s.%s", source, objectType, field)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if isIntrospectionType(typ) {
		return value, nil
	}
	switch value.(type) {
	case bool, string:
		if typ == "Boolean" || typ == "String" {
			return value, nil
		}
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

func (r *runtime) Subscribe(ctx context.Context, objectType, field string, args map[string]any) (<-chan any, error) {
	sub, ok := r.base.(executor.SubscriptionRuntime)
	if !ok {
		return nil, fmt.Errorf("runtime does not support subscriptions")
	}
	return sub.Subscribe(ctx, objectType, field, args)
}

func (r *runtime) ResolveEvent(ctx context.Context, objectType, field string, event any, args map[string]any) (any, error) {
	sub, ok := r.base.(executor.SubscriptionRuntime)
	if !ok {
		return nil, fmt.Errorf("runtime does not support subscriptions")
	}
	return sub.ResolveEvent(ctx, objectType, field, event, args)
}

func (r *runtime) schemaField(s *schema.Schema, field string) any {
	switch field {
	case "description":
		return optional(s.Description)
	case "types":
		out := make([]any, 0, len(s.Types))
		for _, name := range s.TypeNames() {
			out = append(out, s.Types[name])
		}
		return out
	case "queryType":
		return typeOrNil(s.GetQueryType())
	case "mutationType":
		return typeOrNil(s.GetMutationType())
	case "subscriptionType":
		return typeOrNil(s.GetSubscriptionType())
	case "directives":
		names := make([]string, 0, len(s.Directives))
		for name := range s.Directives {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]any, len(names))
		for i, name := range names {
			out[i] = s.Directives[name]
		}
		return out
	}
	return nil
}

func (r *runtime) typeField(t *schema.Type, field string, args map[string]any) any {
	includeDeprecated, _ := args["includeDeprecated"].(bool)
	switch field {
	case "kind":
		return string(t.Kind)
	case "name":
		return t.Name
	case "description":
		return optional(t.Description)
	case "specifiedByURL":
		if t.SpecifiedByURL == nil {
			return nil
		}
		return *t.SpecifiedByURL
	case "isOneOf":
		return t.OneOf
	case "fields":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil
		}
		out := []any{}
		for _, f := range t.Fields {
			if strings.HasPrefix(f.Name, "__") || f.IsDeprecated && !includeDeprecated {
				continue
			}
			out = append(out, f)
		}
		return out
	case "interfaces":
		if t.Kind != schema.TypeKindObject && t.Kind != schema.TypeKindInterface {
			return nil
		}
		return r.named(t.Interfaces)
	case "possibleTypes":
		if t.Kind != schema.TypeKindInterface && t.Kind != schema.TypeKindUnion {
			return nil
		}
		return r.named(t.PossibleTypes)
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil
		}
		out := []any{}
		for _, v := range t.EnumValues {
			if !v.IsDeprecated || includeDeprecated {
				out = append(out, v)
			}
		}
		return out
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil
		}
		return inputValues(t.InputFields, includeDeprecated)
	case "ofType":
		return nil
	}
	return nil
}

// wrapperField serves __Type fields of List and Non-Null wrappers. Named
// references are replaced by their definitions before they get here.
func (r *runtime) wrapperField(t *schema.TypeRef, field string) any {
	switch field {
	case "kind":
		if t.Kind == schema.TypeRefKindNonNull {
			return "NON_NULL"
		}
		return "LIST"
	case "ofType":
		return r.typeRef(t.OfType)
	case "fields", "interfaces", "possibleTypes", "enumValues", "inputFields":
		return nil
	}
	return nil
}

func (r *runtime) typeRef(t *schema.TypeRef) any {
	if t == nil {
		return nil
	}
	if t.Kind == schema.TypeRefKindNamed {
		return typeOrNil(r.schema.Types[t.Named])
	}
	return t
}

func (r *runtime) fieldField(f *schema.Field, field string, args map[string]any) any {
	switch field {
	case "name":
		return f.Name
	case "description":
		return optional(f.Description)
	case "args":
		includeDeprecated, _ := args["includeDeprecated"].(bool)
		return inputValues(f.Arguments, includeDeprecated)
	case "type":
		return r.typeRef(f.Type)
	case "isDeprecated":
		return f.IsDeprecated
	case "deprecationReason":
		if !f.IsDeprecated {
			return nil
		}
		return f.DeprecationReason
	}
	return nil
}

func (r *runtime) inputValueField(v *schema.InputValue, field string) any {
	switch field {
	case "name":
		return v.Name
	case "description":
		return optional(v.Description)
	case "type":
		return r.typeRef(v.Type)
	case "defaultValue":
		if v.DefaultValue == nil {
			return nil
		}
		return schema.FormatValue(r.schema, v.DefaultValue, v.Type)
	case "isDeprecated":
		return v.IsDeprecated
	case "deprecationReason":
		if !v.IsDeprecated {
			return nil
		}
		return v.DeprecationReason
	}
	return nil
}

func enumValueField(v *schema.EnumValue, field string) any {
	switch field {
	case "name":
		return v.Name
	case "description":
		return optional(v.Description)
	case "isDeprecated":
		return v.IsDeprecated
	case "deprecationReason":
		if !v.IsDeprecated {
			return nil
		}
		return v.DeprecationReason
	}
	return nil
}

func (r *runtime) directiveField(d *schema.Directive, field string, args map[string]any) any {
	switch field {
	case "name":
		return d.Name
	case "description":
		return optional(d.Description)
	case "isRepeatable":
		return d.IsRepeatable
	case "locations":
		out := make([]any, len(d.Locations))
		for i, l := range d.Locations {
			out[i] = l
		}
		return out
	case "args":
		includeDeprecated, _ := args["includeDeprecated"].(bool)
		return inputValues(d.Arguments, includeDeprecated)
	}
	return nil
}

func (r *runtime) named(names []string) []any {
	out := []any{}
	for _, name := range names {
		if t := r.schema.Types[name]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

func inputValues(values []*schema.InputValue, includeDeprecated bool) []any {
	out := []any{}
	for _, v := range values {
		if !v.IsDeprecated || includeDeprecated {
			out = append(out, v)
		}
	}
	return out
}

// typeOrNil keeps a nil *schema.Type from reaching the executor as a
// non-nil interface.
func typeOrNil(t *schema.Type) any {
	if t == nil {
		return nil
	}
	return t
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
