package introspection

import (
	"fmt"

	schema "github.com/hanpama/restgraph/internal/schema"
)

// extendSchema returns a copy of original with the __ types and the
// __schema and __type root fields. original itself is left untouched so it
// can still be rendered as SDL.
func extendSchema(original *schema.Schema) (*schema.Schema, error) {
	extended := &schema.Schema{
		QueryType:        original.QueryType,
		MutationType:     original.MutationType,
		SubscriptionType: original.SubscriptionType,
		Types:            make(map[string]*schema.Type, len(original.Types)+8),
		Directives:       original.Directives,
		Description:      original.Description,
	}
	for name, typ := range original.Types {
		extended.Types[name] = typ
	}

	types, err := schema.IntrospectionTypes()
	if err != nil {
		return nil, err
	}
	for _, typ := range types {
		extended.Types[typ.Name] = typ
	}

	query := original.GetQueryType()
	if query == nil {
		return nil, fmt.Errorf("schema has no query type")
	}
	root := *query
	root.Fields = append(append([]*schema.Field(nil), query.Fields...),
		schema.NewField("__schema", "Access the current type schema of this server.", schema.NonNullType(schema.NamedType("__Schema"))),
		schema.NewField("__type", "Request the type information of a single type.", schema.NamedType("__Type")).
			AddArgument(schema.NewInputValue("name", "", schema.NonNullType(schema.NamedType("String")))),
	)
	extended.Types[root.Name] = &root
	return extended, nil
}
