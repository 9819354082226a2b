package jsonschema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

// compositeName is the resource name the composite document is registered
// under, inside the loader's base directory.
const compositeName = "__composite.json"

// Dereference compiles raw and converts the compiled graph into Schema nodes.
// Relative $refs resolve against the loader's base directory. A reference
// that cannot be loaded or resolved fails the whole call.
func Dereference(ctx context.Context, raw Raw, loader *Loader) (*Document, error) {
	if loader == nil {
		loader = &Loader{}
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode composite schema: %w", err)
	}
	loc, err := loader.URL(compositeName)
	if err != nil {
		return nil, err
	}

	c := santhosh.NewCompiler()
	c.Draft = santhosh.Draft2020
	c.ExtractAnnotations = true
	c.LoadURL = loader.jsonLoader(ctx)
	if err := c.AddResource(loc, bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("register composite schema: %w", err)
	}
	compiled, err := c.Compile(loc)
	if err != nil {
		return nil, err
	}

	conv := converter{memo: map[*santhosh.Schema]*Schema{}}
	return &Document{Root: conv.convert(compiled)}, nil
}

type converter struct {
	memo map[*santhosh.Schema]*Schema
}

func (c *converter) convert(in *santhosh.Schema) *Schema {
	if in == nil {
		return nil
	}
	if refOnly(in) {
		return c.convert(in.Ref)
	}
	if s, ok := c.memo[in]; ok {
		return s
	}
	s := &Schema{
		Location:    in.Location,
		Title:       in.Title,
		Description: in.Description,
		Format:      in.Format,
		Default:     normalizeValue(in.Default),
		Deprecated:  in.Deprecated,
		Types:       append([]string(nil), in.Types...),
		Required:    append([]string(nil), in.Required...),
	}
	c.memo[in] = s

	if in.Always != nil && !*in.Always {
		s.Types = []string{"null"}
	}

	names := make([]string, 0, len(in.Properties))
	for name := range in.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.Properties = append(s.Properties, &Property{Name: name, Schema: c.convert(in.Properties[name])})
	}
	switch ap := in.AdditionalProperties.(type) {
	case bool:
		s.Closed = !ap
	case *santhosh.Schema:
		s.AdditionalProperties = c.convert(ap)
	}

	switch {
	case in.Items2020 != nil:
		s.Items = c.convert(in.Items2020)
	case in.Items != nil:
		switch it := in.Items.(type) {
		case *santhosh.Schema:
			s.Items = c.convert(it)
		case []*santhosh.Schema:
			if len(it) > 0 {
				s.Items = c.convert(it[0])
			}
		}
	case len(in.PrefixItems) > 0:
		s.Items = c.convert(in.PrefixItems[0])
	}

	for _, v := range in.Enum {
		s.Enum = append(s.Enum, normalizeValue(v))
	}
	if len(in.Constant) > 0 {
		s.Const, s.HasConst = normalizeValue(in.Constant[0]), true
	}
	s.AllOf = c.convertAll(in.AllOf)
	s.AnyOf = c.convertAll(in.AnyOf)
	s.OneOf = c.convertAll(in.OneOf)

	// $ref next to other keywords behaves like an extra allOf member.
	if in.Ref != nil {
		s.AllOf = append([]*Schema{c.convert(in.Ref)}, s.AllOf...)
	}
	return s
}

func (c *converter) convertAll(in []*santhosh.Schema) []*Schema {
	if len(in) == 0 {
		return nil
	}
	out := make([]*Schema, len(in))
	for i, s := range in {
		out[i] = c.convert(s)
	}
	return out
}

func refOnly(s *santhosh.Schema) bool {
	return s.Ref != nil &&
		len(s.Types) == 0 &&
		len(s.Properties) == 0 &&
		s.AdditionalProperties == nil &&
		s.Items == nil && s.Items2020 == nil && len(s.PrefixItems) == 0 &&
		len(s.Enum) == 0 && len(s.Constant) == 0 &&
		len(s.AllOf) == 0 && len(s.AnyOf) == 0 && len(s.OneOf) == 0 &&
		s.Title == "" && s.Description == ""
}

// normalizeValue turns json.Number into int64 or float64.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
