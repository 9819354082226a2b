package httprt

import "github.com/hanpama/restgraph/internal/schema"

// flattenInput turns a coerced GraphQL input value into the upstream shape:
// fields are renamed to their JSON keys, enum names become their original
// values, and @oneOf union wrappers are replaced by the chosen member's value.
func (r *Runtime) flattenInput(value any, typ *schema.TypeRef) any {
	if value == nil || typ == nil {
		return value
	}
	typ = schema.Nullable(typ)
	if typ.IsList() {
		items, ok := value.([]any)
		if !ok {
			return r.flattenInput(value, typ.OfType)
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = r.flattenInput(item, typ.OfType)
		}
		return out
	}
	t := r.schema.Types[typ.Named]
	if t == nil {
		return value
	}
	switch t.Kind {
	case schema.TypeKindEnum:
		name, ok := value.(string)
		if !ok {
			return value
		}
		if ev := t.EnumValue(name); ev != nil && ev.Value != nil {
			return ev.Value
		}
		return value
	case schema.TypeKindInputObject:
		if t.OneOf {
			return r.flattenUnion(value, t)
		}
		obj, ok := value.(map[string]any)
		if !ok {
			return value
		}
		out := make(map[string]any, len(obj))
		for k, v := range obj {
			f := t.InputField(k)
			if f == nil {
				out[k] = v
				continue
			}
			out[f.SourceKey()] = r.flattenInput(v, f.Type)
		}
		return out
	}
	return value
}

// flattenUnion unwraps a @oneOf union input. The executor has already
// checked that exactly one member key is set, so that member is the value.
func (r *Runtime) flattenUnion(value any, t *schema.Type) any {
	obj, ok := value.(map[string]any)
	if !ok {
		return value
	}
	for k, v := range obj {
		if f := t.InputField(k); f != nil && v != nil {
			r.log.Debug("union input member", "type", t.Name, "member", f.Type.GetNamedType())
			return r.flattenInput(v, f.Type)
		}
	}
	return value
}
