package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	language "github.com/hanpama/restgraph/internal/language"
	schema "github.com/hanpama/restgraph/internal/schema"
)

// coerceVariableValues coerces request variables against the operation's
// variable definitions.
func coerceVariableValues(s *schema.Schema, operation *language.OperationDefinition, values map[string]any) (map[string]any, error) {
	coerced := make(map[string]any)
	for _, def := range operation.VariableDefinitions {
		name := def.Variable
		typ := schema.FromASTType(def.Type)
		val, ok := values[name]
		if !ok {
			val, ok = values["$"+name]
		}
		if !ok {
			switch {
			case def.DefaultValue != nil:
				val = valueFromAST(def.DefaultValue, nil)
			case typ.IsNonNull():
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, typ)
			default:
				continue
			}
		}
		cv, err := coerceInputValue(s, val, typ)
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s: %w", name, typ, err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues coerces field arguments, applying defaults. Failures
// are recorded as errors at path and reported through ok.
func (s *executionState) coerceArgumentValues(field *schema.Field, arguments language.ArgumentList, path Path) (coerced map[string]any, ok bool) {
	coerced = make(map[string]any)
	ok = true
	for _, def := range field.Arguments {
		arg := arguments.ForName(def.Name)
		var (
			val     any
			present bool
		)
		if arg != nil {
			present = true
			if arg.Value.Kind == language.Variable {
				val, present = s.variables[arg.Value.Raw]
			} else {
				val = valueFromAST(arg.Value, s.variables)
			}
		}
		if !present {
			switch {
			case def.DefaultValue != nil:
				coerced[def.Name] = def.DefaultValue
			case def.Type.IsNonNull():
				s.addError(fmt.Errorf("argument %q of required type %s was not provided", def.Name, def.Type), path)
				ok = false
			}
			continue
		}
		cv, err := coerceInputValue(s.schema, val, def.Type)
		if err != nil {
			s.addError(fmt.Errorf("argument %q: %w", def.Name, err), path)
			ok = false
			continue
		}
		coerced[def.Name] = cv
	}
	return coerced, ok
}

// valueFromAST converts a literal to a Go value, substituting variables.
func valueFromAST(value *language.Value, variables map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		return variables[value.Raw]
	case language.IntValue:
		if i, err := strconv.ParseInt(value.Raw, 10, 64); err == nil {
			if i >= math.MinInt32 && i <= math.MaxInt32 {
				return int(i)
			}
			return i
		}
		return json.Number(value.Raw)
	case language.FloatValue:
		f, _ := strconv.ParseFloat(value.Raw, 64)
		return f
	case language.StringValue, language.BlockValue, language.EnumValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = valueFromAST(c.Value, variables)
		}
		return out
	case language.ObjectValue:
		out := make(map[string]any, len(value.Children))
		for _, c := range value.Children {
			// Unset variables leave the field out rather than null.
			if c.Value.Kind == language.Variable {
				if _, ok := variables[c.Value.Raw]; !ok {
					continue
				}
			}
			out[c.Name] = valueFromAST(c.Value, variables)
		}
		return out
	}
	return nil
}

// coerceInputValue coerces value to typ following GraphQL input coercion.
func coerceInputValue(s *schema.Schema, value any, typ *schema.TypeRef) (any, error) {
	if typ.IsNonNull() {
		if value == nil {
			return nil, fmt.Errorf("expected non-null value of type %s", typ)
		}
		return coerceInputValue(s, value, typ.OfType)
	}
	if value == nil {
		return nil, nil
	}
	if typ.Kind == schema.TypeRefKindList {
		items, ok := value.([]any)
		if !ok {
			item, err := coerceInputValue(s, value, typ.OfType)
			if err != nil {
				return nil, err
			}
			return []any{item}, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := coerceInputValue(s, item, typ.OfType)
			if err != nil {
				return nil, fmt.Errorf("at index %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}

	name := typ.Named
	switch name {
	case "Int":
		return coerceInt(value)
	case "Float":
		return coerceFloat(value)
	case "String":
		if v, ok := value.(string); ok {
			return v, nil
		}
		return nil, fmt.Errorf("cannot use %v as String", value)
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("cannot use %v as Boolean", value)
	case "ID":
		return coerceID(value)
	}

	def := s.Types[name]
	if def == nil {
		return nil, fmt.Errorf("unknown input type %s", name)
	}
	switch def.Kind {
	case schema.TypeKindEnum:
		str, ok := value.(string)
		if !ok || def.EnumValue(str) == nil {
			return nil, fmt.Errorf("value %v is not a member of enum %s", value, name)
		}
		return str, nil
	case schema.TypeKindInputObject:
		return coerceInputObject(s, def, value)
	case schema.TypeKindScalar:
		if n, ok := value.(json.Number); ok {
			return numberValue(n), nil
		}
		return value, nil
	}
	return nil, fmt.Errorf("type %s is not an input type", name)
}

func coerceInputObject(s *schema.Schema, def *schema.Type, value any) (any, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object for %s, got %T", def.Name, value)
	}
	var unknown []string
	for key := range fields {
		if def.InputField(key) == nil {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown fields %s on %s", strings.Join(unknown, ", "), def.Name)
	}

	out := make(map[string]any, len(fields))
	for _, f := range def.InputFields {
		v, present := fields[f.Name]
		if !present {
			switch {
			case f.DefaultValue != nil:
				out[f.Name] = f.DefaultValue
			case f.Type.IsNonNull():
				return nil, fmt.Errorf("field %s.%s of required type %s was not provided", def.Name, f.Name, f.Type)
			}
			continue
		}
		cv, err := coerceInputValue(s, v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", def.Name, f.Name, err)
		}
		out[f.Name] = cv
	}

	if def.OneOf {
		if len(out) != 1 {
			return nil, fmt.Errorf("exactly one field must be specified for %s", def.Name)
		}
		for k, v := range out {
			if v == nil {
				return nil, fmt.Errorf("field %s.%s must be non-null", def.Name, k)
			}
		}
	}
	return out, nil
}

func coerceInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return v, nil
		}
	case int32:
		return int(v), nil
	case int64:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return coerceInt(i)
		}
		if f, err := v.Float64(); err == nil {
			return coerceInt(f)
		}
	}
	return nil, fmt.Errorf("cannot use %v as Int", value)
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("cannot use %v as Float", value)
}

func coerceID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return v.String(), nil
		}
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	}
	return nil, fmt.Errorf("cannot use %v as ID", value)
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
