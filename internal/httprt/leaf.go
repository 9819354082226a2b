package httprt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/hanpama/restgraph/internal/interpolate"
	"github.com/hanpama/restgraph/internal/schema"
)

// SerializeLeafValue converts upstream JSON values to the field's scalar or
// enum type. Custom scalars pass through unchanged.
func (r *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch typeName {
	case "Int":
		return serializeInt(value)
	case "Float":
		return serializeFloat(value)
	case "String", "ID":
		return serializeString(value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %v", value)
	}
	t := r.schema.Types[typeName]
	if t != nil && t.Kind == schema.TypeKindEnum {
		return serializeEnum(t, value)
	}
	return value, nil
}

func serializeInt(value any) (any, error) {
	var f float64
	switch v := value.(type) {
	case int:
		f = float64(v)
	case int32:
		return int(v), nil
	case int64:
		f = float64(v)
	case float64:
		f = v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			f = float64(n)
		} else if n, err := v.Float64(); err == nil {
			f = n
		} else {
			return nil, fmt.Errorf("Int cannot represent %q", v)
		}
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("Int cannot represent %q", v)
		}
		f = n
	default:
		return nil, fmt.Errorf("Int cannot represent %v", value)
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil, fmt.Errorf("Int cannot represent %v", value)
	}
	return int(f), nil
}

func serializeFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("Float cannot represent %q", v)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("Float cannot represent %q", v)
		}
		return f, nil
	}
	return nil, fmt.Errorf("Float cannot represent %v", value)
}

func serializeString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case map[string]any, []any:
		return nil, fmt.Errorf("String cannot represent a %T", value)
	}
	return interpolate.Format(value), nil
}

// serializeEnum maps an upstream value to the enum value name declared for
// it. Values are compared as strings, numbers or booleans, never across
// those classes.
func serializeEnum(t *schema.Type, value any) (any, error) {
	want, ok := enumKey(value)
	if ok {
		for _, ev := range t.EnumValues {
			raw := ev.Value
			if raw == nil {
				raw = ev.Name
			}
			if got, ok := enumKey(raw); ok && got == want {
				return ev.Name, nil
			}
		}
	}
	return nil, fmt.Errorf("%s cannot represent %v", t.Name, value)
}

func enumKey(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return "s:" + x, true
	case bool:
		return "b:" + strconv.FormatBool(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return "", false
		}
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64), true
	case int:
		return "n:" + strconv.FormatFloat(float64(x), 'g', -1, 64), true
	case int64:
		return "n:" + strconv.FormatFloat(float64(x), 'g', -1, 64), true
	case float64:
		return "n:" + strconv.FormatFloat(x, 'g', -1, 64), true
	}
	return "", false
}
