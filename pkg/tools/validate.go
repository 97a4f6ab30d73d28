package tools

import (
	"fmt"
	"math"
	"strconv"

	"github.com/netmedic/netmedic/pkg/models"
)

// normalizeArgs validates arguments against the definition and returns a
// fresh map with defaults applied and unambiguous coercions performed.
// Unknown arguments pass through untouched; models invent fields and the
// handlers ignore them.
func normalizeArgs(def models.ToolDefinition, args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	for _, param := range def.Parameters {
		v, present := out[param.Name]
		if !present {
			if param.Required {
				return nil, fmt.Errorf("missing required parameter %q", param.Name)
			}
			if param.Default != nil {
				out[param.Name] = param.Default
			}
			continue
		}

		coerced, err := coerceValue(param, v)
		if err != nil {
			return nil, err
		}
		out[param.Name] = coerced
	}

	return out, nil
}

func coerceValue(param models.ToolParameter, v any) (any, error) {
	switch param.Type {
	case models.ParamString:
		switch val := v.(type) {
		case string:
			return checkEnum(param, val)
		case bool, int, int64, float64:
			return checkEnum(param, fmt.Sprintf("%v", val))
		}
	case models.ParamInteger:
		switch val := v.(type) {
		case int:
			return val, nil
		case int64:
			return int(val), nil
		case float64:
			// JSON numbers arrive as float64; accept only whole values.
			if val == math.Trunc(val) {
				return int(val), nil
			}
		case string:
			if n, err := strconv.Atoi(val); err == nil {
				return n, nil
			}
		}
	case models.ParamNumber:
		switch val := v.(type) {
		case float64:
			return val, nil
		case int:
			return float64(val), nil
		case int64:
			return float64(val), nil
		case string:
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f, nil
			}
		}
	case models.ParamBoolean:
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			if val == "true" {
				return true, nil
			}
			if val == "false" {
				return false, nil
			}
		}
	case models.ParamArray:
		if _, ok := v.([]any); ok {
			return v, nil
		}
	case models.ParamObject:
		if _, ok := v.(map[string]any); ok {
			return v, nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("parameter %q must be a %s, got %T", param.Name, param.Type, v)
}

func checkEnum(param models.ToolParameter, val string) (any, error) {
	if len(param.EnumValues) == 0 {
		return val, nil
	}
	for _, allowed := range param.EnumValues {
		if val == allowed {
			return val, nil
		}
	}
	return nil, fmt.Errorf("parameter %q must be one of %v", param.Name, param.EnumValues)
}
