package tools

import "github.com/netmedic/netmedic/pkg/models"

// ParametersSchema builds the JSON-schema object the LLM providers expect
// for a tool's parameters: {type: "object", properties: {...}, required: [...]}.
func ParametersSchema(def models.ToolDefinition) map[string]any {
	properties := make(map[string]any, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		prop := map[string]any{
			"type":        string(param.Type),
			"description": param.Description,
		}
		if len(param.EnumValues) > 0 {
			prop["enum"] = param.EnumValues
		}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		properties[param.Name] = prop
		if param.Required {
			required = append(required, param.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
