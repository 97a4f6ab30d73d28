package models

// ParameterType enumerates the JSON-schema types a tool parameter may take.
type ParameterType string

const (
	ParamString  ParameterType = "string"
	ParamInteger ParameterType = "integer"
	ParamNumber  ParameterType = "number"
	ParamBoolean ParameterType = "boolean"
	ParamArray   ParameterType = "array"
	ParamObject  ParameterType = "object"
)

// ToolParameter describes one argument a tool accepts.
type ToolParameter struct {
	Name        string        `json:"name"`
	Type        ParameterType `json:"type"`
	Description string        `json:"description"`
	Required    bool          `json:"required"`
	Default     any           `json:"default,omitempty"`
	EnumValues  []string      `json:"enum_values,omitempty"`
}

// ToolDefinition is the model-facing description of a registered tool.
// Description embeds decision-boundary clauses (CALL WHEN / DO NOT CALL IF /
// OUTPUT MEANING) so weaker models can judge applicability without
// trial calls.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}
