package tools

import (
	"testing"

	"github.com/netmedic/netmedic/pkg/models"
)

func TestNormalizeArgs(t *testing.T) {
	def := models.ToolDefinition{
		Name: "t",
		Parameters: []models.ToolParameter{
			{Name: "host", Type: models.ParamString, Required: true},
			{Name: "count", Type: models.ParamInteger},
			{Name: "force", Type: models.ParamBoolean},
			{Name: "mode", Type: models.ParamString, EnumValues: []string{"fast", "slow"}},
			{Name: "limit", Type: models.ParamInteger, Default: 10},
		},
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
		check   func(t *testing.T, out map[string]any)
	}{
		{
			name:    "missing required",
			args:    map[string]any{},
			wantErr: true,
		},
		{
			name: "default applied",
			args: map[string]any{"host": "a"},
			check: func(t *testing.T, out map[string]any) {
				if out["limit"] != 10 {
					t.Errorf("limit = %v, want 10", out["limit"])
				}
			},
		},
		{
			name: "string to integer coercion",
			args: map[string]any{"host": "a", "count": "4"},
			check: func(t *testing.T, out map[string]any) {
				if out["count"] != 4 {
					t.Errorf("count = %v (%T), want 4", out["count"], out["count"])
				}
			},
		},
		{
			name: "json float to integer",
			args: map[string]any{"host": "a", "count": float64(4)},
			check: func(t *testing.T, out map[string]any) {
				if out["count"] != 4 {
					t.Errorf("count = %v (%T), want 4", out["count"], out["count"])
				}
			},
		},
		{
			name:    "fractional float rejected for integer",
			args:    map[string]any{"host": "a", "count": 4.5},
			wantErr: true,
		},
		{
			name: "string to bool coercion",
			args: map[string]any{"host": "a", "force": "true"},
			check: func(t *testing.T, out map[string]any) {
				if out["force"] != true {
					t.Errorf("force = %v, want true", out["force"])
				}
			},
		},
		{
			name:    "non-literal bool rejected",
			args:    map[string]any{"host": "a", "force": "yes"},
			wantErr: true,
		},
		{
			name:    "enum violation",
			args:    map[string]any{"host": "a", "mode": "medium"},
			wantErr: true,
		},
		{
			name: "enum accepted",
			args: map[string]any{"host": "a", "mode": "fast"},
			check: func(t *testing.T, out map[string]any) {
				if out["mode"] != "fast" {
					t.Errorf("mode = %v", out["mode"])
				}
			},
		},
		{
			name: "unknown parameters pass through",
			args: map[string]any{"host": "a", "invented": "by the model"},
			check: func(t *testing.T, out map[string]any) {
				if out["invented"] != "by the model" {
					t.Errorf("invented = %v", out["invented"])
				}
			},
		},
		{
			name: "number to string coercion",
			args: map[string]any{"host": float64(8080)},
			check: func(t *testing.T, out map[string]any) {
				if out["host"] != "8080" {
					t.Errorf("host = %v (%T)", out["host"], out["host"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := normalizeArgs(def, tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}

	t.Run("caller map is not mutated", func(t *testing.T) {
		args := map[string]any{"host": "a"}
		_, err := normalizeArgs(def, args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := args["limit"]; ok {
			t.Errorf("default leaked into the caller's map")
		}
	})
}

func TestParametersSchema(t *testing.T) {
	def := models.ToolDefinition{
		Name: "ping_gateway",
		Parameters: []models.ToolParameter{
			{Name: "gateway", Type: models.ParamString, Description: "Gateway address.", Required: true},
			{Name: "count", Type: models.ParamInteger, Description: "Echo requests.", Default: 4},
			{Name: "mode", Type: models.ParamString, EnumValues: []string{"fast", "slow"}},
		},
	}

	schema := ParametersSchema(def)
	if schema["type"] != "object" {
		t.Errorf("type = %v", schema["type"])
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties missing")
	}
	gw, ok := props["gateway"].(map[string]any)
	if !ok || gw["type"] != "string" {
		t.Errorf("gateway property = %v", props["gateway"])
	}
	count := props["count"].(map[string]any)
	if count["default"] != 4 {
		t.Errorf("count default = %v", count["default"])
	}
	mode := props["mode"].(map[string]any)
	if enum, ok := mode["enum"].([]string); !ok || len(enum) != 2 {
		t.Errorf("mode enum = %v", mode["enum"])
	}

	required, ok := schema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "gateway" {
		t.Errorf("required = %v", schema["required"])
	}
}
