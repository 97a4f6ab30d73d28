package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "simple substitution with {{.VAR}}",
			input: "base_url: {{.OLLAMA_URL}}",
			env:   map[string]string{"OLLAMA_URL": "http://localhost:11434/v1"},
			want:  "base_url: http://localhost:11434/v1",
		},
		{
			name:  "literal ${VAR} is NOT expanded (no collision)",
			input: "note: ${TEMP}",
			env:   map[string]string{"TEMP": "/tmp"},
			want:  "note: ${TEMP}",
		},
		{
			name:  "literal $VAR is NOT expanded (no collision)",
			input: "prompt_hint: clean $RECYCLE.BIN last",
			env:   map[string]string{},
			want:  "prompt_hint: clean $RECYCLE.BIN last",
		},
		{
			name:  "multiple substitutions in one line",
			input: "addr: {{.HOST}}:{{.PORT}}",
			env: map[string]string{
				"HOST": "127.0.0.1",
				"PORT": "9090",
			},
			want: "addr: 127.0.0.1:9090",
		},
		{
			name:  "missing variable expands to empty",
			input: "api_key: {{.NOT_SET_ANYWHERE}}",
			env:   map[string]string{},
			want:  "api_key: ",
		},
		{
			name:  "no template syntax passes through",
			input: "listen_addr: \":8080\"",
			env:   map[string]string{},
			want:  "listen_addr: \":8080\"",
		},
		{
			name:  "malformed template passes through original",
			input: "value: {{.UNCLOSED",
			env:   map[string]string{},
			want:  "value: {{.UNCLOSED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExpandEnvYAMLRoundTrip(t *testing.T) {
	t.Setenv("NM_LISTEN", "0.0.0.0:8080")

	input := []byte("system:\n  listen_addr: \"{{.NM_LISTEN}}\"\n")
	expanded := ExpandEnv(input)

	var parsed NetmedicYAMLConfig
	err := yaml.Unmarshal(expanded, &parsed)
	assert.NoError(t, err)
	if assert.NotNil(t, parsed.System) {
		assert.Equal(t, "0.0.0.0:8080", parsed.System.ListenAddr)
	}
}
