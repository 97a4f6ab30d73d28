package llm

import (
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netmedic/netmedic/pkg/models"
)

func TestToChatMessages(t *testing.T) {
	history := []models.Message{
		models.NewSystemMessage("system prompt"),
		models.NewUserMessage("my wifi is broken"),
		models.NewAssistantMessage("checking", []models.ToolRequest{
			{CallID: "c1", Name: "check_adapter_status", Arguments: map[string]any{}},
			{CallID: "c2", Name: "get_ip_config", Arguments: map[string]any{"adapter": "wlan0"}},
		}),
		models.NewToolMessage(models.ToolResult{CallID: "c1", Name: "check_adapter_status", Content: "result one", Success: true}),
		models.NewToolMessage(models.ToolResult{CallID: "c2", Name: "get_ip_config", Content: "result two", Success: false}),
	}

	out := toChatMessages(history)

	require.Len(t, out, 5)
	assert.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	assert.Equal(t, "system prompt", out[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, out[1].Role)

	assistant := out[2]
	assert.Equal(t, openai.ChatMessageRoleAssistant, assistant.Role)
	assert.Equal(t, "checking", assistant.Content)
	require.Len(t, assistant.ToolCalls, 2)
	assert.Equal(t, "c1", assistant.ToolCalls[0].ID)
	assert.Equal(t, "{}", assistant.ToolCalls[0].Function.Arguments)
	assert.JSONEq(t, `{"adapter":"wlan0"}`, assistant.ToolCalls[1].Function.Arguments)

	assert.Equal(t, openai.ChatMessageRoleTool, out[3].Role)
	assert.Equal(t, "c1", out[3].ToolCallID)
	assert.Equal(t, "result one", out[3].Content)
	assert.Equal(t, "c2", out[4].ToolCallID)
}

func TestToChatTools(t *testing.T) {
	defs := []models.ToolDefinition{{
		Name:        "ping_gateway",
		Description: "Ping the default gateway.",
		Parameters: []models.ToolParameter{
			{Name: "count", Type: models.ParamInteger, Default: 4},
		},
	}}

	out := toChatTools(defs)

	require.Len(t, out, 1)
	assert.Equal(t, openai.ToolTypeFunction, out[0].Type)
	require.NotNil(t, out[0].Function)
	assert.Equal(t, "ping_gateway", out[0].Function.Name)
	schema, ok := out[0].Function.Parameters.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])

	assert.Nil(t, toChatTools(nil))
}

func TestEncodeOpenAIToolChoice(t *testing.T) {
	assert.Nil(t, encodeOpenAIToolChoice(ToolChoice{}))
	assert.Equal(t, "none", encodeOpenAIToolChoice(ToolChoice{Mode: ToolChoiceNone}))
	assert.Equal(t, "required", encodeOpenAIToolChoice(ToolChoice{Mode: ToolChoiceRequired}))

	forced := encodeOpenAIToolChoice(ChooseTool("ping_gateway"))
	choice, ok := forced.(openai.ToolChoice)
	require.True(t, ok)
	assert.Equal(t, openai.ToolTypeFunction, choice.Type)
	assert.Equal(t, "ping_gateway", choice.Function.Name)
}

func TestDecodeArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    map[string]any
		wantErr bool
	}{
		{name: "nil", raw: nil, want: map[string]any{}},
		{name: "object", raw: map[string]any{"host": "8.8.8.8"}, want: map[string]any{"host": "8.8.8.8"}},
		{name: "encoded string", raw: `{"count":4}`, want: map[string]any{"count": float64(4)}},
		{name: "raw message", raw: json.RawMessage(`{"ok":true}`), want: map[string]any{"ok": true}},
		{name: "empty string", raw: "", want: map[string]any{}},
		{name: "null literal", raw: "null", want: map[string]any{}},
		{name: "invalid json", raw: "{not json", wantErr: true},
		{name: "array instead of object", raw: `["a"]`, wantErr: true},
		{name: "unsupported type", raw: 42, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeArguments(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		raw          string
		hasToolCalls bool
		want         string
	}{
		{"tool_calls", true, FinishToolCalls},
		{"function_call", true, FinishToolCalls},
		{"length", false, FinishLength},
		{"max_tokens", false, FinishLength},
		{"stop", false, FinishStop},
		{"stop", true, FinishToolCalls},
		{"end_turn", false, FinishStop},
		{"", false, FinishStop},
		{"", true, FinishToolCalls},
		{"content_filter", false, "content_filter"},
	}
	for _, tt := range tests {
		got := normalizeFinishReason(tt.raw, tt.hasToolCalls)
		assert.Equal(t, tt.want, got, "raw=%q hasToolCalls=%v", tt.raw, tt.hasToolCalls)
	}
}

func TestFromChatResponse(t *testing.T) {
	t.Run("no choices", func(t *testing.T) {
		_, err := fromChatResponse("cloud", openai.ChatCompletionResponse{})
		require.Error(t, err)
		assert.True(t, IsProtocolError(err))
	})

	t.Run("tool calls with synthesized id", func(t *testing.T) {
		resp := openai.ChatCompletionResponse{
			Model: "gpt-4o",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant,
					ToolCalls: []openai.ToolCall{
						{
							ID:       "call-7",
							Type:     openai.ToolTypeFunction,
							Function: openai.FunctionCall{Name: "ping_gateway", Arguments: `{"count":4}`},
						},
						{
							Type:     openai.ToolTypeFunction,
							Function: openai.FunctionCall{Name: "get_ip_config", Arguments: ""},
						},
					},
				},
				FinishReason: openai.FinishReasonToolCalls,
			}},
			Usage: openai.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
		}

		got, err := fromChatResponse("cloud", resp)

		require.NoError(t, err)
		assert.Equal(t, FinishToolCalls, got.FinishReason)
		assert.Equal(t, "gpt-4o", got.Model)
		require.Len(t, got.Message.ToolRequests, 2)
		assert.Equal(t, "call-7", got.Message.ToolRequests[0].CallID)
		assert.Equal(t, map[string]any{"count": float64(4)}, got.Message.ToolRequests[0].Arguments)
		assert.NotEmpty(t, got.Message.ToolRequests[1].CallID, "missing wire IDs get synthesized")
		assert.Empty(t, got.Message.ToolRequests[1].Arguments)
		assert.Equal(t, Usage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120}, got.Usage)
	})

	t.Run("malformed arguments", func(t *testing.T) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant,
					ToolCalls: []openai.ToolCall{{
						ID:       "call-1",
						Type:     openai.ToolTypeFunction,
						Function: openai.FunctionCall{Name: "ping_gateway", Arguments: "{broken"},
					}},
				},
			}},
		}

		_, err := fromChatResponse("cloud", resp)

		require.Error(t, err)
		assert.True(t, IsProtocolError(err))
		assert.ErrorContains(t, err, "ping_gateway")
	})
}

func TestClassifyChatError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transport bool
	}{
		{name: "server error", err: &openai.APIError{HTTPStatusCode: 500}, transport: true},
		{name: "rate limited", err: &openai.APIError{HTTPStatusCode: 429}, transport: true},
		{name: "request timeout", err: &openai.APIError{HTTPStatusCode: 408}, transport: true},
		{name: "auth rejection", err: &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}, transport: false},
		{name: "bad request", err: &openai.APIError{HTTPStatusCode: 400}, transport: false},
		{name: "request error", err: &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, transport: true},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), transport: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyChatError("cloud", tt.err)
			assert.Equal(t, tt.transport, IsTransportError(got))
			if !tt.transport {
				assert.ErrorContains(t, got, "request rejected")
			}
		})
	}
}
