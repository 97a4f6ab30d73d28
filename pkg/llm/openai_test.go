package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netmedic/netmedic/pkg/models"
)

func newChatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func chatRequest() Request {
	return Request{
		SessionID: "sess-1",
		Messages: []models.Message{
			models.NewSystemMessage("You are a network diagnostic assistant."),
			models.NewUserMessage("my wifi is broken"),
		},
	}
}

func TestOpenAIProvider_ChatRequestShape(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		body    struct {
			Model       string           `json:"model"`
			Temperature float64          `json:"temperature"`
			MaxTokens   int              `json:"max_tokens"`
			Messages    []map[string]any `json:"messages"`
			Tools       []struct {
				Type     string `json:"type"`
				Function struct {
					Name string `json:"name"`
				} `json:"function"`
			} `json:"tools"`
			ToolChoice any `json:"tool_choice"`
		}
	)
	srv := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "All good."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
		}`))
	})
	p := NewOpenAIProvider("cloud", "gpt-4o", "test-key", srv.URL+"/v1")

	req := chatRequest()
	req.Temperature = 0.2
	req.MaxTokens = 512
	req.Tools = []models.ToolDefinition{{Name: "ping_gateway", Description: "Ping the default gateway."}}
	req.ToolChoice = ToolChoice{Mode: ToolChoiceRequired}

	resp, err := p.Chat(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o", body.Model)
	assert.InDelta(t, 0.2, body.Temperature, 1e-6)
	assert.Equal(t, 512, body.MaxTokens)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0]["role"])
	assert.Equal(t, "user", body.Messages[1]["role"])
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "function", body.Tools[0].Type)
	assert.Equal(t, "ping_gateway", body.Tools[0].Function.Name)
	assert.Equal(t, "required", body.ToolChoice)

	assert.Equal(t, "All good.", resp.Message.Content)
	assert.Equal(t, FinishStop, resp.FinishReason)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, Usage{InputTokens: 42, OutputTokens: 7, TotalTokens: 49}, resp.Usage)
}

func TestOpenAIProvider_ChatToolCallResponse(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-2", "object": "chat.completion", "model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "test_dns_resolution", "arguments": "{\"hostname\":\"example.com\"}"}}
			]}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 12, "total_tokens": 42}
		}`))
	})
	p := NewOpenAIProvider("cloud", "gpt-4o", "test-key", srv.URL+"/v1")

	resp, err := p.Chat(context.Background(), chatRequest())

	require.NoError(t, err)
	assert.Equal(t, FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.Message.ToolRequests, 1)
	call := resp.Message.ToolRequests[0]
	assert.Equal(t, "call_1", call.CallID)
	assert.Equal(t, "test_dns_resolution", call.Name)
	assert.Equal(t, map[string]any{"hostname": "example.com"}, call.Arguments)
}

func TestOpenAIProvider_ServerErrorIsTransport(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	})
	p := NewOpenAIProvider("cloud", "gpt-4o", "test-key", srv.URL+"/v1")

	_, err := p.Chat(context.Background(), chatRequest())

	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestOpenAIProvider_AuthErrorIsRejection(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`))
	})
	p := NewOpenAIProvider("cloud", "gpt-4o", "test-key", srv.URL+"/v1")

	_, err := p.Chat(context.Background(), chatRequest())

	require.Error(t, err)
	assert.False(t, IsTransportError(err))
	assert.ErrorContains(t, err, "request rejected")
}

func TestOpenAIProvider_Availability(t *testing.T) {
	withKey := NewOpenAIProvider("cloud", "gpt-4o", "test-key", "")
	assert.True(t, withKey.Available(context.Background()))
	assert.True(t, withKey.SupportsToolChoice())

	withoutKey := NewOpenAIProvider("cloud", "gpt-4o", "", "")
	assert.False(t, withoutKey.Available(context.Background()))

	_, err := withoutKey.Chat(context.Background(), chatRequest())
	assert.True(t, IsTransportError(err))
}
