package api

import (
	"github.com/netmedic/netmedic/pkg/history"
	"github.com/netmedic/netmedic/pkg/models"
)

// CancelResponse is returned by POST /api/v1/sessions/:id/cancel.
type CancelResponse struct {
	SessionID string `json:"session_id"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// ToolsResponse is returned by GET /api/v1/tools.
type ToolsResponse struct {
	Tools []models.ToolDefinition `json:"tools"`
}

// HealthCheck is the status of a single component check.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ConfigurationStats contains counts of loaded configuration items.
type ConfigurationStats struct {
	LLMProviders int `json:"llm_providers"`
	Tools        int `json:"tools"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	Checks        map[string]HealthCheck `json:"checks"`
	Configuration ConfigurationStats     `json:"configuration"`
	ActiveTurns   int                    `json:"active_turns"`
	Connections   int                    `json:"connections"`
}

// HistorySessionsResponse is returned by GET /api/v1/history/sessions.
type HistorySessionsResponse struct {
	Sessions []history.SessionRecord `json:"sessions"`
}

// HistoryMessagesResponse is returned by GET /api/v1/history/sessions/:id/messages.
type HistoryMessagesResponse struct {
	SessionID string                  `json:"session_id"`
	Messages  []history.MessageRecord `json:"messages"`
}

// HistoryToolCallsResponse is returned by GET /api/v1/history/sessions/:id/tool-calls.
type HistoryToolCallsResponse struct {
	SessionID string                   `json:"session_id"`
	ToolCalls []history.ToolCallRecord `json:"tool_calls"`
}

// HistoryLlmCallsResponse is returned by GET /api/v1/history/sessions/:id/llm-calls.
type HistoryLlmCallsResponse struct {
	SessionID string                  `json:"session_id"`
	LlmCalls  []history.LlmCallRecord `json:"llm_calls"`
}
