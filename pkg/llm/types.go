// Package llm presents a uniform chat interface over heterogeneous model
// providers (cloud and local). Provider selection, fallback, tool-choice
// enforcement, and protocol conversion all live here; callers never see
// provider-specific JSON.
package llm

import (
	"context"
	"time"

	"github.com/netmedic/netmedic/pkg/models"
)

// ToolChoice mode constants.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
	ToolChoiceNamed    = "named"
)

// ToolChoice controls whether and how the model uses tools. The zero value
// means auto.
type ToolChoice struct {
	Mode     string `json:"mode"`
	ToolName string `json:"tool_name,omitempty"` // set when mode is "named"
}

// ChooseTool returns a ToolChoice forcing a call to the named tool.
func ChooseTool(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceNamed, ToolName: name}
}

// Request is the provider-independent chat input.
type Request struct {
	// SessionID identifies the conversation for the call observer; it is
	// never sent to providers.
	SessionID   string
	Messages    []models.Message
	Tools       []models.ToolDefinition
	Temperature float32
	ToolChoice  ToolChoice
	MaxTokens   int
}

// FinishReason values, unified across providers.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// Usage tracks token consumption for a single call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the provider-independent chat output. Message always has the
// assistant role; tool-call arguments are decoded into maps before the
// response leaves this package.
type Response struct {
	Message      models.Message `json:"message"`
	FinishReason string         `json:"finish_reason"`
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
	Usage        Usage          `json:"usage"`
}

// Provider is one configured model backend.
type Provider interface {
	// Name returns the configured provider name, unique per entry.
	Name() string

	// Available reports whether the provider can serve a request right
	// now. For cloud providers this is a configuration check; for local
	// servers it probes reachability.
	Available(ctx context.Context) bool

	// SupportsToolChoice reports whether the backend honors a tool_choice
	// directive natively. When false the adapter rewrites the request
	// with an in-message instruction instead.
	SupportsToolChoice() bool

	// Chat executes one chat completion.
	Chat(ctx context.Context, req Request) (*Response, error)
}

// CallObserver is invoked after every provider attempt, successful or not,
// so a persistence collaborator can record cost and latency.
type CallObserver func(sessionID, provider, model string, duration time.Duration, tokensIn, tokensOut int)
