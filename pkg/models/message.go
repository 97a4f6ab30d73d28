package models

import "time"

// Role identifies the kind of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a session's conversation.
// The Role field discriminates which of the optional fields are meaningful:
//
//   - system:    Content only. Exactly one per session, always at index 0.
//   - user:      Content and Timestamp.
//   - assistant: Content and/or ToolRequests (at least one populated).
//     Each request carries a call ID unique within the turn.
//   - tool:      CallID, ToolName, Content, Success. CallID must match a
//     request in the immediately preceding assistant message.
type Message struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content,omitempty"`
	ToolRequests []ToolRequest `json:"tool_requests,omitempty"` // assistant only
	CallID       string        `json:"call_id,omitempty"`       // tool only
	ToolName     string        `json:"tool_name,omitempty"`     // tool only
	Success      bool          `json:"success,omitempty"`       // tool only
	Timestamp    time.Time     `json:"timestamp,omitzero"`
}

// ToolRequest is an assistant's request to invoke a tool.
// CallID is unique within the issuing assistant turn and links the
// eventual tool result back to this request.
type ToolRequest struct {
	CallID    string         `json:"call_id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of dispatching a single ToolRequest.
// Content is the model-facing rendering of the probe outcome; Error
// carries the short machine-readable kind ("timeout", "permission", ...)
// when Success is false.
type ToolResult struct {
	CallID     string `json:"call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NewSystemMessage builds the index-0 system message for a session.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text, Timestamp: time.Now()}
}

// NewUserMessage builds a user message with the current timestamp.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text, Timestamp: time.Now()}
}

// NewAssistantMessage builds an assistant message. Either text or requests
// may be empty, but not both; the store rejects the empty-empty case.
func NewAssistantMessage(text string, requests []ToolRequest) Message {
	return Message{Role: RoleAssistant, Content: text, ToolRequests: requests, Timestamp: time.Now()}
}

// NewToolMessage builds a tool message from a dispatched result.
func NewToolMessage(result ToolResult) Message {
	return Message{
		Role:      RoleTool,
		Content:   result.Content,
		CallID:    result.CallID,
		ToolName:  result.Name,
		Success:   result.Success,
		Timestamp: time.Now(),
	}
}
