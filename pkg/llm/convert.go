package llm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/netmedic/netmedic/pkg/models"
	"github.com/netmedic/netmedic/pkg/tools"
)

// toChatMessages converts the conversation into chat-completion form. Tool
// messages map one-to-one; each carries the call ID that links it back to
// the assistant's request.
func toChatMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})
		case models.RoleUser:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		case models.RoleAssistant:
			m := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, req := range msg.ToolRequests {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   req.CallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      req.Name,
						Arguments: encodeArguments(req.Arguments),
					},
				})
			}
			out = append(out, m)
		case models.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.CallID,
			})
		}
	}
	return out
}

// toChatTools converts tool definitions into function declarations.
func toChatTools(defs []models.ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  tools.ParametersSchema(def),
			},
		})
	}
	return out
}

// encodeOpenAIToolChoice maps the unified tool choice onto the wire
// directive. Auto returns nil so the field is omitted.
func encodeOpenAIToolChoice(choice ToolChoice) any {
	switch choice.Mode {
	case ToolChoiceNone:
		return "none"
	case ToolChoiceRequired:
		return "required"
	case ToolChoiceNamed:
		return openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: choice.ToolName},
		}
	default:
		return nil
	}
}

// fromChatResponse normalizes a chat-completion response. Tool-call IDs
// missing from the wire are synthesized so request/result pairing stays
// intact.
func fromChatResponse(provider string, resp openai.ChatCompletionResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, &ProtocolError{Provider: provider, Reason: "response contains no choices"}
	}
	choice := resp.Choices[0]

	msg := models.Message{Role: models.RoleAssistant, Content: choice.Message.Content}
	for _, call := range choice.Message.ToolCalls {
		args, err := decodeArguments(call.Function.Arguments)
		if err != nil {
			return nil, &ProtocolError{
				Provider: provider,
				Reason:   fmt.Sprintf("malformed arguments for tool %s: %v", call.Function.Name, err),
			}
		}
		id := call.ID
		if id == "" {
			id = uuid.New().String()
		}
		msg.ToolRequests = append(msg.ToolRequests, models.ToolRequest{
			CallID:    id,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	return &Response{
		Message:      msg,
		FinishReason: normalizeFinishReason(string(choice.FinishReason), len(msg.ToolRequests) > 0),
		Model:        resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func normalizeFinishReason(raw string, hasToolCalls bool) string {
	switch raw {
	case "tool_calls", "function_call":
		return FinishToolCalls
	case "length", "max_tokens":
		return FinishLength
	case "stop", "end_turn", "":
		if hasToolCalls {
			return FinishToolCalls
		}
		return FinishStop
	default:
		return raw
	}
}

// encodeArguments renders a tool-request argument map as JSON for the wire.
func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// decodeArguments accepts tool-call arguments in either wire form: a
// JSON-encoded string or an already-decoded object.
func decodeArguments(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case json.RawMessage:
		return decodeArgumentString(string(v))
	case string:
		return decodeArgumentString(v)
	default:
		return nil, fmt.Errorf("unsupported argument type %T", raw)
	}
}

func decodeArgumentString(s string) (map[string]any, error) {
	if s == "" || s == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// classifyChatError separates failures that justify trying another
// provider from application-level errors that do not.
func classifyChatError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 408 || apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return &TransportError{Provider: provider, Err: err}
		}
		return fmt.Errorf("%s request rejected: %w", provider, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{Provider: provider, Err: err}
	}
	// Connection failures and timeouts surface as plain transport errors.
	return &TransportError{Provider: provider, Err: err}
}
