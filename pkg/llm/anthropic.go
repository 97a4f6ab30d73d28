package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/google/uuid"

	"github.com/netmedic/netmedic/pkg/models"
	"github.com/netmedic/netmedic/pkg/tools"
)

// The Messages API requires an explicit output budget.
const anthropicDefaultMaxTokens = 4096

// AnthropicProvider serves chat completions from the Anthropic Messages
// API. Responses are assembled from the streaming event sequence; tool
// choice maps onto the API's native auto/any/tool/none directives.
type AnthropicProvider struct {
	name       string
	model      string
	client     anthropic.Client
	configured bool
}

// NewAnthropicProvider creates an Anthropic provider. An empty API key
// yields a provider that never passes its availability probe.
func NewAnthropicProvider(name, model, apiKey, baseURL string) *AnthropicProvider {
	p := &AnthropicProvider{name: name, model: model}
	if apiKey == "" {
		return p
	}
	options := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	p.client = anthropic.NewClient(options...)
	p.configured = true
	return p
}

func (p *AnthropicProvider) Name() string { return p.name }

func (p *AnthropicProvider) Available(_ context.Context) bool { return p.configured }

func (p *AnthropicProvider) SupportsToolChoice() bool { return true }

// Chat executes one chat completion.
func (p *AnthropicProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	if !p.configured {
		return nil, &TransportError{Provider: p.name, Err: ErrNoProvider}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  toAnthropicMessages(req.Messages),
	}
	if system := systemPrompt(req.Messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	if len(req.Tools) > 0 {
		tl, err := toAnthropicTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		params.Tools = tl
	}
	params.ToolChoice = encodeAnthropicToolChoice(req.ToolChoice)

	stream := p.client.Messages.NewStreaming(ctx, params)
	return p.accumulate(stream)
}

// accumulate assembles a complete response from the streaming event
// sequence: text deltas concatenate, tool-use input JSON fragments
// collect until their block stops, usage comes from the start and final
// delta events.
func (p *AnthropicProvider) accumulate(stream *ssestream.Stream[anthropic.MessageStreamEventUnion]) (*Response, error) {
	msg := models.Message{Role: models.RoleAssistant}
	var (
		text         strings.Builder
		current      *models.ToolRequest
		currentInput strings.Builder
		usage        Usage
	)

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			usage.InputTokens = int(start.Message.Usage.InputTokens)

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				toolUse := block.AsToolUse()
				id := toolUse.ID
				if id == "" {
					id = uuid.New().String()
				}
				current = &models.ToolRequest{CallID: id, Name: toolUse.Name}
				currentInput.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				text.WriteString(delta.Text)
			case "input_json_delta":
				currentInput.WriteString(delta.PartialJSON)
			}

		case "content_block_stop":
			if current != nil {
				args, err := decodeArgumentString(currentInput.String())
				if err != nil {
					return nil, &ProtocolError{
						Provider: p.name,
						Reason:   fmt.Sprintf("malformed arguments for tool %s: %v", current.Name, err),
					}
				}
				current.Arguments = args
				msg.ToolRequests = append(msg.ToolRequests, *current)
				current = nil
			}

		case "message_delta":
			delta := event.AsMessageDelta()
			if delta.Usage.OutputTokens > 0 {
				usage.OutputTokens = int(delta.Usage.OutputTokens)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, p.classify(err)
	}

	msg.Content = text.String()
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	finish := FinishStop
	if len(msg.ToolRequests) > 0 {
		finish = FinishToolCalls
	}
	return &Response{
		Message:      msg,
		FinishReason: finish,
		Model:        p.model,
		Usage:        usage,
	}, nil
}

func (p *AnthropicProvider) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 408 || apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return &TransportError{Provider: p.name, Err: err}
		}
		return fmt.Errorf("%s request rejected: %w", p.name, err)
	}
	return &TransportError{Provider: p.name, Err: err}
}

// systemPrompt extracts the system text; the Messages API carries it
// outside the message array.
func systemPrompt(messages []models.Message) string {
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			return msg.Content
		}
	}
	return ""
}

// toAnthropicMessages converts the conversation for the Messages API.
// Consecutive tool results coalesce into a single user message so every
// tool_use block finds its results in the turn that follows it.
func toAnthropicMessages(messages []models.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for i := 0; i < len(messages); i++ {
		msg := messages[i]
		switch msg.Role {
		case models.RoleSystem:
			continue

		case models.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))

		case models.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, req := range msg.ToolRequests {
				input := req.Arguments
				if input == nil {
					input = map[string]any{}
				}
				content = append(content, anthropic.NewToolUseBlock(req.CallID, input, req.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(content...))

		case models.RoleTool:
			var content []anthropic.ContentBlockParamUnion
			for ; i < len(messages) && messages[i].Role == models.RoleTool; i++ {
				res := messages[i]
				content = append(content, anthropic.NewToolResultBlock(res.CallID, res.Content, !res.Success))
			}
			i--
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out
}

func toAnthropicTools(defs []models.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		raw, err := json.Marshal(tools.ParametersSchema(def))
		if err != nil {
			return nil, fmt.Errorf("marshal schema for tool %s: %w", def.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for tool %s: %w", def.Name, err)
		}
		tool := anthropic.ToolUnionParamOfTool(schema, def.Name)
		if tool.OfTool == nil {
			return nil, fmt.Errorf("invalid tool definition for %s", def.Name)
		}
		tool.OfTool.Description = anthropic.String(def.Description)
		out = append(out, tool)
	}
	return out, nil
}

// encodeAnthropicToolChoice maps the unified tool choice onto the native
// directive. The zero union is omitted from the wire, which means auto.
func encodeAnthropicToolChoice(choice ToolChoice) anthropic.ToolChoiceUnionParam {
	switch choice.Mode {
	case ToolChoiceNone:
		none := anthropic.NewToolChoiceNoneParam()
		return anthropic.ToolChoiceUnionParam{OfNone: &none}
	case ToolChoiceRequired:
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case ToolChoiceNamed:
		return anthropic.ToolChoiceParamOfTool(choice.ToolName)
	default:
		return anthropic.ToolChoiceUnionParam{}
	}
}
