package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider serves chat completions from an OpenAI-compatible cloud
// endpoint. Tool choice is passed through natively.
type OpenAIProvider struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAIProvider creates a cloud provider. An empty API key yields a
// provider that never passes its availability probe, so a missing key
// degrades to the next candidate instead of failing requests.
func NewOpenAIProvider(name, model, apiKey, baseURL string) *OpenAIProvider {
	p := &OpenAIProvider{name: name, model: model}
	if apiKey == "" {
		return p
	}
	if baseURL != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		p.client = openai.NewClientWithConfig(cfg)
	} else {
		p.client = openai.NewClient(apiKey)
	}
	return p
}

func (p *OpenAIProvider) Name() string { return p.name }

// Available is a configuration check; cloud reachability is discovered by
// the request itself and handled through transport-error fallback.
func (p *OpenAIProvider) Available(_ context.Context) bool { return p.client != nil }

func (p *OpenAIProvider) SupportsToolChoice() bool { return true }

// Chat executes one chat completion.
func (p *OpenAIProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	if p.client == nil {
		return nil, &TransportError{Provider: p.name, Err: ErrNoProvider}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toChatMessages(req.Messages),
		Temperature: req.Temperature,
		Tools:       toChatTools(req.Tools),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if tc := encodeOpenAIToolChoice(req.ToolChoice); tc != nil {
		chatReq.ToolChoice = tc
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyChatError(p.name, err)
	}
	return fromChatResponse(p.name, resp)
}
