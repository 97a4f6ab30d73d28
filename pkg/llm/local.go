package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultLocalBaseURL is the OpenAI-compatible endpoint of a stock
	// Ollama server.
	DefaultLocalBaseURL = "http://localhost:11434/v1"

	localProbeTimeout = 2 * time.Second
)

// LocalProvider serves chat completions from a local model server's
// OpenAI-compatible endpoint. Local servers ignore the tool_choice field,
// so the adapter falls back to in-message instruction emulation.
type LocalProvider struct {
	name    string
	model   string
	baseURL string
	client  *openai.Client
	probe   *http.Client
}

// NewLocalProvider creates a provider for an Ollama-compatible server.
func NewLocalProvider(name, model, baseURL string) *LocalProvider {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultLocalBaseURL
	}
	// Local servers do not check credentials.
	cfg := openai.DefaultConfig("n/a")
	cfg.BaseURL = baseURL
	return &LocalProvider{
		name:    name,
		model:   model,
		baseURL: baseURL,
		client:  openai.NewClientWithConfig(cfg),
		probe:   &http.Client{Timeout: localProbeTimeout},
	}
}

func (p *LocalProvider) Name() string { return p.name }

// Available probes the server root with a short GET. Any HTTP answer means
// the process is up; only connection failures mark it unreachable.
func (p *LocalProvider) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, localProbeTimeout)
	defer cancel()

	root := strings.TrimSuffix(p.baseURL, "/v1")
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, root+"/", nil)
	if err != nil {
		return false
	}
	resp, err := p.probe.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (p *LocalProvider) SupportsToolChoice() bool { return false }

// Chat executes one chat completion. The request arrives already rewritten
// by the adapter's emulation layer, so no tool_choice is sent.
func (p *LocalProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toChatMessages(req.Messages),
		Temperature: req.Temperature,
		Tools:       toChatTools(req.Tools),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classifyChatError(p.name, err)
	}
	return fromChatResponse(p.name, resp)
}
