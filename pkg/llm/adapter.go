package llm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/netmedic/netmedic/pkg/models"
)

// DefaultRequestTimeout bounds a single provider attempt.
const DefaultRequestTimeout = 120 * time.Second

// Adapter fronts a priority-ordered list of providers with a single Chat
// entry point. It probes availability, emulates tool choice for providers
// without native support, enforces the tool-choice contract on responses,
// and retries once on the next provider when the first attempt fails at
// the transport level.
type Adapter struct {
	providers []Provider
	timeout   time.Duration
	observer  CallObserver
}

// NewAdapter creates an adapter over providers in priority order. A zero
// timeout selects DefaultRequestTimeout; observer may be nil.
func NewAdapter(providers []Provider, timeout time.Duration, observer CallObserver) *Adapter {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Adapter{providers: providers, timeout: timeout, observer: observer}
}

// Chat sends the request to the highest-priority available provider. A
// transport failure triggers exactly one fallback to the next available
// provider; application rejections and cancellation never do.
func (a *Adapter) Chat(ctx context.Context, req Request) (*Response, error) {
	candidates := a.availableProviders(ctx)
	if len(candidates) == 0 {
		return nil, ErrNoProvider
	}

	primary := candidates[0]
	resp, err := a.attempt(ctx, primary, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !IsTransportError(err) || len(candidates) < 2 {
		return nil, err
	}

	fallback := candidates[1]
	slog.Warn("LLM provider failed, trying fallback",
		"provider", primary.Name(),
		"fallback", fallback.Name(),
		"error", err)
	resp, err = a.attempt(ctx, fallback, req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Status reports every configured provider and whether its availability
// probe currently passes, in priority order.
func (a *Adapter) Status(ctx context.Context) []ProviderStatus {
	out := make([]ProviderStatus, 0, len(a.providers))
	for _, p := range a.providers {
		out = append(out, ProviderStatus{Name: p.Name(), Available: p.Available(ctx)})
	}
	return out
}

// ProviderStatus is one entry of Status.
type ProviderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

func (a *Adapter) availableProviders(ctx context.Context) []Provider {
	var out []Provider
	for _, p := range a.providers {
		if p.Available(ctx) {
			out = append(out, p)
		}
	}
	return out
}

// attempt runs one provider call under the per-attempt timeout. The
// observer fires for every attempt, failed ones included. The response
// is checked against the originally requested tool choice before it is
// returned.
func (a *Adapter) attempt(ctx context.Context, p Provider, req Request) (*Response, error) {
	choice := req.ToolChoice
	if !p.SupportsToolChoice() {
		req = emulateToolChoice(req)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.Chat(attemptCtx, req)
	duration := time.Since(start)

	if a.observer != nil {
		model := ""
		tokensIn, tokensOut := 0, 0
		if resp != nil {
			model = resp.Model
			tokensIn = resp.Usage.InputTokens
			tokensOut = resp.Usage.OutputTokens
		}
		a.observer(req.SessionID, p.Name(), model, duration, tokensIn, tokensOut)
	}
	if err != nil {
		return nil, err
	}
	if err := enforceToolChoice(p.Name(), choice, resp); err != nil {
		return nil, err
	}
	resp.Provider = p.Name()
	return resp, nil
}

// enforceToolChoice validates a response against the requested tool
// choice. Required and named violations are protocol errors. A none
// violation is repaired by dropping the calls, as long as text remains.
func enforceToolChoice(provider string, choice ToolChoice, resp *Response) error {
	switch choice.Mode {
	case ToolChoiceRequired:
		if len(resp.Message.ToolRequests) == 0 {
			return &ProtocolError{Provider: provider, Reason: "tool call required but none returned"}
		}
	case ToolChoiceNamed:
		if len(resp.Message.ToolRequests) == 0 {
			return &ProtocolError{
				Provider: provider,
				Reason:   fmt.Sprintf("call to tool %s required but none returned", choice.ToolName),
			}
		}
		for _, req := range resp.Message.ToolRequests {
			if req.Name != choice.ToolName {
				return &ProtocolError{
					Provider: provider,
					Reason:   fmt.Sprintf("requested tool %s but %s was called", choice.ToolName, req.Name),
				}
			}
		}
	case ToolChoiceNone:
		if len(resp.Message.ToolRequests) > 0 {
			resp.Message.ToolRequests = nil
			resp.FinishReason = FinishStop
			if strings.TrimSpace(resp.Message.Content) == "" {
				return &ProtocolError{Provider: provider, Reason: "tool calls suppressed but no text remained"}
			}
		}
	}
	if resp.Message.Content == "" && len(resp.Message.ToolRequests) == 0 {
		return &ProtocolError{Provider: provider, Reason: "empty response"}
	}
	return nil
}

// emulateToolChoice rewrites a request for providers without native
// tool-choice support. None strips the tool list so no call is possible;
// required and named append an instruction to the last user message. The
// message slice is copied, callers keep their history untouched.
func emulateToolChoice(req Request) Request {
	switch req.ToolChoice.Mode {
	case ToolChoiceNone:
		req.Tools = nil
	case ToolChoiceRequired:
		req.Messages = appendInstruction(req.Messages,
			"[INSTRUCTION: You must respond with a tool call.]")
	case ToolChoiceNamed:
		req.Messages = appendInstruction(req.Messages,
			fmt.Sprintf("[INSTRUCTION: You must respond with a call to the %s tool.]", req.ToolChoice.ToolName))
	}
	req.ToolChoice = ToolChoice{}
	return req
}

func appendInstruction(messages []models.Message, instruction string) []models.Message {
	out := slices.Clone(messages)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == models.RoleUser {
			out[i].Content = out[i].Content + "\n\n" + instruction
			return out
		}
	}
	return append(out, models.NewUserMessage(instruction))
}
