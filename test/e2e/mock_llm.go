package e2e

import (
	"context"
	"fmt"
	"sync"

	"github.com/netmedic/netmedic/pkg/llm"
	"github.com/netmedic/netmedic/pkg/models"
)

// ScriptEntry defines a single scripted model response. Text and
// ToolCalls may both be set; call IDs are assigned automatically when
// left empty.
type ScriptEntry struct {
	Text      string
	ToolCalls []models.ToolRequest
	Err       error
}

// ScriptedProvider implements llm.Provider with a fixed response script.
// Every request is captured so tests can assert on the tool choices the
// loop and adapter produced. Entries are consumed in order; a repeating
// entry, when set, answers every call past the end of the script.
type ScriptedProvider struct {
	mu        sync.Mutex
	script    []ScriptEntry
	index     int
	repeating *ScriptEntry
	requests  []llm.Request
	callSeq   int
}

// NewScriptedProvider creates an empty ScriptedProvider.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{}
}

// Add appends one scripted response.
func (p *ScriptedProvider) Add(entry ScriptEntry) *ScriptedProvider {
	p.script = append(p.script, entry)
	return p
}

// AddText appends a text-only response.
func (p *ScriptedProvider) AddText(text string) *ScriptedProvider {
	return p.Add(ScriptEntry{Text: text})
}

// AddToolCall appends a response requesting a single tool call.
func (p *ScriptedProvider) AddToolCall(name string, args map[string]any) *ScriptedProvider {
	return p.Add(ScriptEntry{ToolCalls: []models.ToolRequest{{Name: name, Arguments: args}}})
}

// Repeat sets the entry returned for every call after the script runs out.
func (p *ScriptedProvider) Repeat(entry ScriptEntry) *ScriptedProvider {
	p.repeating = &entry
	return p
}

// Name implements llm.Provider.
func (p *ScriptedProvider) Name() string { return "scripted" }

// Available implements llm.Provider.
func (p *ScriptedProvider) Available(context.Context) bool { return true }

// SupportsToolChoice implements llm.Provider.
func (p *ScriptedProvider) SupportsToolChoice() bool { return true }

// Chat implements llm.Provider.
func (p *ScriptedProvider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)

	var entry ScriptEntry
	switch {
	case p.index < len(p.script):
		entry = p.script[p.index]
		p.index++
	case p.repeating != nil:
		entry = *p.repeating
	default:
		calls := len(p.requests)
		p.mu.Unlock()
		return nil, &llm.TransportError{Provider: p.Name(), Err: fmt.Errorf("script exhausted after %d calls", calls)}
	}

	requests := make([]models.ToolRequest, len(entry.ToolCalls))
	for i, tc := range entry.ToolCalls {
		if tc.CallID == "" {
			p.callSeq++
			tc.CallID = fmt.Sprintf("call-%d", p.callSeq)
		}
		if tc.Arguments == nil {
			tc.Arguments = map[string]any{}
		}
		requests[i] = tc
	}
	p.mu.Unlock()

	if entry.Err != nil {
		return nil, entry.Err
	}

	finish := llm.FinishStop
	if len(requests) > 0 {
		finish = llm.FinishToolCalls
	}
	return &llm.Response{
		Message:      models.NewAssistantMessage(entry.Text, requests),
		FinishReason: finish,
		Model:        "scripted-v1",
		Usage:        llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

// Requests returns a copy of every captured request, in call order.
func (p *ScriptedProvider) Requests() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// CallCount returns the total number of Chat calls made.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}
