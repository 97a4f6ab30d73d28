package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/netmedic/netmedic/pkg/events"
	"github.com/netmedic/netmedic/pkg/llm"
	"github.com/netmedic/netmedic/pkg/models"
	"github.com/netmedic/netmedic/pkg/store"
	"github.com/netmedic/netmedic/pkg/tools"
)

type scriptedResponse struct {
	resp *llm.Response
	err  error
}

// scriptedClient is a test double for ChatClient. Responses are consumed
// in call order; every request is captured for assertions.
type scriptedClient struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     int
	requests  []llm.Request

	// onChat runs before the scripted response is served, letting tests
	// trigger side effects (such as cancelling a context) at call time.
	onChat func(callIndex int)
}

func (c *scriptedClient) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	idx := c.calls
	c.calls++
	c.requests = append(c.requests, req)
	onChat := c.onChat
	c.mu.Unlock()

	if onChat != nil {
		onChat(idx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if idx >= len(c.responses) {
		return nil, fmt.Errorf("no scripted response for call %d", idx+1)
	}
	r := c.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return r.resp, nil
}

func (c *scriptedClient) request(i int) llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[i]
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func textResponse(text string) scriptedResponse {
	return scriptedResponse{resp: &llm.Response{
		Message:      models.Message{Role: models.RoleAssistant, Content: text},
		FinishReason: llm.FinishStop,
		Provider:     "scripted",
		Model:        "test-model",
		Usage:        llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}}
}

func toolResponse(text string, requests ...models.ToolRequest) scriptedResponse {
	return scriptedResponse{resp: &llm.Response{
		Message:      models.Message{Role: models.RoleAssistant, Content: text, ToolRequests: requests},
		FinishReason: llm.FinishToolCalls,
		Provider:     "scripted",
		Model:        "test-model",
		Usage:        llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}}
}

func chatError(err error) scriptedResponse {
	return scriptedResponse{err: err}
}

func callTool(id, name string, args map[string]any) models.ToolRequest {
	return models.ToolRequest{CallID: id, Name: name, Arguments: args}
}

// stubExecutor is a test double for ToolExecutor serving canned probe
// results keyed by tool name. Unlisted tools get a generic success so
// scripts only spell out the results they assert on.
type stubExecutor struct {
	defs    []models.ToolDefinition
	results map[string]*models.ProbeResult

	// executeFn overrides canned dispatch entirely when set.
	executeFn func(ctx context.Context, req models.ToolRequest) models.ToolResult

	mu       sync.Mutex
	executed []string // tool names in completion order
}

func (e *stubExecutor) Definitions() []models.ToolDefinition {
	return e.defs
}

func (e *stubExecutor) Execute(ctx context.Context, req models.ToolRequest) models.ToolResult {
	if e.executeFn != nil {
		res := e.executeFn(ctx, req)
		e.record(req.Name)
		return res
	}

	probe, ok := e.results[req.Name]
	if !ok {
		probe = &models.ProbeResult{
			Success:  true,
			Data:     map[string]any{"ok": true},
			Platform: "test",
		}
	}
	e.record(req.Name)
	return models.ToolResult{
		CallID:     req.CallID,
		Name:       req.Name,
		Content:    tools.RenderResult(req.Name, probe),
		Success:    probe.Success,
		DurationMs: 1,
		Error:      probe.Error,
	}
}

func (e *stubExecutor) record(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, name)
}

func (e *stubExecutor) executedTools() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.executed))
	copy(out, e.executed)
	return out
}

func defsFor(names ...string) []models.ToolDefinition {
	defs := make([]models.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, models.ToolDefinition{Name: name, Description: "test tool " + name})
	}
	return defs
}

// eventRecorder collects sink events in emission order.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) sink() events.Sink {
	return func(ev events.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	}
}

func (r *eventRecorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) types() []string {
	evs := r.all()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func (r *eventRecorder) last() events.Event {
	evs := r.all()
	if len(evs) == 0 {
		return events.Event{}
	}
	return evs[len(evs)-1]
}

func (r *eventRecorder) byType(eventType string) []events.Event {
	var out []events.Event
	for _, ev := range r.all() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

const testSystemPrompt = "You are a system diagnostic assistant."

// newTestLoop wires a loop over a fresh store with one session created.
func newTestLoop(client ChatClient, exec ToolExecutor, cfg Config) (*Loop, *store.Store, string) {
	st := store.New(testSystemPrompt, nil)
	sessionID := "test-session"
	st.Session(sessionID)
	return New(st, client, exec, DefaultRules(), cfg, nil), st, sessionID
}

func roles(messages []models.Message) []models.Role {
	out := make([]models.Role, len(messages))
	for i, m := range messages {
		out[i] = m.Role
	}
	return out
}
