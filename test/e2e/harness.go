// Package e2e exercises complete diagnostic turns through the real
// pipeline: session manager, agent loop, LLM adapter with tool-choice
// enforcement, and the tool registry. Only the model itself and the
// probe handlers are scripted.
package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netmedic/netmedic/pkg/agent"
	"github.com/netmedic/netmedic/pkg/events"
	"github.com/netmedic/netmedic/pkg/llm"
	"github.com/netmedic/netmedic/pkg/models"
	"github.com/netmedic/netmedic/pkg/session"
	"github.com/netmedic/netmedic/pkg/store"
	"github.com/netmedic/netmedic/pkg/tools"
)

const testSystemPrompt = "You are a network diagnostic assistant. Use the available tools to gather evidence before answering."

// TestApp assembles a full in-process engine for e2e testing.
type TestApp struct {
	Store    *store.Store
	Registry *tools.Registry
	Manager  *session.Manager
	LLM      *ScriptedProvider

	// Probes records every stub tool execution in dispatch order.
	Probes *probeLog

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	loopCfg      agent.Config
	rules        *agent.Rules
	provider     *ScriptedProvider
	toolOverride map[string]tools.Handler
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithProvider sets a pre-scripted model provider.
func WithProvider(p *ScriptedProvider) TestAppOption {
	return func(c *testAppConfig) { c.provider = p }
}

// WithLoopConfig replaces the default loop configuration.
func WithLoopConfig(cfg agent.Config) TestAppOption {
	return func(c *testAppConfig) { c.loopCfg = cfg }
}

// WithRules replaces the default diagnostic rules.
func WithRules(r *agent.Rules) TestAppOption {
	return func(c *testAppConfig) { c.rules = r }
}

// WithToolHandler overrides one stub tool's handler, e.g. to return an
// unhealthy result or to block until cancelled.
func WithToolHandler(name string, h tools.Handler) TestAppOption {
	return func(c *testAppConfig) {
		if c.toolOverride == nil {
			c.toolOverride = make(map[string]tools.Handler)
		}
		c.toolOverride[name] = h
	}
}

// NewTestApp wires store, registry, adapter, loop, and manager exactly
// as main does, with the scripted provider in place of a real backend.
// Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{loopCfg: agent.DefaultConfig()}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.provider == nil {
		tc.provider = NewScriptedProvider()
	}

	st := store.New(testSystemPrompt, nil)

	probes := newProbeLog()
	registry := tools.NewRegistry("linux")
	for _, def := range stubToolDefinitions() {
		handler := tc.toolOverride[def.Name]
		if handler == nil {
			handler = healthyHandler(def.Name)
		}
		require.NoError(t, registry.Register(def, probes.wrap(def.Name, handler)))
	}

	adapter := llm.NewAdapter([]llm.Provider{tc.provider}, time.Minute, nil)
	loop := agent.New(st, adapter, registry, tc.rules, tc.loopCfg, nil)
	manager := session.NewManager(st, loop, nil)
	t.Cleanup(manager.Shutdown)

	return &TestApp{
		Store:    st,
		Registry: registry,
		Manager:  manager,
		LLM:      tc.provider,
		Probes:   probes,
		t:        t,
	}
}

// StartSession creates a session and returns its ID.
func (app *TestApp) StartSession(t *testing.T) string {
	t.Helper()
	summary := app.Manager.StartSession()
	require.NotEmpty(t, summary.SessionID)
	return summary.SessionID
}

// RunTurn drives one synchronous turn to completion and returns the
// events it emitted, in order.
func (app *TestApp) RunTurn(t *testing.T, sessionID, text string) []events.Event {
	t.Helper()
	collected, err := app.runTurn(sessionID, text)
	require.NoError(t, err)
	return collected
}

// runTurn is RunTurn without the error assertion, for scenarios where
// the turn is expected to fail.
func (app *TestApp) runTurn(sessionID, text string) ([]events.Event, error) {
	var collected []events.Event
	err := app.Manager.SendMessage(context.Background(), sessionID, text, func(ev events.Event) {
		collected = append(collected, ev)
	})
	return collected, err
}

// turnResult carries the outcome of a turn started in the background.
type turnResult struct {
	events []events.Event
	err    error
}

// StartTurn launches a turn in the background and returns a channel the
// result arrives on once the turn terminates.
func (app *TestApp) StartTurn(sessionID, text string) <-chan turnResult {
	done := make(chan turnResult, 1)
	go func() {
		evs, err := app.runTurn(sessionID, text)
		done <- turnResult{events: evs, err: err}
	}()
	return done
}

// probeLog records stub tool executions in the order dispatch ran them.
type probeLog struct {
	mu    sync.Mutex
	names []string
}

func newProbeLog() *probeLog {
	return &probeLog{}
}

// wrap returns a handler that records the execution before delegating.
func (l *probeLog) wrap(name string, h tools.Handler) tools.Handler {
	return func(ctx context.Context, args map[string]any) (*models.ProbeResult, error) {
		l.mu.Lock()
		l.names = append(l.names, name)
		l.mu.Unlock()
		return h(ctx, args)
	}
}

// Names returns the executed tool names in order.
func (l *probeLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Count returns how many tool executions ran.
func (l *probeLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.names)
}
