// Package agent drives a user turn through the reason-act cycle: call
// the model, dispatch the tools it requests, feed results back, repeat
// until the model answers in text or a cap forces a summary. The
// diagnostic protocol (stop conditions, verification policy) comes in as
// data via Rules, keeping the loop itself tool-agnostic.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netmedic/netmedic/pkg/events"
	"github.com/netmedic/netmedic/pkg/llm"
	"github.com/netmedic/netmedic/pkg/models"
	"github.com/netmedic/netmedic/pkg/store"
)

// ChatClient is the slice of the LLM adapter the loop depends on.
type ChatClient interface {
	Chat(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// ToolExecutor is the slice of the tool registry the loop depends on.
type ToolExecutor interface {
	Definitions() []models.ToolDefinition
	Execute(ctx context.Context, req models.ToolRequest) models.ToolResult
}

// ToolObserver is invoked after every tool execution so a persistence
// collaborator can record the call. May be nil.
type ToolObserver func(sessionID, toolName string, args map[string]any, resultSummary string, durationMs int64, success bool)

// Config carries the loop tunables.
type Config struct {
	// MaxIterations caps reason-act cycles per user turn.
	MaxIterations int

	// ForceToolFirstTurn makes the first model call of a session use
	// toolChoice required, so diagnosis starts from evidence instead of
	// guesswork.
	ForceToolFirstTurn bool

	// FanOut bounds parallel tool dispatch within one iteration.
	FanOut int

	// Temperature is passed through on every chat request.
	Temperature float32

	// TurnSoftCeiling bounds total turn duration. Once exceeded the
	// loop stops iterating and forces a summary. Zero disables it.
	TurnSoftCeiling time.Duration

	// VerificationEnabled controls the post-fix verification sub-loop.
	VerificationEnabled bool
}

// DefaultConfig returns the shipped loop defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       7,
		ForceToolFirstTurn:  true,
		FanOut:              4,
		Temperature:         0.2,
		TurnSoftCeiling:     5 * time.Minute,
		VerificationEnabled: true,
	}
}

// Loop executes user turns against one conversation store. It is
// stateless between turns and safe for concurrent use across sessions;
// serializing turns within a session is the caller's job.
type Loop struct {
	store    *store.Store
	client   ChatClient
	tools    ToolExecutor
	rules    *Rules
	cfg      Config
	observer ToolObserver
}

// New creates a Loop. A nil rules selects DefaultRules; observer may be
// nil. Non-positive caps fall back to their defaults.
func New(st *store.Store, client ChatClient, tools ToolExecutor, rules *Rules, cfg Config, observer ToolObserver) *Loop {
	if rules == nil {
		rules = DefaultRules()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = DefaultConfig().FanOut
	}
	return &Loop{store: st, client: client, tools: tools, rules: rules, cfg: cfg, observer: observer}
}

// turnState carries per-turn bookkeeping across the main loop and the
// verification sub-loop.
type turnState struct {
	sessionID string
	sink      events.Sink
	start     time.Time
	stats     events.TurnStats

	// pendingVerification is set when a state-changing tool succeeded
	// and the verification sub-loop has not run yet.
	pendingVerification bool
	verifying           bool
}

func (st *turnState) thinkingPhase() string {
	if st.verifying {
		return events.PhaseVerifying
	}
	return events.PhaseThinking
}

// Run drives one user turn to completion. Events stream to sink in
// causal order; the terminal event is always Done or Error. The session
// must already exist. The returned error mirrors the Error event.
func (l *Loop) Run(ctx context.Context, sessionID, text string, sink events.Sink) error {
	if sink == nil {
		sink = events.NopSink
	}
	st := &turnState{sessionID: sessionID, sink: sink, start: time.Now()}

	history, err := l.store.Messages(sessionID)
	if err != nil {
		return l.fail(st, err)
	}
	firstTurn := !hasUserTurn(history)

	if _, err := l.store.Append(sessionID, models.NewUserMessage(text)); err != nil {
		return l.fail(st, err)
	}

	finalText, err := l.iterate(ctx, st, firstTurn, l.cfg.MaxIterations)
	if err != nil {
		return l.fail(st, err)
	}

	if l.cfg.VerificationEnabled && st.pendingVerification {
		st.pendingVerification = false
		st.verifying = true
		sink(events.NewStatus(events.PhaseVerifying, 1, l.rules.VerificationMaxIterations, "verifying applied changes"))

		if _, err := l.store.Append(sessionID, models.NewUserMessage(l.rules.VerificationPrompt)); err != nil {
			return l.fail(st, err)
		}
		verdict, err := l.iterate(ctx, st, false, l.rules.VerificationMaxIterations)
		if err != nil {
			return l.fail(st, err)
		}
		if strings.TrimSpace(verdict) != "" {
			finalText = verdict
		}
		st.stats.Verified = true
	}

	st.stats.DurationMs = time.Since(st.start).Milliseconds()
	sink(events.NewDone(finalText, st.stats))
	slog.Info("turn complete",
		"session", sessionID,
		"iterations", st.stats.Iterations,
		"tools", st.stats.ToolCount,
		"duration_ms", st.stats.DurationMs,
		"verified", st.stats.Verified)
	return nil
}

// fail logs the turn failure and emits the terminal Error event.
func (l *Loop) fail(st *turnState, err error) error {
	msg := err.Error()
	if errors.Is(err, context.Canceled) {
		msg = "cancelled"
	}
	slog.Error("turn failed", "session", st.sessionID, "error", err)
	st.sink(events.NewError(msg))
	return err
}

// iterate runs the reason-act cycle over the current transcript. It
// returns the model's text once an iteration produces no tool requests,
// or forces a summary when maxIter or the turn ceiling cuts the cycle
// short while the model is still probing.
//
// The assistant message and its tool results are committed to the store
// only after the iteration's tools have finished, so a cancelled
// iteration leaves no half-answered turn behind.
func (l *Loop) iterate(ctx context.Context, st *turnState, firstTurn bool, maxIter int) (string, error) {
	messages, err := l.store.Messages(st.sessionID)
	if err != nil {
		return "", err
	}
	defs := l.tools.Definitions()

	forceFirst := firstTurn && l.cfg.ForceToolFirstTurn && len(defs) > 0
	stopReason := ""

	for i := 1; i <= maxIter; i++ {
		if l.cfg.TurnSoftCeiling > 0 && time.Since(st.start) > l.cfg.TurnSoftCeiling {
			slog.Warn("turn ceiling exceeded, forcing summary",
				"session", st.sessionID, "elapsed", time.Since(st.start))
			break
		}

		choice := llm.ToolChoice{Mode: llm.ToolChoiceAuto}
		switch {
		case stopReason != "":
			// A stop condition fired: the model gets one narration pass
			// instead of probing further down a dead path.
			choice.Mode = llm.ToolChoiceNone
		case i == 1 && forceFirst:
			choice.Mode = llm.ToolChoiceRequired
		}

		st.stats.Iterations++
		st.sink(events.NewStatus(st.thinkingPhase(), i, maxIter, ""))

		resp, declined, err := l.chat(ctx, st, messages, defs, choice)
		if err != nil {
			return "", err
		}

		text := resp.Message.Content
		requests := dedupRequests(resp.Message.ToolRequests)

		if len(requests) == 0 {
			if err := l.commit(st, &messages, models.NewAssistantMessage(text, nil)); err != nil {
				return "", err
			}
			if text != "" {
				st.sink(events.NewContent(text))
			}
			if declined {
				st.sink(events.NewStatus(events.PhaseWarning, i, maxIter,
					"model answered in text despite tool forcing"))
			}
			return text, nil
		}

		if text != "" {
			st.sink(events.NewContent(text))
		}
		st.sink(events.NewStatus(events.PhaseExecuting, i, maxIter,
			fmt.Sprintf("running %d tool call(s)", len(requests))))
		for _, req := range requests {
			st.sink(events.NewToolCall(req.Name, req.Arguments))
		}

		results := l.dispatch(ctx, st, requests)
		if err := ctx.Err(); err != nil {
			// Cancelled mid-dispatch: the iteration is abandoned whole,
			// nothing from it reaches the transcript.
			return "", err
		}

		if err := l.commit(st, &messages, models.NewAssistantMessage(text, requests)); err != nil {
			return "", err
		}
		for idx, req := range requests {
			res := results[idx]
			if err := l.commit(st, &messages, models.NewToolMessage(res)); err != nil {
				return "", err
			}
			st.sink(events.NewToolResult(res.Name, res.Success, res.Content))
			st.stats.ToolCount++

			if sc := l.rules.StopFor(res.Name, res.Content); sc != nil && stopReason == "" {
				stopReason = sc.Reason
				slog.Info("stop condition met, asking model to report",
					"session", st.sessionID, "tool", sc.Tool, "field", sc.Field, "reason", sc.Reason)
			}
			if res.Success && l.rules.IsAction(req.Name) {
				st.pendingVerification = true
			}
		}
	}

	return l.forceSummary(ctx, st, messages, defs, maxIter)
}

// chat performs one adapter call, applying the protocol-error recovery
// policy: a single retry, with required forcing downgraded to auto. The
// declined result reports that a downgraded retry still produced no tool
// call, which the caller surfaces as a warning.
func (l *Loop) chat(ctx context.Context, st *turnState, messages []models.Message, defs []models.ToolDefinition, choice llm.ToolChoice) (resp *llm.Response, declined bool, err error) {
	req := llm.Request{
		SessionID:   st.sessionID,
		Messages:    messages,
		Tools:       defs,
		Temperature: l.cfg.Temperature,
		ToolChoice:  choice,
	}

	resp, err = l.client.Chat(ctx, req)
	if err == nil {
		l.recordUsage(st, resp)
		return resp, false, nil
	}
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	if !llm.IsProtocolError(err) {
		return nil, false, err
	}

	downgraded := false
	if choice.Mode == llm.ToolChoiceRequired || choice.Mode == llm.ToolChoiceNamed {
		req.ToolChoice = llm.ToolChoice{Mode: llm.ToolChoiceAuto}
		downgraded = true
	}
	slog.Warn("LLM protocol error, retrying once",
		"session", st.sessionID, "downgraded", downgraded, "error", err)

	resp, err = l.client.Chat(ctx, req)
	if err != nil {
		return nil, false, err
	}
	l.recordUsage(st, resp)
	declined = downgraded && len(resp.Message.ToolRequests) == 0
	return resp, declined, nil
}

func (l *Loop) recordUsage(st *turnState, resp *llm.Response) {
	st.stats.InputTokens += resp.Usage.InputTokens
	st.stats.OutputTokens += resp.Usage.OutputTokens
}

// dispatch executes the iteration's tool requests, at most FanOut at a
// time. Results are indexed by request order regardless of completion
// order, preserving request/result pairing downstream.
func (l *Loop) dispatch(ctx context.Context, st *turnState, requests []models.ToolRequest) []models.ToolResult {
	results := make([]models.ToolResult, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.FanOut)
	for idx, req := range requests {
		g.Go(func() error {
			res := l.tools.Execute(gctx, req)
			results[idx] = res
			if l.observer != nil {
				l.observer(st.sessionID, req.Name, req.Arguments, summarizeResult(res), res.DurationMs, res.Success)
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors, Wait only synchronizes
	return results
}

// commit appends msg to the store and mirrors it into the working slice
// so later iterations see the full transcript without re-reading.
func (l *Loop) commit(st *turnState, messages *[]models.Message, msg models.Message) error {
	if _, err := l.store.Append(st.sessionID, msg); err != nil {
		return err
	}
	*messages = append(*messages, msg)
	return nil
}

// forceSummary asks for a plain-text wrap-up with tools disabled, after
// the iteration cap or the turn ceiling interrupted the cycle.
func (l *Loop) forceSummary(ctx context.Context, st *turnState, messages []models.Message, defs []models.ToolDefinition, maxIter int) (string, error) {
	st.sink(events.NewStatus(st.thinkingPhase(), maxIter, maxIter, "wrapping up findings"))

	resp, _, err := l.chat(ctx, st, messages, defs, llm.ToolChoice{Mode: llm.ToolChoiceNone})
	if err != nil {
		return "", err
	}
	text := resp.Message.Content
	if err := l.commit(st, &messages, models.NewAssistantMessage(text, nil)); err != nil {
		return "", err
	}
	if text != "" {
		st.sink(events.NewContent(text))
	}
	return text, nil
}

func hasUserTurn(history []models.Message) bool {
	for _, m := range history {
		if m.Role == models.RoleUser {
			return true
		}
	}
	return false
}

// dedupRequests drops repeated requests for the same tool with identical
// arguments within one iteration, keeping first-occurrence order.
func dedupRequests(requests []models.ToolRequest) []models.ToolRequest {
	if len(requests) < 2 {
		return requests
	}
	seen := make(map[string]struct{}, len(requests))
	out := make([]models.ToolRequest, 0, len(requests))
	for _, req := range requests {
		key := requestKey(req)
		if _, dup := seen[key]; dup {
			slog.Debug("dropping duplicate tool request", "tool", req.Name, "call_id", req.CallID)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, req)
	}
	return out
}

// requestKey canonicalizes name plus arguments. JSON marshals map keys
// sorted, so equal argument maps produce equal keys.
func requestKey(req models.ToolRequest) string {
	args, err := json.Marshal(req.Arguments)
	if err != nil {
		return req.Name + "/" + req.CallID
	}
	return req.Name + "/" + string(args)
}

const summaryLen = 200

// summarizeResult flattens rendered result content into a single line
// for the call observer.
func summarizeResult(res models.ToolResult) string {
	s := strings.Join(strings.Fields(res.Content), " ")
	runes := []rune(s)
	if len(runes) <= summaryLen {
		return s
	}
	return string(runes[:summaryLen-3]) + "..."
}
