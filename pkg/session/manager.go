// Package session is the public face of the diagnostic engine: session
// lifecycle, message submission (blocking and asynchronous), turn
// cancellation, and the one-turn-per-session guarantee the loop relies
// on. Different sessions run concurrently; within a session, turns are
// strictly serialized.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/netmedic/netmedic/pkg/events"
	"github.com/netmedic/netmedic/pkg/models"
	"github.com/netmedic/netmedic/pkg/store"
)

// TurnRunner drives a single user turn to completion. Satisfied by
// agent.Loop.
type TurnRunner interface {
	Run(ctx context.Context, sessionID, text string, sink events.Sink) error
}

// Broadcaster fans a serialized event out to a channel's subscribers.
// Satisfied by events.ConnectionManager.
type Broadcaster interface {
	Broadcast(channel string, payload []byte)
}

// Manager is the session facade.
type Manager struct {
	store       *store.Store
	loop        TurnRunner
	broadcaster Broadcaster

	// Active turn tracking for cancellation and shutdown.
	mu      sync.Mutex
	active  map[string]context.CancelFunc // sessionID → cancel
	wg      sync.WaitGroup                // drains async turns on Shutdown
	stopped bool
}

// NewManager creates a Manager. broadcaster receives the events of
// asynchronously submitted turns and may be nil.
func NewManager(st *store.Store, loop TurnRunner, broadcaster Broadcaster) *Manager {
	return &Manager{
		store:       st,
		loop:        loop,
		broadcaster: broadcaster,
		active:      make(map[string]context.CancelFunc),
	}
}

// StartSession creates a session seeded with the system prompt and
// returns its summary, including the generated ID.
func (m *Manager) StartSession() models.SessionSummary {
	sessionID := uuid.New().String()
	summary := m.store.Session(sessionID)
	slog.Info("session started", "session", sessionID)
	return summary
}

// SendMessage runs one turn synchronously. Events stream to sink as the
// turn progresses; the call returns once the terminal event has been
// emitted. A concurrent turn on the same session fails fast with
// ErrTurnInFlight. Cancelling ctx aborts in-flight LLM calls and probes.
func (m *Manager) SendMessage(ctx context.Context, sessionID, text string, sink events.Sink) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("text", "required")
	}
	if !m.store.Has(sessionID) {
		return fmt.Errorf("send to session %s: %w", sessionID, store.ErrSessionNotFound)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := m.acquire(sessionID, cancel); err != nil {
		return err
	}
	defer m.release(sessionID)

	return m.loop.Run(runCtx, sessionID, text, sink)
}

// Submit launches one turn asynchronously, streaming its events to the
// session's broadcast channel. It returns as soon as the turn slot is
// acquired; the turn itself is detached from the caller's lifecycle and
// ends through completion, Cancel, or Shutdown.
func (m *Manager) Submit(sessionID, text string) error {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("text", "required")
	}
	if !m.store.Has(sessionID) {
		return fmt.Errorf("submit to session %s: %w", sessionID, store.ErrSessionNotFound)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := m.acquire(sessionID, cancel); err != nil {
		cancel()
		return err
	}

	go func() {
		defer m.release(sessionID)
		defer cancel()
		// The loop reports failures through its terminal Error event;
		// here the error only feeds the log.
		if err := m.loop.Run(runCtx, sessionID, text, m.broadcastSink(sessionID)); err != nil {
			slog.Error("async turn failed", "session", sessionID, "error", err)
		}
	}()
	return nil
}

// Cancel aborts the session's in-flight turn, if any, and reports
// whether one was cancelled. Effects of probes that already ran are not
// rolled back.
func (m *Manager) Cancel(sessionID string) bool {
	m.mu.Lock()
	cancel, ok := m.active[sessionID]
	m.mu.Unlock()
	if ok {
		slog.Info("cancelling turn", "session", sessionID)
		cancel()
	}
	return ok
}

// ListSessions returns summaries of all sessions, newest first.
func (m *Manager) ListSessions() []models.SessionSummary {
	return m.store.List()
}

// Has reports whether the session exists.
func (m *Manager) Has(sessionID string) bool {
	return m.store.Has(sessionID)
}

// GetMessages returns a snapshot of the session transcript.
func (m *Manager) GetMessages(sessionID string) ([]models.Message, error) {
	return m.store.Messages(sessionID)
}

// DeleteSession cancels any in-flight turn and removes the transcript.
func (m *Manager) DeleteSession(sessionID string) error {
	m.Cancel(sessionID)
	return m.store.Delete(sessionID)
}

// ActiveTurns reports how many turns are currently executing.
func (m *Manager) ActiveTurns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Shutdown rejects new turns, cancels in-flight ones, and waits for
// their goroutines to drain. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.stopped = true
	for _, cancel := range m.active {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// acquire claims the session's turn slot. The slot is tracked together
// with the shutdown WaitGroup so Shutdown cannot finish draining before
// a just-acquired turn is visible to it.
func (m *Manager) acquire(sessionID string, cancel context.CancelFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrShuttingDown
	}
	if _, busy := m.active[sessionID]; busy {
		return ErrTurnInFlight
	}
	m.active[sessionID] = cancel
	m.wg.Add(1)
	return nil
}

func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	delete(m.active, sessionID)
	m.mu.Unlock()
	m.wg.Done()
}

// broadcastSink projects loop events onto the session's event channel.
func (m *Manager) broadcastSink(sessionID string) events.Sink {
	if m.broadcaster == nil {
		return events.NopSink
	}
	channel := events.SessionChannel(sessionID)
	return func(ev events.Event) {
		m.broadcaster.Broadcast(channel, ev.Marshal())
	}
}
