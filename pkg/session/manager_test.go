package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netmedic/netmedic/pkg/events"
	"github.com/netmedic/netmedic/pkg/models"
	"github.com/netmedic/netmedic/pkg/store"
)

// fakeRunner is a scripted TurnRunner. When release is non-nil, Run
// blocks until it is closed or the context is cancelled, which lets
// tests hold a turn slot open.
type fakeRunner struct {
	started chan string
	release chan struct{}
	events  []events.Event
	err     error

	mu   sync.Mutex
	runs []string
}

func (r *fakeRunner) Run(ctx context.Context, sessionID, text string, sink events.Sink) error {
	r.mu.Lock()
	r.runs = append(r.runs, sessionID+":"+text)
	r.mu.Unlock()

	if r.started != nil {
		r.started <- sessionID
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			sink(events.NewError("cancelled"))
			return ctx.Err()
		}
	}
	for _, ev := range r.events {
		sink(ev)
	}
	return r.err
}

func (r *fakeRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// fakeBroadcaster records broadcast payloads per channel.
type fakeBroadcaster struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (b *fakeBroadcaster) Broadcast(channel string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels)
}

func newTestManager(runner TurnRunner, broadcaster Broadcaster) (*Manager, *store.Store) {
	st := store.New("You are a system diagnostic assistant.", nil)
	return NewManager(st, runner, broadcaster), st
}

func TestStartSessionSeedsTranscript(t *testing.T) {
	m, st := newTestManager(&fakeRunner{}, nil)

	summary := m.StartSession()
	require.NotEmpty(t, summary.SessionID)
	assert.Equal(t, 1, summary.MessageCount)
	assert.True(t, st.Has(summary.SessionID))

	messages, err := m.GetMessages(summary.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.RoleSystem, messages[0].Role)
}

func TestSendMessageRunsTurn(t *testing.T) {
	runner := &fakeRunner{events: []events.Event{
		events.NewContent("all good"),
		events.NewDone("all good", events.TurnStats{Iterations: 1}),
	}}
	m, _ := newTestManager(runner, nil)
	sessionID := m.StartSession().SessionID

	var mu sync.Mutex
	var received []events.Event
	sink := func(ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev)
	}

	err := m.SendMessage(context.Background(), sessionID, "check my wifi", sink)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.runCount())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, events.TypeDone, received[1].Type)
	assert.Equal(t, 0, m.ActiveTurns())
}

func TestSendMessageValidation(t *testing.T) {
	m, _ := newTestManager(&fakeRunner{}, nil)
	sessionID := m.StartSession().SessionID

	err := m.SendMessage(context.Background(), sessionID, "   ", events.NopSink)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	err = m.SendMessage(context.Background(), "no-such-session", "hello", events.NopSink)
	require.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestSecondTurnRejectedWhileFirstRuns(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	m, _ := newTestManager(runner, nil)
	sessionID := m.StartSession().SessionID

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.SendMessage(context.Background(), sessionID, "first", events.NopSink)
	}()
	<-runner.started

	err := m.SendMessage(context.Background(), sessionID, "second", events.NopSink)
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.ErrorIs(t, m.Submit(sessionID, "third"), ErrTurnInFlight)

	close(runner.release)
	require.NoError(t, <-errCh)

	// The slot is free again once the first turn drains.
	runner.release = nil
	require.NoError(t, m.SendMessage(context.Background(), sessionID, "fourth", events.NopSink))
}

func TestConcurrentSessionsRunInParallel(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	m, _ := newTestManager(runner, nil)
	first := m.StartSession().SessionID
	second := m.StartSession().SessionID

	errCh := make(chan error, 2)
	go func() { errCh <- m.SendMessage(context.Background(), first, "one", events.NopSink) }()
	go func() { errCh <- m.SendMessage(context.Background(), second, "two", events.NopSink) }()

	// Both turns must reach the runner without waiting on each other.
	<-runner.started
	<-runner.started
	assert.Equal(t, 2, m.ActiveTurns())

	close(runner.release)
	require.NoError(t, <-errCh)
	require.NoError(t, <-errCh)
}

func TestCancelAbortsInFlightTurn(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	m, _ := newTestManager(runner, nil)
	sessionID := m.StartSession().SessionID

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.SendMessage(context.Background(), sessionID, "diagnose", events.NopSink)
	}()
	<-runner.started

	assert.True(t, m.Cancel(sessionID))
	require.ErrorIs(t, <-errCh, context.Canceled)

	assert.False(t, m.Cancel(sessionID), "no turn left to cancel")
	assert.Equal(t, 0, m.ActiveTurns())
}

func TestSubmitBroadcastsToSessionChannel(t *testing.T) {
	runner := &fakeRunner{events: []events.Event{
		events.NewStatus(events.PhaseThinking, 1, 7, ""),
		events.NewDone("done", events.TurnStats{}),
	}}
	broadcaster := &fakeBroadcaster{}
	m, _ := newTestManager(runner, broadcaster)
	sessionID := m.StartSession().SessionID

	require.NoError(t, m.Submit(sessionID, "check dns"))

	require.Eventually(t, func() bool { return broadcaster.count() == 2 },
		time.Second, 5*time.Millisecond)

	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	assert.Equal(t, events.SessionChannel(sessionID), broadcaster.channels[0])
	assert.Contains(t, string(broadcaster.payloads[1]), `"type":"done"`)
}

func TestDeleteSessionCancelsTurn(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	m, st := newTestManager(runner, nil)
	sessionID := m.StartSession().SessionID

	require.NoError(t, m.Submit(sessionID, "diagnose"))
	<-runner.started

	require.NoError(t, m.DeleteSession(sessionID))
	assert.False(t, st.Has(sessionID))

	require.Eventually(t, func() bool { return m.ActiveTurns() == 0 },
		time.Second, 5*time.Millisecond)

	err := m.DeleteSession(sessionID)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestShutdownDrainsAndRejects(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	m, _ := newTestManager(runner, nil)
	sessionID := m.StartSession().SessionID

	require.NoError(t, m.Submit(sessionID, "diagnose"))
	<-runner.started

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not drain the in-flight turn")
	}

	assert.ErrorIs(t, m.Submit(sessionID, "again"), ErrShuttingDown)
	assert.ErrorIs(t, m.SendMessage(context.Background(), sessionID, "again", events.NopSink), ErrShuttingDown)
	assert.Equal(t, 0, m.ActiveTurns())
}
