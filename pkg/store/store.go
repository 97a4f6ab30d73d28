// Package store maintains the ordered conversation transcript for each
// session and enforces the message-sequence invariants before anything
// reaches a provider.
package store

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/netmedic/netmedic/pkg/models"
)

// ErrSessionNotFound is returned for operations on a session that was
// never referenced or has been deleted.
var ErrSessionNotFound = errors.New("session not found")

// InvariantError reports an append that would break the conversation shape.
type InvariantError struct {
	SessionID string
	Role      models.Role
	Reason    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cannot append %s message to session %s: %s", e.Role, e.SessionID, e.Reason)
}

// IsInvariantError checks if an error is an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

// MessageHook observes every stored message. Hooks run synchronously on
// the appending goroutine while the session is locked, so callback order
// matches append order. A hook must not call back into the store.
type MessageHook func(sessionID string, msg models.Message, position int)

// Store holds all in-memory conversations. Durable persistence is a
// collaborator's concern, attached through the message hook.
type Store struct {
	systemPrompt string
	hook         MessageHook

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu        sync.Mutex
	startedAt time.Time
	messages  []models.Message
}

// New creates a Store. Every session starts with systemPrompt at index 0.
// hook may be nil.
func New(systemPrompt string, hook MessageHook) *Store {
	return &Store{
		systemPrompt: systemPrompt,
		hook:         hook,
		sessions:     make(map[string]*session),
	}
}

// Session returns the summary for sessionID, creating the session on
// first reference.
func (s *Store) Session(sessionID string) models.SessionSummary {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{
			startedAt: time.Now(),
			messages:  []models.Message{models.NewSystemMessage(s.systemPrompt)},
		}
		s.sessions[sessionID] = sess
	}
	// Take the session lock before releasing the map lock so the seed
	// notification cannot be overtaken by a concurrent append.
	sess.mu.Lock()
	s.mu.Unlock()
	defer sess.mu.Unlock()

	if !ok && s.hook != nil {
		s.hook(sessionID, sess.messages[0], 0)
	}
	return summarize(sessionID, sess)
}

// Has reports whether the session exists, without creating it.
func (s *Store) Has(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// Append validates msg against the conversation invariants and stores it.
// It returns the position of the stored message within the transcript.
func (s *Store) Append(sessionID string, msg models.Message) (int, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return 0, fmt.Errorf("append to session %s: %w", sessionID, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := validateAppend(sessionID, sess.messages, msg); err != nil {
		return 0, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	sess.messages = append(sess.messages, cloneMessage(msg))

	pos := len(sess.messages) - 1
	if s.hook != nil {
		s.hook(sessionID, sess.messages[pos], pos)
	}
	return pos, nil
}

// Messages returns a defensive snapshot of the session transcript.
func (s *Store) Messages(sessionID string) ([]models.Message, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, fmt.Errorf("get messages for session %s: %w", sessionID, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]models.Message, len(sess.messages))
	for i, msg := range sess.messages {
		out[i] = cloneMessage(msg)
	}
	return out, nil
}

// List returns summaries of all sessions, most recently started first.
func (s *Store) List() []models.SessionSummary {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	byID := make(map[string]*session, len(s.sessions))
	for id, sess := range s.sessions {
		ids = append(ids, id)
		byID[id] = sess
	}
	s.mu.RUnlock()

	out := make([]models.SessionSummary, 0, len(ids))
	for _, id := range ids {
		sess := byID[id]
		sess.mu.Lock()
		out = append(out, summarize(id, sess))
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

// Delete removes the session and its transcript.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("delete session %s: %w", sessionID, ErrSessionNotFound)
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) lookup(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// validateAppend checks msg against the transcript it would extend. The
// history always contains at least the system message.
func validateAppend(sessionID string, history []models.Message, msg models.Message) error {
	fail := func(reason string) error {
		return &InvariantError{SessionID: sessionID, Role: msg.Role, Reason: reason}
	}

	switch msg.Role {
	case models.RoleSystem:
		return fail("the system prompt is fixed at index 0")

	case models.RoleUser:
		if msg.Content == "" {
			return fail("user message needs content")
		}
		return nil

	case models.RoleAssistant:
		if msg.Content == "" && len(msg.ToolRequests) == 0 {
			return fail("assistant message needs text or tool requests")
		}
		seen := make(map[string]struct{}, len(msg.ToolRequests))
		for _, req := range msg.ToolRequests {
			if req.CallID == "" {
				return fail("tool request without a call ID")
			}
			if req.Name == "" {
				return fail(fmt.Sprintf("tool request %s without a tool name", req.CallID))
			}
			if _, dup := seen[req.CallID]; dup {
				return fail(fmt.Sprintf("duplicate call ID %s within one turn", req.CallID))
			}
			seen[req.CallID] = struct{}{}
		}
		if history[len(history)-1].Role == models.RoleAssistant {
			return fail("an assistant message cannot directly follow another assistant message")
		}
		return nil

	case models.RoleTool:
		pending := pendingRequests(history)
		if pending == nil {
			return fail("no assistant turn is awaiting tool results")
		}
		req, ok := pending[msg.CallID]
		if !ok {
			return fail(fmt.Sprintf("call ID %s does not match a pending tool request", msg.CallID))
		}
		if msg.ToolName != req.Name {
			return fail(fmt.Sprintf("tool name %s does not match the request for call ID %s", msg.ToolName, msg.CallID))
		}
		return nil

	default:
		return fail(fmt.Sprintf("unknown role %q", msg.Role))
	}
}

// pendingRequests returns the unanswered requests of the open assistant
// turn, or nil when no turn is open. A turn stays open while everything
// after its assistant message is a tool result; a user message closes it
// and abandons any remaining requests.
func pendingRequests(history []models.Message) map[string]models.ToolRequest {
	answered := make(map[string]struct{})
	for i := len(history) - 1; i >= 0; i-- {
		switch m := history[i]; m.Role {
		case models.RoleTool:
			answered[m.CallID] = struct{}{}
		case models.RoleAssistant:
			if len(m.ToolRequests) == 0 {
				return nil
			}
			pending := make(map[string]models.ToolRequest, len(m.ToolRequests))
			for _, req := range m.ToolRequests {
				if _, done := answered[req.CallID]; !done {
					pending[req.CallID] = req
				}
			}
			return pending
		default:
			return nil
		}
	}
	return nil
}

// cloneMessage copies the mutable parts of a message so callers cannot
// alter stored history through a snapshot they hold.
func cloneMessage(msg models.Message) models.Message {
	if len(msg.ToolRequests) == 0 {
		return msg
	}
	out := msg
	out.ToolRequests = make([]models.ToolRequest, len(msg.ToolRequests))
	for i, req := range msg.ToolRequests {
		req.Arguments = maps.Clone(req.Arguments)
		out.ToolRequests[i] = req
	}
	return out
}

const previewLen = 80

// summarize builds the listing projection. Caller holds the session lock.
func summarize(sessionID string, sess *session) models.SessionSummary {
	return models.SessionSummary{
		SessionID:    sessionID,
		StartedAt:    sess.startedAt,
		MessageCount: len(sess.messages),
		LastPreview:  lastPreview(sess.messages),
	}
}

// lastPreview returns the beginning of the most recent user or assistant
// text, for session listings.
func lastPreview(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if (m.Role == models.RoleUser || m.Role == models.RoleAssistant) && m.Content != "" {
			runes := []rune(m.Content)
			if len(runes) <= previewLen {
				return m.Content
			}
			return string(runes[:previewLen-3]) + "..."
		}
	}
	return ""
}
