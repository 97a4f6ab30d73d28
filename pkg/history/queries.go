package history

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/netmedic/netmedic/pkg/database"
)

// ErrSessionNotFound is returned for history lookups of unknown sessions.
var ErrSessionNotFound = errors.New("session not found in history")

// SessionRecord is one recorded session in listings and lookups.
type SessionRecord struct {
	ID           string    `json:"session_id"`
	StartedAt    time.Time `json:"started_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	MessageCount int       `json:"message_count"`
}

// MessageRecord is one transcript entry as recorded.
type MessageRecord struct {
	Position     int             `json:"position"`
	Role         string          `json:"role"`
	Content      string          `json:"content,omitempty"`
	ToolRequests json.RawMessage `json:"tool_requests,omitempty"`
	CallID       string          `json:"call_id,omitempty"`
	ToolName     string          `json:"tool_name,omitempty"`
	Success      *bool           `json:"success,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ToolCallRecord is one tool execution as observed by the loop.
type ToolCallRecord struct {
	ToolName      string          `json:"tool_name"`
	Arguments     json.RawMessage `json:"arguments,omitempty"`
	ResultSummary string          `json:"result_summary"`
	DurationMs    int64           `json:"duration_ms"`
	Success       bool            `json:"success"`
	CreatedAt     time.Time       `json:"created_at"`
}

// LlmCallRecord is one provider round-trip as observed by the adapter.
type LlmCallRecord struct {
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	DurationMs int64     `json:"duration_ms"`
	TokensIn   int       `json:"tokens_in"`
	TokensOut  int       `json:"tokens_out"`
	CreatedAt  time.Time `json:"created_at"`
}

// Reader exposes the recorded history for the REST endpoints.
type Reader struct {
	db *stdsql.DB
}

// NewReader creates a reader over the history database.
func NewReader(client *database.Client) *Reader {
	return &Reader{db: client.DB()}
}

// ListSessions returns recorded sessions, most recently active first.
func (r *Reader) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.started_at, s.last_active_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		FROM sessions s
		ORDER BY s.last_active_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.LastActiveAt, &rec.MessageCount); err != nil {
			return nil, fmt.Errorf("scan history session: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSession returns one recorded session.
func (r *Reader) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	var rec SessionRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.started_at, s.last_active_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		FROM sessions s
		WHERE s.id = $1`,
		sessionID,
	).Scan(&rec.ID, &rec.StartedAt, &rec.LastActiveAt, &rec.MessageCount)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, fmt.Errorf("get history session %s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get history session %s: %w", sessionID, err)
	}
	return &rec, nil
}

// GetMessages returns the recorded transcript in position order.
func (r *Reader) GetMessages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	if err := r.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT position, role, content, tool_requests, call_id, tool_name, success, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list history messages: %w", err)
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var (
			rec          MessageRecord
			toolRequests []byte
			callID       stdsql.NullString
			toolName     stdsql.NullString
			success      stdsql.NullBool
		)
		if err := rows.Scan(&rec.Position, &rec.Role, &rec.Content, &toolRequests, &callID, &toolName, &success, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history message: %w", err)
		}
		rec.ToolRequests = toolRequests
		rec.CallID = callID.String
		rec.ToolName = toolName.String
		if success.Valid {
			rec.Success = &success.Bool
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetToolCalls returns recorded tool executions in call order.
func (r *Reader) GetToolCalls(ctx context.Context, sessionID string) ([]ToolCallRecord, error) {
	if err := r.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT tool_name, arguments, result_summary, duration_ms, success, created_at
		FROM tool_calls
		WHERE session_id = $1
		ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list history tool calls: %w", err)
	}
	defer rows.Close()

	var out []ToolCallRecord
	for rows.Next() {
		var (
			rec       ToolCallRecord
			arguments []byte
		)
		if err := rows.Scan(&rec.ToolName, &arguments, &rec.ResultSummary, &rec.DurationMs, &rec.Success, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history tool call: %w", err)
		}
		rec.Arguments = arguments
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetLlmCalls returns recorded provider round-trips in call order.
func (r *Reader) GetLlmCalls(ctx context.Context, sessionID string) ([]LlmCallRecord, error) {
	if err := r.requireSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT provider, model, duration_ms, tokens_in, tokens_out, created_at
		FROM llm_calls
		WHERE session_id = $1
		ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list history llm calls: %w", err)
	}
	defer rows.Close()

	var out []LlmCallRecord
	for rows.Next() {
		var rec LlmCallRecord
		if err := rows.Scan(&rec.Provider, &rec.Model, &rec.DurationMs, &rec.TokensIn, &rec.TokensOut, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history llm call: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Reader) requireSession(ctx context.Context, sessionID string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`,
		sessionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check history session %s: %w", sessionID, err)
	}
	if !exists {
		return fmt.Errorf("history session %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}
