// Package history persists session transcripts and call analytics to
// PostgreSQL. Recording is best-effort: failures are logged and never
// reach the diagnostic turn.
package history

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/netmedic/netmedic/pkg/database"
	"github.com/netmedic/netmedic/pkg/models"
)

const (
	// writeQueueSize bounds buffered writes. When the queue is full new
	// records are dropped rather than blocking the turn.
	writeQueueSize = 256

	// writeTimeout bounds a single database write.
	writeTimeout = 5 * time.Second
)

// Recorder consumes store hooks and loop observers and writes them to the
// history database from a single background goroutine. Hooks fire on the
// turn's goroutine while locks are held, so writes must never block there.
type Recorder struct {
	db    *stdsql.DB
	queue chan recorderOp
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

type recorderOp struct {
	name string
	exec func(ctx context.Context, db *stdsql.DB) error
}

// NewRecorder creates a recorder and starts its writer goroutine.
func NewRecorder(client *database.Client) *Recorder {
	r := &Recorder{
		db:    client.DB(),
		queue: make(chan recorderOp, writeQueueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go r.writer()
	return r
}

// Close drains queued writes and stops the writer. Call after the session
// facade has shut down so no new records arrive.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.quit) })
	<-r.done
}

// OnMessage implements the store's message hook.
func (r *Recorder) OnMessage(sessionID string, msg models.Message, position int) {
	r.enqueue(recorderOp{
		name: "message",
		exec: func(ctx context.Context, db *stdsql.DB) error {
			if err := touchSession(ctx, db, sessionID); err != nil {
				return err
			}

			var toolRequests []byte
			if len(msg.ToolRequests) > 0 {
				b, err := json.Marshal(msg.ToolRequests)
				if err != nil {
					return fmt.Errorf("marshal tool requests: %w", err)
				}
				toolRequests = b
			}

			// Success only means anything on tool messages
			var success any
			if msg.Role == models.RoleTool {
				success = msg.Success
			}

			_, err := db.ExecContext(ctx, `
				INSERT INTO messages (session_id, position, role, content, tool_requests, call_id, tool_name, success, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (session_id, position) DO NOTHING`,
				sessionID, position, string(msg.Role), msg.Content,
				toolRequests, nullable(msg.CallID), nullable(msg.ToolName), success, msg.Timestamp,
			)
			return err
		},
	})
}

// OnToolCall implements the loop's tool observer.
func (r *Recorder) OnToolCall(sessionID, toolName string, args map[string]any, resultSummary string, durationMs int64, success bool) {
	r.enqueue(recorderOp{
		name: "tool_call",
		exec: func(ctx context.Context, db *stdsql.DB) error {
			if err := touchSession(ctx, db, sessionID); err != nil {
				return err
			}

			var arguments []byte
			if len(args) > 0 {
				b, err := json.Marshal(args)
				if err != nil {
					return fmt.Errorf("marshal arguments: %w", err)
				}
				arguments = b
			}

			_, err := db.ExecContext(ctx, `
				INSERT INTO tool_calls (session_id, tool_name, arguments, result_summary, duration_ms, success)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				sessionID, toolName, arguments, resultSummary, durationMs, success,
			)
			return err
		},
	})
}

// OnLlmCall implements the adapter's call observer.
func (r *Recorder) OnLlmCall(sessionID, provider, model string, duration time.Duration, tokensIn, tokensOut int) {
	durationMs := duration.Milliseconds()
	r.enqueue(recorderOp{
		name: "llm_call",
		exec: func(ctx context.Context, db *stdsql.DB) error {
			if err := touchSession(ctx, db, sessionID); err != nil {
				return err
			}

			_, err := db.ExecContext(ctx, `
				INSERT INTO llm_calls (session_id, provider, model, duration_ms, tokens_in, tokens_out)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				sessionID, provider, model, durationMs, tokensIn, tokensOut,
			)
			return err
		},
	})
}

func (r *Recorder) enqueue(op recorderOp) {
	select {
	case r.queue <- op:
	default:
		slog.Warn("History queue full, dropping record", "op", op.name)
	}
}

func (r *Recorder) writer() {
	defer close(r.done)
	for {
		select {
		case op := <-r.queue:
			r.apply(op)
		case <-r.quit:
			// Drain whatever is already queued, then exit
			for {
				select {
				case op := <-r.queue:
					r.apply(op)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) apply(op recorderOp) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := op.exec(ctx, r.db); err != nil {
		slog.Error("History write failed", "op", op.name, "error", err)
	}
}

// touchSession ensures the session row exists and bumps its activity time.
func touchSession(ctx context.Context, db *stdsql.DB, sessionID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (id) VALUES ($1)
		ON CONFLICT (id) DO UPDATE SET last_active_at = now()`,
		sessionID,
	)
	return err
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
