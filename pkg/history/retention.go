package history

import (
	"context"
	stdsql "database/sql"
	"log/slog"
	"time"

	"github.com/netmedic/netmedic/pkg/config"
	"github.com/netmedic/netmedic/pkg/database"
)

// RetentionService periodically deletes recorded sessions past the
// retention window. Child rows cascade away with the session.
//
// All operations are idempotent and safe to run from multiple replicas.
type RetentionService struct {
	retention *config.RetentionConfig
	db        *stdsql.DB

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetentionService creates a new retention service.
func NewRetentionService(cfg *config.RetentionConfig, client *database.Client) *RetentionService {
	return &RetentionService{
		retention: cfg,
		db:        client.DB(),
	}
}

// Start launches the background cleanup loop.
func (s *RetentionService) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("History retention started",
		"session_retention_days", s.retention.SessionRetentionDays,
		"interval", s.retention.CleanupInterval())
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *RetentionService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("History retention stopped")
}

func (s *RetentionService) run(ctx context.Context) {
	defer close(s.done)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.retention.CleanupInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *RetentionService) runOnce(ctx context.Context) {
	count, err := s.deleteExpiredSessions(ctx)
	if err != nil {
		slog.Error("Retention: session cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted expired sessions", "count", count)
	}
}

func (s *RetentionService) deleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE last_active_at < now() - make_interval(days => $1)`,
		s.retention.SessionRetentionDays,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
