package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/netmedic/netmedic/pkg/config"
	"github.com/netmedic/netmedic/pkg/events"
	"github.com/netmedic/netmedic/pkg/models"
	"github.com/netmedic/netmedic/pkg/session"
	"github.com/netmedic/netmedic/pkg/store"
	"github.com/netmedic/netmedic/pkg/tools"
)

// runnerFunc adapts a function to session.TurnRunner.
type runnerFunc func(ctx context.Context, sessionID, text string, sink events.Sink) error

func (f runnerFunc) Run(ctx context.Context, sessionID, text string, sink events.Sink) error {
	return f(ctx, sessionID, text, sink)
}

// doneRunner completes every turn immediately.
func doneRunner() runnerFunc {
	return func(_ context.Context, _, _ string, sink events.Sink) error {
		sink(events.NewDone("all checks passed", events.TurnStats{Iterations: 1}))
		return nil
	}
}

func newTestServer(t *testing.T, runner session.TurnRunner) *Server {
	t.Helper()

	st := store.New("You are a network diagnostic assistant.", nil)
	mgr := session.NewManager(st, runner, nil)
	t.Cleanup(mgr.Shutdown)

	reg := tools.NewRegistry("linux")
	err := reg.Register(models.ToolDefinition{
		Name:        "check_adapter_status",
		Description: "Lists network adapters and their connection state.",
	}, func(_ context.Context, _ map[string]any) (*models.ProbeResult, error) {
		return &models.ProbeResult{
			Success:  true,
			Data:     map[string]any{"connected_count": 1},
			Platform: "linux",
		}, nil
	})
	if err != nil {
		t.Fatalf("register tool: %v", err)
	}

	cm := events.NewConnectionManager(5 * time.Second)
	return NewServer(&config.Config{}, mgr, reg, cm)
}

// perform routes a request through the server's router.
func perform(s *Server, method, target string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

// createSession starts a session over the API and returns its ID.
func createSession(t *testing.T, s *Server) string {
	t.Helper()
	rec := perform(s, http.MethodPost, "/api/v1/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rec.Code, rec.Body.String())
	}
	var created models.CreateSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return created.SessionID
}
