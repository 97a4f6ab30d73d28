// Package api exposes the diagnostic engine over HTTP: session lifecycle
// and message submission, the live WebSocket event stream, tool listing,
// health, and read access to the recorded history.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/netmedic/netmedic/pkg/config"
	"github.com/netmedic/netmedic/pkg/database"
	"github.com/netmedic/netmedic/pkg/events"
	"github.com/netmedic/netmedic/pkg/history"
	"github.com/netmedic/netmedic/pkg/session"
	"github.com/netmedic/netmedic/pkg/tools"
)

// Server is the HTTP server. Construct with NewServer, wire optional
// collaborators with the setters, then Start.
type Server struct {
	cfg         *config.Config
	sessions    *session.Manager
	tools       *tools.Registry
	connManager *events.ConnectionManager

	// Optional history backend; nil when persistence is disabled.
	dbClient      *database.Client
	historyReader *history.Reader

	echo *echo.Echo
	srv  *http.Server
}

// NewServer creates the API server and builds its routes.
func NewServer(cfg *config.Config, sessions *session.Manager, registry *tools.Registry, connManager *events.ConnectionManager) *Server {
	s := &Server{
		cfg:         cfg,
		sessions:    sessions,
		tools:       registry,
		connManager: connManager,
	}
	s.echo = s.newRouter()
	// The http.Server exists before Start so Shutdown is safe to call
	// from another goroutine at any point in the lifecycle.
	s.srv = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetHistory wires the optional Postgres-backed history endpoints.
// Without it, history routes answer 503 and health reports the store
// as disabled.
func (s *Server) SetHistory(db *database.Client, reader *history.Reader) {
	s.dbClient = db
	s.historyReader = reader
}

// Start runs the server on addr. Blocks until Shutdown or listener error.
func (s *Server) Start(addr string) error {
	s.srv.Addr = addr
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) newRouter() *echo.Echo {
	e := echo.New()
	e.Use(securityHeaders())

	e.GET("/health", s.healthHandler)
	e.GET("/ws", s.wsHandler)

	v1 := e.Group("/api/v1")
	v1.POST("/sessions", s.createSessionHandler)
	v1.GET("/sessions", s.listSessionsHandler)
	v1.GET("/sessions/:id/messages", s.getMessagesHandler)
	v1.POST("/sessions/:id/messages", s.sendMessageHandler)
	v1.POST("/sessions/:id/cancel", s.cancelSessionHandler)
	v1.DELETE("/sessions/:id", s.deleteSessionHandler)
	v1.GET("/tools", s.toolsHandler)

	v1.GET("/history/sessions", s.listHistorySessionsHandler)
	v1.GET("/history/sessions/:id", s.getHistorySessionHandler)
	v1.GET("/history/sessions/:id/messages", s.historyMessagesHandler)
	v1.GET("/history/sessions/:id/tool-calls", s.historyToolCallsHandler)
	v1.GET("/history/sessions/:id/llm-calls", s.historyLlmCallsHandler)

	return e
}
