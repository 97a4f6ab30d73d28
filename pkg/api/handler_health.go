package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/netmedic/netmedic/pkg/database"
	"github.com/netmedic/netmedic/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
	healthStatusDisabled  = "disabled"
)

// healthHandler handles GET /health.
// Returns a minimal, safe response suitable for unauthenticated access.
// Only the engine's own components are checked; LLM providers are
// excluded so a down cloud API cannot make the process look unhealthy.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if s.dbClient != nil {
		if _, err := database.Health(reqCtx, s.dbClient.DB()); err != nil {
			status = healthStatusUnhealthy
			checks["history"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
		} else {
			checks["history"] = HealthCheck{Status: healthStatusHealthy}
		}
	} else {
		checks["history"] = HealthCheck{Status: healthStatusDisabled}
	}

	resp := &HealthResponse{
		Status:  status,
		Version: version.GitCommit,
		Checks:  checks,
	}
	if s.cfg != nil {
		resp.Configuration.LLMProviders = s.cfg.Stats().Providers
	}
	if s.tools != nil {
		resp.Configuration.Tools = s.tools.Len()
	}
	if s.sessions != nil {
		resp.ActiveTurns = s.sessions.ActiveTurns()
	}
	if s.connManager != nil {
		resp.Connections = s.connManager.ActiveConnections()
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, resp)
}
