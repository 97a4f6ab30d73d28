package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/netmedic/netmedic/pkg/history"
	"github.com/netmedic/netmedic/pkg/session"
	"github.com/netmedic/netmedic/pkg/store"
)

// mapError maps engine errors to HTTP error responses.
func mapError(err error) *echo.HTTPError {
	var validErr *session.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, history.ErrSessionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if errors.Is(err, session.ErrTurnInFlight) {
		return echo.NewHTTPError(http.StatusConflict, "a turn is already in flight for this session")
	}
	if errors.Is(err, session.ErrShuttingDown) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service is shutting down")
	}

	// Unexpected error
	slog.Error("Unexpected API error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
