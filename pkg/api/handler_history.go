package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// requireHistory returns the reader or a 503 when persistence is disabled.
func (s *Server) requireHistory() error {
	if s.historyReader == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history is not available")
	}
	return nil
}

// listHistorySessionsHandler handles GET /api/v1/history/sessions.
func (s *Server) listHistorySessionsHandler(c *echo.Context) error {
	if err := s.requireHistory(); err != nil {
		return err
	}

	limit := defaultHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit: must be a positive integer")
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	sessions, err := s.historyReader.ListSessions(c.Request().Context(), limit)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, &HistorySessionsResponse{Sessions: sessions})
}

// getHistorySessionHandler handles GET /api/v1/history/sessions/:id.
func (s *Server) getHistorySessionHandler(c *echo.Context) error {
	if err := s.requireHistory(); err != nil {
		return err
	}
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	record, err := s.historyReader.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, record)
}

// historyMessagesHandler handles GET /api/v1/history/sessions/:id/messages.
func (s *Server) historyMessagesHandler(c *echo.Context) error {
	if err := s.requireHistory(); err != nil {
		return err
	}
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	msgs, err := s.historyReader.GetMessages(c.Request().Context(), sessionID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, &HistoryMessagesResponse{
		SessionID: sessionID,
		Messages:  msgs,
	})
}

// historyToolCallsHandler handles GET /api/v1/history/sessions/:id/tool-calls.
func (s *Server) historyToolCallsHandler(c *echo.Context) error {
	if err := s.requireHistory(); err != nil {
		return err
	}
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	calls, err := s.historyReader.GetToolCalls(c.Request().Context(), sessionID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, &HistoryToolCallsResponse{
		SessionID: sessionID,
		ToolCalls: calls,
	})
}

// historyLlmCallsHandler handles GET /api/v1/history/sessions/:id/llm-calls.
func (s *Server) historyLlmCallsHandler(c *echo.Context) error {
	if err := s.requireHistory(); err != nil {
		return err
	}
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	calls, err := s.historyReader.GetLlmCalls(c.Request().Context(), sessionID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, &HistoryLlmCallsResponse{
		SessionID: sessionID,
		LlmCalls:  calls,
	})
}
