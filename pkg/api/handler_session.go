package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/netmedic/netmedic/pkg/models"
)

// maxMessageLength caps the user message body; anything larger is almost
// certainly a paste accident, not a diagnostic question.
const maxMessageLength = 100_000

// createSessionHandler handles POST /api/v1/sessions.
func (s *Server) createSessionHandler(c *echo.Context) error {
	summary := s.sessions.StartSession()
	return c.JSON(http.StatusCreated, &models.CreateSessionResponse{
		SessionID: summary.SessionID,
	})
}

// listSessionsHandler handles GET /api/v1/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &models.SessionListResponse{
		Sessions: s.sessions.ListSessions(),
	})
}

// getMessagesHandler handles GET /api/v1/sessions/:id/messages.
func (s *Server) getMessagesHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	msgs, err := s.sessions.GetMessages(sessionID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, &models.MessagesResponse{
		SessionID: sessionID,
		Messages:  msgs,
	})
}

// sendMessageHandler handles POST /api/v1/sessions/:id/messages.
// Submits the user message for async processing; events stream on the
// session's WebSocket channel.
func (s *Server) sendMessageHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	if len(req.Content) > maxMessageLength {
		return echo.NewHTTPError(http.StatusBadRequest, "content exceeds maximum length of 100,000 characters")
	}

	if err := s.sessions.Submit(sessionID, req.Content); err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusAccepted, &models.SendMessageResponse{
		SessionID: sessionID,
		Status:    "accepted",
	})
}

// cancelSessionHandler handles POST /api/v1/sessions/:id/cancel.
func (s *Server) cancelSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}
	if !s.sessions.Has(sessionID) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	cancelled := s.sessions.Cancel(sessionID)
	msg := "no turn in flight"
	if cancelled {
		msg = "turn cancellation requested"
	}

	return c.JSON(http.StatusOK, &CancelResponse{
		SessionID: sessionID,
		Cancelled: cancelled,
		Message:   msg,
	})
}

// deleteSessionHandler handles DELETE /api/v1/sessions/:id.
func (s *Server) deleteSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	if err := s.sessions.DeleteSession(sessionID); err != nil {
		return mapError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// toolsHandler handles GET /api/v1/tools.
func (s *Server) toolsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &ToolsResponse{
		Tools: s.tools.Definitions(),
	})
}
