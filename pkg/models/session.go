package models

import "time"

// SessionSummary is the listing projection of a session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	StartedAt    time.Time `json:"started_at"`
	MessageCount int       `json:"message_count"`
	LastPreview  string    `json:"last_preview,omitempty"`
}

// SendMessageRequest contains fields for submitting a user turn.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse acknowledges an accepted turn.
type SendMessageResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// CreateSessionResponse returns the ID of a freshly started session.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// SessionListResponse contains the session summaries.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// MessagesResponse contains a session's message snapshot.
type MessagesResponse struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}
