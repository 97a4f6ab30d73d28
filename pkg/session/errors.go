package session

import (
	"errors"
	"fmt"
)

var (
	// ErrTurnInFlight is returned when a session already has a turn
	// executing; turns within one session are strictly serialized.
	ErrTurnInFlight = errors.New("a turn is already in flight for this session")

	// ErrShuttingDown is returned for submissions after Shutdown began.
	ErrShuttingDown = errors.New("session manager is shutting down")
)

// ValidationError wraps field-specific validation errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
