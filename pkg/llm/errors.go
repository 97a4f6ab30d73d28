package llm

import (
	"errors"
	"fmt"
)

// ErrNoProvider is returned when no configured provider passes its
// availability probe.
var ErrNoProvider = errors.New("no llm provider available")

// TransportError is a network-level or server-side failure: the request
// never produced a usable response. The adapter may try one fallback
// provider; past that the turn aborts.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport error from %s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError checks if an error is a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ProtocolError means the provider answered but violated the tool-choice
// contract or returned unusable content. Never retried across providers;
// the loop's forcing policy decides recovery.
type ProtocolError struct {
	Provider string
	Reason   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("llm protocol error from %s: %s", e.Provider, e.Reason)
}

// IsProtocolError checks if an error is a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
