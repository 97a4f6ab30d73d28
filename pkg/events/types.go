// Package events provides the typed event stream of a diagnostic turn and
// real-time delivery to WebSocket subscribers.
//
// Every turn emits a causally ordered sequence of events: status updates
// while the model thinks, content as it narrates, tool_call/tool_result
// pairs around each probe, and a terminal done or error. Events are
// ephemeral; transcript persistence is the history recorder's concern.
package events

// Event type discriminators, carried in the wire envelope's "type" field.
const (
	TypeStatus     = "status"
	TypeContent    = "content"
	TypeToolCall   = "tool_call"
	TypeToolResult = "tool_result"
	TypeDone       = "done"
	TypeError      = "error"
)

// Status phases reported while a turn is in flight.
const (
	PhaseThinking  = "thinking"
	PhaseExecuting = "executing"
	PhaseVerifying = "verifying"
	PhaseWarning   = "warning"
)

// SessionChannel returns the subscription channel name for one session's
// events. Format: "session:{session_id}".
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// ClientMessage is the JSON structure for client → server WebSocket
// messages.
type ClientMessage struct {
	Action  string `json:"action"`            // "subscribe", "unsubscribe", "ping"
	Channel string `json:"channel,omitempty"` // e.g. "session:abc-123"
}
