package events

import (
	"encoding/json"
	"log/slog"
)

// Event is the wire envelope for every turn event: {type, data}. Data
// holds exactly one of the typed payload structs below, matching Type.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Marshal renders the envelope as JSON. A payload that cannot be
// marshaled is a programming error; it is logged and reduced to a bare
// envelope rather than silently dropped.
func (e Event) Marshal() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("Failed to marshal event payload", "type", e.Type, "error", err)
		data, _ = json.Marshal(Event{Type: e.Type})
	}
	return data
}

// Sink receives the events of one turn in causal order. Implementations
// must not block indefinitely; a slow sink stalls the turn that feeds it.
type Sink func(Event)

// NopSink discards every event.
func NopSink(Event) {}

// StatusPayload reports loop progress: which phase the turn is in and how
// far along the iteration budget it is.
type StatusPayload struct {
	Phase     string `json:"phase"`
	Iteration int    `json:"iteration"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
}

// ContentPayload carries assistant text.
type ContentPayload struct {
	Text string `json:"text"`
}

// ToolCallPayload announces a tool dispatch.
type ToolCallPayload struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResultPayload carries the rendered outcome of one tool dispatch.
type ToolResultPayload struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Content string `json:"content"`
}

// TurnStats aggregates what a completed turn consumed.
type TurnStats struct {
	Iterations   int   `json:"iterations"`
	ToolCount    int   `json:"tool_count"`
	DurationMs   int64 `json:"duration_ms"`
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	Verified     bool  `json:"verified"`
}

// DonePayload is the terminal event of a successful turn.
type DonePayload struct {
	FinalText string    `json:"final_text"`
	Stats     TurnStats `json:"stats"`
}

// ErrorPayload is the terminal event of a failed or cancelled turn.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Constructors keep emission sites compact and the type/payload pairing
// in one place.

func NewStatus(phase string, iteration, total int, message string) Event {
	return Event{Type: TypeStatus, Data: StatusPayload{
		Phase:     phase,
		Iteration: iteration,
		Total:     total,
		Message:   message,
	}}
}

func NewContent(text string) Event {
	return Event{Type: TypeContent, Data: ContentPayload{Text: text}}
}

func NewToolCall(name string, arguments map[string]any) Event {
	return Event{Type: TypeToolCall, Data: ToolCallPayload{Name: name, Arguments: arguments}}
}

func NewToolResult(tool string, success bool, content string) Event {
	return Event{Type: TypeToolResult, Data: ToolResultPayload{
		Tool:    tool,
		Success: success,
		Content: content,
	}}
}

func NewDone(finalText string, stats TurnStats) Event {
	return Event{Type: TypeDone, Data: DonePayload{FinalText: finalText, Stats: stats}}
}

func NewError(message string) Event {
	return Event{Type: TypeError, Data: ErrorPayload{Message: message}}
}
