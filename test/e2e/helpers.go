package e2e

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netmedic/netmedic/pkg/events"
	"github.com/netmedic/netmedic/pkg/llm"
)

// eventTypes flattens an event stream into its type sequence.
func eventTypes(evs []events.Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

// toolCallNames returns the tool names announced by tool_call events, in
// emission order.
func toolCallNames(evs []events.Event) []string {
	var out []string
	for _, ev := range evs {
		if ev.Type == events.TypeToolCall {
			out = append(out, ev.Data.(events.ToolCallPayload).Name)
		}
	}
	return out
}

// toolResultTools returns the tool names carried by tool_result events,
// in emission order.
func toolResultTools(evs []events.Event) []string {
	var out []string
	for _, ev := range evs {
		if ev.Type == events.TypeToolResult {
			out = append(out, ev.Data.(events.ToolResultPayload).Tool)
		}
	}
	return out
}

// contentTexts returns the text of every content event, in order.
func contentTexts(evs []events.Event) []string {
	var out []string
	for _, ev := range evs {
		if ev.Type == events.TypeContent {
			out = append(out, ev.Data.(events.ContentPayload).Text)
		}
	}
	return out
}

// requireDone asserts the stream is non-empty and terminates in a done
// event, and returns its payload.
func requireDone(t *testing.T, evs []events.Event) events.DonePayload {
	t.Helper()
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	require.Equal(t, events.TypeDone, last.Type, "terminal event should be done, got %v", eventTypes(evs))
	return last.Data.(events.DonePayload)
}

// requireErrorEvent asserts the stream is non-empty and terminates in an
// error event, and returns its payload.
func requireErrorEvent(t *testing.T, evs []events.Event) events.ErrorPayload {
	t.Helper()
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	require.Equal(t, events.TypeError, last.Type, "terminal event should be error, got %v", eventTypes(evs))
	return last.Data.(events.ErrorPayload)
}

// findStatus returns the index of the first status event with the given
// phase, or -1.
func findStatus(evs []events.Event, phase string) int {
	for i, ev := range evs {
		if ev.Type != events.TypeStatus {
			continue
		}
		if ev.Data.(events.StatusPayload).Phase == phase {
			return i
		}
	}
	return -1
}

// findStatusMessage returns the index of the first status event whose
// message contains substr, or -1.
func findStatusMessage(evs []events.Event, substr string) int {
	for i, ev := range evs {
		if ev.Type != events.TypeStatus {
			continue
		}
		if strings.Contains(ev.Data.(events.StatusPayload).Message, substr) {
			return i
		}
	}
	return -1
}

// findToolCall returns the index of the first tool_call event for the
// named tool at or after from, or -1.
func findToolCall(evs []events.Event, name string, from int) int {
	for i := from; i < len(evs); i++ {
		if evs[i].Type != events.TypeToolCall {
			continue
		}
		if evs[i].Data.(events.ToolCallPayload).Name == name {
			return i
		}
	}
	return -1
}

// toolChoiceModes flattens captured model requests into their tool-choice
// mode sequence. An empty mode is reported as auto, matching how
// providers interpret the zero value.
func toolChoiceModes(requests []llm.Request) []string {
	out := make([]string, len(requests))
	for i, req := range requests {
		mode := req.ToolChoice.Mode
		if mode == "" {
			mode = llm.ToolChoiceAuto
		}
		out[i] = mode
	}
	return out
}
