package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/netmedic/netmedic/pkg/models"
)

// maxValueLen caps each rendered data value. The model only needs enough
// to decide; full output lives in the probe's raw capture.
const maxValueLen = 200

// RenderResult converts a ProbeResult into the model-facing content
// string. The format is deterministic: keys are sorted, values are
// truncated, and the field lines are stable enough for exact matching
// downstream.
func RenderResult(toolName string, res *models.ProbeResult) string {
	var b strings.Builder

	status := "Failure"
	if res.Success {
		status = "Success"
	}
	fmt.Fprintf(&b, "## %s Results\n", toolName)
	fmt.Fprintf(&b, "**Status**: %s\n", status)
	fmt.Fprintf(&b, "**Platform**: %s\n", res.Platform)
	if res.Error != "" {
		fmt.Fprintf(&b, "**Error**: %s\n", truncateValue(res.Error))
	}

	b.WriteString("\n### Data\n")
	keys := make([]string, 0, len(res.Data))
	for k := range res.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- **%s**: %s\n", k, truncateValue(formatValue(res.Data[k])))
	}

	if len(res.Suggestions) > 0 {
		b.WriteString("\n### Suggestions\n")
		for _, s := range res.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	return b.String()
}

// formatValue renders scalars directly and everything else as compact JSON.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool, int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

func truncateValue(s string) string {
	runes := []rune(s)
	if len(runes) <= maxValueLen {
		return s
	}
	return string(runes[:maxValueLen-3]) + "..."
}
