package agent

import (
	"slices"
	"strings"
)

// StopCondition is one row of the diagnostic protocol: when the named
// tool's rendered result reports Field with the value Equals, further
// probing is pointless and the model should narrate what it found.
type StopCondition struct {
	Tool   string
	Field  string
	Equals string
	Reason string
}

// Rules is the declarative protocol the loop consults. Keeping the table
// as data means the loop stays generic; tests substitute their own rules
// for synthetic tool suites.
type Rules struct {
	// StopConditions are evaluated against every rendered tool result.
	// A match forces toolChoice none on the next iteration so the model
	// reports findings instead of probing further down a dead path.
	StopConditions []StopCondition

	// ActionTools are state-changing fixes. A successful run of any of
	// them schedules the verification sub-loop for the end of the turn.
	ActionTools []string

	// VerificationPrompt is injected as a synthetic user message when
	// the verification sub-loop starts.
	VerificationPrompt string

	// VerificationMaxIterations caps the verification sub-loop.
	VerificationMaxIterations int
}

// DefaultRules returns the network-diagnostic protocol: the connectivity
// ladder's short-circuit rows and the fix tools that require verification.
func DefaultRules() *Rules {
	return &Rules{
		StopConditions: []StopCondition{
			{Tool: "check_adapter_status", Field: "connected_count", Equals: "0", Reason: "no adapter is connected"},
			{Tool: "get_ip_config", Field: "has_valid_ip", Equals: "false", Reason: "no valid IP address"},
			{Tool: "get_ip_config", Field: "is_apipa", Equals: "true", Reason: "self-assigned APIPA address"},
			{Tool: "ping_gateway", Field: "reachable", Equals: "false", Reason: "gateway unreachable"},
			{Tool: "ping_dns", Field: "internet_accessible", Equals: "false", Reason: "no internet access"},
			{Tool: "test_dns_resolution", Field: "dns_working", Equals: "false", Reason: "DNS resolution broken"},
		},
		ActionTools: []string{
			"enable_wifi",
			"fix_dell_audio",
			"repair_office365",
			"run_dism_sfc",
			"cleanup_temp_files",
			"kill_process",
		},
		VerificationPrompt: "A state-changing action was applied; verify with `check_adapter_status` then `ping_dns`.",
		VerificationMaxIterations: 3,
	}
}

// IsAction reports whether the tool belongs to the state-changing set.
func (r *Rules) IsAction(tool string) bool {
	return slices.Contains(r.ActionTools, tool)
}

// StopFor returns the first stop condition the rendered result content
// satisfies, or nil. Matching is exact against the "- **field**: value"
// lines the result renderer produces.
func (r *Rules) StopFor(tool, content string) *StopCondition {
	for i := range r.StopConditions {
		sc := &r.StopConditions[i]
		if sc.Tool != tool {
			continue
		}
		if value, ok := fieldValue(content, sc.Field); ok && value == sc.Equals {
			return sc
		}
	}
	return nil
}

// fieldValue extracts a data field from rendered result content.
func fieldValue(content, field string) (string, bool) {
	prefix := "- **" + field + "**: "
	for _, line := range strings.Split(content, "\n") {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}
