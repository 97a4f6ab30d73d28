package models

// ProbeResult is the structured outcome of one probe execution.
// Data holds the parsed, machine-checkable fields (the loop's stop
// conditions key off these); RawOutput preserves the command output for
// rendering and debugging. Suggestions are short remediation hints the
// probe derives from what it observed.
type ProbeResult struct {
	Success     bool           `json:"success"`
	Data        map[string]any `json:"data"`
	RawOutput   string         `json:"raw_output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Platform    string         `json:"platform"`
}
