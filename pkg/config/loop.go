package config

import "time"

// LoopConfig controls the tool-orchestration loop that drives a diagnostic turn.
type LoopConfig struct {
	// MaxToolIterations is the maximum number of LLM round-trips per turn.
	// When the cap is hit with tool calls still outstanding, the loop makes
	// one final text-only summary call.
	MaxToolIterations int

	// ForceToolOnFirstTurn forces a tool call on the first user turn of a
	// session so the model gathers evidence before answering.
	ForceToolOnFirstTurn bool

	// ParallelToolFanOut is the maximum number of tool calls executed
	// concurrently within a single iteration.
	ParallelToolFanOut int

	// TurnSoftCeilingMs is the wall-clock budget for a whole turn. Once
	// exceeded the loop stops iterating and asks for a summary.
	TurnSoftCeilingMs int

	// VerificationEnabled re-runs read-only checks after a successful
	// state-changing action to confirm the fix took effect.
	VerificationEnabled bool
}

// DefaultLoopConfig returns the built-in loop defaults.
func DefaultLoopConfig() *LoopConfig {
	return &LoopConfig{
		MaxToolIterations:    7,
		ForceToolOnFirstTurn: true,
		ParallelToolFanOut:   4,
		TurnSoftCeilingMs:    300000,
		VerificationEnabled:  true,
	}
}

// TurnSoftCeiling returns the per-turn wall-clock budget as a duration.
func (c *LoopConfig) TurnSoftCeiling() time.Duration {
	return time.Duration(c.TurnSoftCeilingMs) * time.Millisecond
}
