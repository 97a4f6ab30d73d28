package config

import "time"

// RetentionConfig controls history retention and cleanup behavior.
// It only takes effect when a history database is configured.
type RetentionConfig struct {
	// SessionRetentionDays is how many days to keep recorded sessions
	// before the cleanup loop deletes them (cascading to their messages,
	// tool calls, and LLM calls).
	SessionRetentionDays int `yaml:"session_retention_days"`

	// CleanupIntervalHours is how often the cleanup loop runs.
	CleanupIntervalHours int `yaml:"cleanup_interval_hours"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		SessionRetentionDays: 90,
		CleanupIntervalHours: 12,
	}
}

// SessionMaxAge returns the retention window as a duration.
func (c *RetentionConfig) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionRetentionDays) * 24 * time.Hour
}

// CleanupInterval returns the cleanup loop period as a duration.
func (c *RetentionConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalHours) * time.Hour
}
