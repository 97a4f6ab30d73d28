package config

import "time"

// ProbesConfig controls how diagnostic probes execute on the host.
type ProbesConfig struct {
	// DefaultTimeoutMs bounds a single probe invocation (command execution
	// plus output parsing).
	DefaultTimeoutMs int `yaml:"default_timeout_ms"`

	// TempFileMinAgeSeconds is the minimum file age before cleanup_temp_files
	// will delete a candidate. Files younger than this are always kept.
	TempFileMinAgeSeconds int `yaml:"temp_file_min_age_seconds"`

	// TempFileRoots overrides the platform-default directories scanned by
	// cleanup_temp_files. Deletion never escapes these roots.
	TempFileRoots []string `yaml:"temp_file_roots"`
}

// DefaultProbesConfig returns the built-in probe defaults.
func DefaultProbesConfig() *ProbesConfig {
	return &ProbesConfig{
		DefaultTimeoutMs:      15000,
		TempFileMinAgeSeconds: 3600,
	}
}

// DefaultTimeout returns the probe timeout as a duration.
func (c *ProbesConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMs) * time.Millisecond
}

// TempFileMinAge returns the cleanup minimum age as a duration.
func (c *ProbesConfig) TempFileMinAge() time.Duration {
	return time.Duration(c.TempFileMinAgeSeconds) * time.Second
}
