package config

// MaskingConfig controls credential scrubbing of raw probe output.
type MaskingConfig struct {
	// Enabled toggles scrubbing. On by default; turn off only when
	// debugging parser issues against raw command output.
	Enabled bool

	// CustomPatterns are user-supplied redaction rules applied after the
	// built-in set.
	CustomPatterns []MaskingPattern
}

// MaskingPattern is one user-supplied redaction rule. Pattern is a Go
// regular expression; Replacement is literal text substituted for the
// whole match.
type MaskingPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MaskingYAMLConfig holds the masking section from YAML. Enabled is a
// pointer so an explicit false can be told apart from an absent key.
type MaskingYAMLConfig struct {
	Enabled        *bool            `yaml:"enabled,omitempty"`
	CustomPatterns []MaskingPattern `yaml:"custom_patterns,omitempty"`
}

// DefaultMaskingConfig returns the built-in masking defaults.
func DefaultMaskingConfig() *MaskingConfig {
	return &MaskingConfig{
		Enabled: true,
	}
}

// resolveMaskingConfig resolves masking configuration from YAML, applying defaults.
func resolveMaskingConfig(y *MaskingYAMLConfig) *MaskingConfig {
	cfg := DefaultMaskingConfig()

	if y == nil {
		return cfg
	}

	if y.Enabled != nil {
		cfg.Enabled = *y.Enabled
	}
	cfg.CustomPatterns = y.CustomPatterns

	return cfg
}
