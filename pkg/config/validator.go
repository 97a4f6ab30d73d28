package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	// Validate in order: system → loop → probes → masking → retention →
	// providers → llm. Provider entries are validated before the priority
	// list that references them

	if err := v.validateSystem(); err != nil {
		return fmt.Errorf("system validation failed: %w", err)
	}

	if err := v.validateLoop(); err != nil {
		return fmt.Errorf("loop validation failed: %w", err)
	}

	if err := v.validateProbes(); err != nil {
		return fmt.Errorf("probe validation failed: %w", err)
	}

	if err := v.validateMasking(); err != nil {
		return fmt.Errorf("masking validation failed: %w", err)
	}

	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}

	if err := v.validateProviders(); err != nil {
		return fmt.Errorf("provider validation failed: %w", err)
	}

	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("llm validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateSystem() error {
	if v.cfg.ListenAddr == "" {
		return NewValidationError("system", "", "listen_addr", fmt.Errorf("%w: listen address required", ErrMissingRequiredField))
	}
	if v.cfg.SystemPrompt == "" {
		return NewValidationError("system", "", "system_prompt_path", fmt.Errorf("%w: system prompt must not be empty", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateLoop() error {
	loop := v.cfg.Loop

	if loop.MaxToolIterations < 1 {
		return NewValidationError("loop", "", "max_tool_iterations", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if loop.ParallelToolFanOut < 1 {
		return NewValidationError("loop", "", "parallel_tool_fan_out", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if loop.TurnSoftCeilingMs < 1 {
		return NewValidationError("loop", "", "turn_soft_ceiling_ms", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}

	return nil
}

func (v *ConfigValidator) validateProbes() error {
	probes := v.cfg.Probes

	if probes.DefaultTimeoutMs < 1 {
		return NewValidationError("probes", "", "default_timeout_ms", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if probes.TempFileMinAgeSeconds < 0 {
		return NewValidationError("probes", "", "temp_file_min_age_seconds", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}

	// Relative cleanup roots would depend on the working directory, which is
	// unsafe for a tool that deletes files
	for _, root := range probes.TempFileRoots {
		if !filepath.IsAbs(root) {
			return NewValidationError("probes", "", "temp_file_roots", fmt.Errorf("%w: root %q must be an absolute path", ErrInvalidValue, root))
		}
	}

	return nil
}

func (v *ConfigValidator) validateMasking() error {
	for _, p := range v.cfg.Masking.CustomPatterns {
		if p.Name == "" {
			return NewValidationError("masking", "", "custom_patterns", fmt.Errorf("%w: pattern name required", ErrMissingRequiredField))
		}
		if p.Pattern == "" {
			return NewValidationError("masking", p.Name, "pattern", fmt.Errorf("%w: pattern expression required", ErrMissingRequiredField))
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return NewValidationError("masking", p.Name, "pattern", fmt.Errorf("%w: %v", ErrInvalidValue, err))
		}
	}
	return nil
}

func (v *ConfigValidator) validateRetention() error {
	ret := v.cfg.Retention

	if ret.SessionRetentionDays < 1 {
		return NewValidationError("retention", "", "session_retention_days", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if ret.CleanupIntervalHours < 1 {
		return NewValidationError("retention", "", "cleanup_interval_hours", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}

	return nil
}

func (v *ConfigValidator) validateProviders() error {
	for name, provider := range v.cfg.ProviderRegistry.GetAll() {
		// Validate provider type
		if !provider.Type.IsValid() {
			return NewValidationError("provider", name, "type", fmt.Errorf("%w: invalid provider type: %s", ErrInvalidValue, provider.Type))
		}

		// Validate model is not empty
		if provider.Model == "" {
			return NewValidationError("provider", name, "model", fmt.Errorf("%w: model required", ErrMissingRequiredField))
		}

		// Cloud providers cannot run without credentials
		if provider.APIKeyEnv == "" && (provider.Type == ProviderTypeOpenAI || provider.Type == ProviderTypeAnthropic) {
			return NewValidationError("provider", name, "api_key_env", fmt.Errorf("%w: api_key_env required for %s providers", ErrMissingRequiredField, provider.Type))
		}

		// Validate API key environment variable is set (if specified)
		if provider.APIKeyEnv != "" {
			if value := os.Getenv(provider.APIKeyEnv); value == "" {
				return NewValidationError("provider", name, "api_key_env", fmt.Errorf("environment variable %s is not set", provider.APIKeyEnv))
			}
		}

		// Validate sidecar settings (local servers only)
		if provider.Sidecar != nil {
			if provider.Type != ProviderTypeLocal {
				return NewValidationError("provider", name, "sidecar", fmt.Errorf("%w: sidecar only valid for local providers", ErrInvalidValue))
			}
			if provider.Sidecar.Command == "" {
				return NewValidationError("provider", name, "sidecar.command", fmt.Errorf("%w: command required", ErrMissingRequiredField))
			}
		}

		if provider.Priority < 0 {
			return NewValidationError("provider", name, "priority", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
		}
	}

	return nil
}

func (v *ConfigValidator) validateLLM() error {
	llm := v.cfg.LLM

	if llm.RequestTimeoutMs < 1 {
		return NewValidationError("llm", "", "request_timeout_ms", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}

	// Every name in the explicit priority list must resolve to a provider
	seen := make(map[string]bool, len(llm.ProviderPriority))
	for _, name := range llm.ProviderPriority {
		if !v.cfg.ProviderRegistry.Has(name) {
			return NewValidationError("llm", "", "provider_priority", fmt.Errorf("%w: provider '%s' not found", ErrInvalidReference, name))
		}
		if seen[name] {
			return NewValidationError("llm", "", "provider_priority", fmt.Errorf("%w: provider '%s' listed twice", ErrInvalidReference, name))
		}
		seen[name] = true
	}

	return nil
}
