package config

// Config is the umbrella configuration object returned by Initialize()
// and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// ListenAddr is the HTTP/WS bind address.
	ListenAddr string

	// AllowedWSOrigins are additional WebSocket origin patterns accepted
	// on top of the listen host.
	AllowedWSOrigins []string

	// SystemPrompt is the resolved system prompt text (built-in default or
	// the contents of system_prompt_path).
	SystemPrompt string

	// Loop, LLM, Probes, Masking, Retention are the resolved section configs.
	Loop      *LoopConfig
	LLM       *LLMConfig
	Probes    *ProbesConfig
	Masking   *MaskingConfig
	Retention *RetentionConfig

	// ProviderRegistry holds the merged built-in + user provider entries.
	ProviderRegistry *ProviderRegistry
}

// Initialize is defined in loader.go

// Stats contains statistics about loaded configuration
type Stats struct {
	Providers int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.ProviderRegistry != nil {
		s.Providers = c.ProviderRegistry.Len()
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetProvider retrieves a provider configuration by name.
// This is a convenience method that wraps ProviderRegistry.Get().
func (c *Config) GetProvider(name string) (*ProviderConfig, error) {
	return c.ProviderRegistry.Get(name)
}

// ProviderOrder returns provider names in fallback order: the explicit
// llm.provider_priority list when configured, otherwise all registry
// entries ordered by their Priority field.
func (c *Config) ProviderOrder() []string {
	if len(c.LLM.ProviderPriority) > 0 {
		order := make([]string, len(c.LLM.ProviderPriority))
		copy(order, c.LLM.ProviderPriority)
		return order
	}
	return c.ProviderRegistry.Names()
}
