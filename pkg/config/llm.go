package config

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// LLMConfig holds settings shared by every LLM provider.
type LLMConfig struct {
	// RequestTimeoutMs caps a single chat completion round-trip.
	RequestTimeoutMs int `yaml:"request_timeout_ms"`

	// ProviderPriority is the explicit fallback order by provider name.
	// When empty, providers are ordered by their Priority field (ascending),
	// ties broken by name.
	ProviderPriority []string `yaml:"provider_priority"`
}

// DefaultLLMConfig returns the built-in LLM defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		RequestTimeoutMs: 120000,
	}
}

// RequestTimeout returns the chat completion timeout as a duration.
func (c *LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// ProviderType identifies the wire protocol and SDK used for a provider.
type ProviderType string

const (
	// ProviderTypeOpenAI is the hosted OpenAI chat completions API.
	ProviderTypeOpenAI ProviderType = "openai"

	// ProviderTypeLocal is an OpenAI-compatible local server (Ollama,
	// llama.cpp, LM Studio), optionally managed as a sidecar process.
	ProviderTypeLocal ProviderType = "local"

	// ProviderTypeAnthropic is the Anthropic Messages API.
	ProviderTypeAnthropic ProviderType = "anthropic"
)

// IsValid checks if the provider type is a recognized value
func (t ProviderType) IsValid() bool {
	switch t {
	case ProviderTypeOpenAI,
		ProviderTypeLocal,
		ProviderTypeAnthropic:
		return true
	default:
		return false
	}
}

// ProviderConfig defines one LLM provider entry.
type ProviderConfig struct {
	// Provider type (required)
	Type ProviderType `yaml:"type"`

	// Model name (required)
	Model string `yaml:"model"`

	// Environment variable name for the API key. Required for openai and
	// anthropic; optional for local servers.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// Optional custom endpoint/base URL
	BaseURL string `yaml:"base_url,omitempty"`

	// Priority orders fallback when no explicit provider_priority list is
	// configured. Lower values are tried first.
	Priority int `yaml:"priority,omitempty"`

	// Sidecar optionally launches a local model server as a child process.
	// Only valid for local providers.
	Sidecar *SidecarConfig `yaml:"sidecar,omitempty"`
}

// SidecarConfig describes a locally spawned model server process.
type SidecarConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

// ProviderRegistry stores provider configurations in memory with thread-safe access
type ProviderRegistry struct {
	providers map[string]*ProviderConfig
	mu        sync.RWMutex
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry(providers map[string]*ProviderConfig) *ProviderRegistry {
	// Defensive copy to prevent external mutation
	copied := make(map[string]*ProviderConfig, len(providers))
	for k, v := range providers {
		copied[k] = v
	}
	return &ProviderRegistry{
		providers: copied,
	}
}

// Get retrieves a provider configuration by name (thread-safe)
func (r *ProviderRegistry) Get(name string) (*ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return provider, nil
}

// GetAll returns all provider configurations (thread-safe, returns copy)
func (r *ProviderRegistry) GetAll() map[string]*ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Return a copy to prevent external modification
	result := make(map[string]*ProviderConfig, len(r.providers))
	for k, v := range r.providers {
		result[k] = v
	}
	return result
}

// Has checks if a provider exists in the registry (thread-safe)
func (r *ProviderRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[name]
	return exists
}

// Len returns the number of providers in the registry (thread-safe)
func (r *ProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Names returns all provider names sorted by Priority (ascending), ties
// broken alphabetically. This is the fallback order used when no explicit
// provider_priority list is configured.
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := r.providers[names[i]].Priority, r.providers[names[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}
