package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the single configuration file loaded from the config
// directory. All sections are optional; built-in defaults cover the rest.
const ConfigFileName = "netmedic.yaml"

// NetmedicYAMLConfig represents the complete netmedic.yaml file structure
type NetmedicYAMLConfig struct {
	System    *SystemYAMLConfig         `yaml:"system"`
	Loop      *LoopYAMLConfig           `yaml:"loop"`
	LLM       *LLMConfig                `yaml:"llm"`
	Probes    *ProbesConfig             `yaml:"probes"`
	Masking   *MaskingYAMLConfig        `yaml:"masking"`
	Retention *RetentionConfig          `yaml:"retention"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// SystemYAMLConfig groups system-wide infrastructure settings.
type SystemYAMLConfig struct {
	ListenAddr       string   `yaml:"listen_addr"`
	SystemPromptPath string   `yaml:"system_prompt_path"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// LoopYAMLConfig holds loop settings from YAML. Booleans are pointers so an
// explicit false can be told apart from an absent key.
type LoopYAMLConfig struct {
	MaxToolIterations    int   `yaml:"max_tool_iterations,omitempty"`
	ForceToolOnFirstTurn *bool `yaml:"force_tool_on_first_turn,omitempty"`
	ParallelToolFanOut   int   `yaml:"parallel_tool_fan_out,omitempty"`
	TurnSoftCeilingMs    int   `yaml:"turn_soft_ceiling_ms,omitempty"`
	VerificationEnabled  *bool `yaml:"verification_enabled,omitempty"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load netmedic.yaml from configDir (absent file means pure defaults)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined configuration
//  5. Resolve the system prompt (built-in or file)
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	// 1. Load configuration file
	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Validate all configuration
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"llm_providers", stats.Providers,
		"provider_order", cfg.ProviderOrder(),
		"listen_addr", cfg.ListenAddr)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load netmedic.yaml
	userConfig, err := loader.loadNetmedicYAML()
	if err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}

	// 2. Get built-in configuration
	builtin := GetBuiltinConfig()

	// 3. Merge built-in + user-defined providers (user overrides built-in)
	providers := mergeProviders(builtin.Providers, userConfig.Providers)
	providerRegistry := NewProviderRegistry(providers)

	// 4. Resolve section configs (merge user YAML with built-in defaults)
	// Start with defaults, then merge user config on top to preserve unset defaults
	llmConfig := DefaultLLMConfig()
	if userConfig.LLM != nil {
		if err := mergo.Merge(llmConfig, userConfig.LLM, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge llm config: %w", err)
		}
	}

	probesConfig := DefaultProbesConfig()
	if userConfig.Probes != nil {
		if err := mergo.Merge(probesConfig, userConfig.Probes, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge probes config: %w", err)
		}
	}

	retentionConfig := DefaultRetentionConfig()
	if userConfig.Retention != nil {
		if err := mergo.Merge(retentionConfig, userConfig.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	loopConfig := resolveLoopConfig(userConfig.Loop)
	maskingConfig := resolveMaskingConfig(userConfig.Masking)

	// 5. Resolve system settings and the prompt text
	listenAddr := resolveListenAddr(userConfig.System)
	allowedWSOrigins := resolveAllowedWSOrigins(userConfig.System)

	systemPrompt, err := loader.resolveSystemPrompt(userConfig.System, builtin.SystemPrompt)
	if err != nil {
		return nil, err
	}

	return &Config{
		configDir:        configDir,
		ListenAddr:       listenAddr,
		AllowedWSOrigins: allowedWSOrigins,
		SystemPrompt:     systemPrompt,
		Loop:             loopConfig,
		LLM:              llmConfig,
		Probes:           probesConfig,
		Masking:          maskingConfig,
		Retention:        retentionConfig,
		ProviderRegistry: providerRegistry,
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing YAML parser to handle the content (or fail with clearer error message)
	data = ExpandEnv(data)

	// Parse YAML
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

// loadNetmedicYAML loads the user configuration file. An absent file is not
// an error: the agent runs on built-in defaults alone.
func (l *configLoader) loadNetmedicYAML() (*NetmedicYAMLConfig, error) {
	var config NetmedicYAMLConfig

	// Initialize map to avoid nil map
	config.Providers = make(map[string]ProviderConfig)

	if err := l.loadYAML(ConfigFileName, &config); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			slog.Info("No configuration file found, using built-in defaults",
				"path", filepath.Join(l.configDir, ConfigFileName))
			return &config, nil
		}
		return nil, err
	}

	return &config, nil
}

// resolveSystemPrompt returns the system prompt text, reading
// system_prompt_path when configured. Relative paths resolve against the
// config directory.
func (l *configLoader) resolveSystemPrompt(sys *SystemYAMLConfig, builtin string) (string, error) {
	if sys == nil || sys.SystemPromptPath == "" {
		return builtin, nil
	}

	path := sys.SystemPromptPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.configDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", NewLoadError(sys.SystemPromptPath, err)
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", NewLoadError(sys.SystemPromptPath, fmt.Errorf("%w: system prompt file is empty", ErrInvalidValue))
	}

	return prompt, nil
}

// mergeProviders merges built-in and user-defined provider configurations.
// User-defined providers override built-in providers with the same name.
func mergeProviders(builtinProviders map[string]ProviderConfig, userProviders map[string]ProviderConfig) map[string]*ProviderConfig {
	result := make(map[string]*ProviderConfig)

	// First, add built-in providers
	for name, provider := range builtinProviders {
		providerCopy := provider
		result[name] = &providerCopy
	}

	// Then, override with user-defined providers (or add new ones)
	for name, userProvider := range userProviders {
		providerCopy := userProvider
		result[name] = &providerCopy
	}

	return result
}

// resolveLoopConfig resolves loop configuration from YAML, applying defaults.
func resolveLoopConfig(y *LoopYAMLConfig) *LoopConfig {
	cfg := DefaultLoopConfig()

	if y == nil {
		return cfg
	}

	if y.MaxToolIterations > 0 {
		cfg.MaxToolIterations = y.MaxToolIterations
	}
	if y.ForceToolOnFirstTurn != nil {
		cfg.ForceToolOnFirstTurn = *y.ForceToolOnFirstTurn
	}
	if y.ParallelToolFanOut > 0 {
		cfg.ParallelToolFanOut = y.ParallelToolFanOut
	}
	if y.TurnSoftCeilingMs > 0 {
		cfg.TurnSoftCeilingMs = y.TurnSoftCeilingMs
	}
	if y.VerificationEnabled != nil {
		cfg.VerificationEnabled = *y.VerificationEnabled
	}

	return cfg
}

// resolveListenAddr resolves the HTTP bind address from system YAML, applying defaults.
func resolveListenAddr(sys *SystemYAMLConfig) string {
	if sys != nil && sys.ListenAddr != "" {
		return sys.ListenAddr
	}
	return ":8080"
}

// resolveAllowedWSOrigins returns additional WebSocket origin patterns from system YAML.
func resolveAllowedWSOrigins(sys *SystemYAMLConfig) []string {
	if sys != nil {
		return sys.AllowedWSOrigins
	}
	return nil
}
