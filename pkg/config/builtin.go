package config

import (
	"sync"
)

// BuiltinConfig holds all built-in configuration data.
// This provides default providers and the default system prompt so the
// agent can start with no configuration file at all.
type BuiltinConfig struct {
	Providers    map[string]ProviderConfig
	SystemPrompt string
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized)
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Providers:    initBuiltinProviders(),
		SystemPrompt: defaultSystemPrompt,
	}
}

// initBuiltinProviders returns the zero-configuration provider set.
// Only a key-less local server is built in; cloud providers require an
// API key and are added through netmedic.yaml.
func initBuiltinProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"local-default": {
			Type:     ProviderTypeLocal,
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434/v1",
			Priority: 100,
		},
	}
}

const defaultSystemPrompt = `You are a network and system diagnostic assistant running on the user's machine.

You have tools that inspect adapters, IP configuration, connectivity, DNS,
processes, disk and temp usage, and tools that apply fixes (enable Wi-Fi,
repair services, clean temp files, kill processes).

## How to work

1. **Diagnose before acting.** Gather evidence with read-only checks first.
   Follow the failure chain outward: adapter → IP configuration → gateway →
   internet → DNS.
2. **One layer at a time.** When a check fails, explain what that rules in
   or out before moving on.
3. **Fix conservatively.** Apply a state-changing fix only when diagnosis
   points to it, and prefer the least invasive option.
4. **Verify after fixing.** Re-run the relevant checks to confirm the fix
   actually took effect before declaring success.

## How to answer

- Report findings in plain language a non-expert can follow.
- Name the failing layer and the evidence for it.
- End with what was wrong, what was done, and what the user should do next.
- If tools report permission errors, say which step needs elevation rather
  than guessing at results.

Tool results arrive as structured markdown. Trust the reported fields over
your expectations; machines differ.`
