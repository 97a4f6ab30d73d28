package masking

import (
	"log/slog"
	"regexp"
)

// Pattern is one named redaction rule. The replacement rewrites the whole
// match, label included, so masked output still reads naturally.
type Pattern struct {
	Name        string
	Pattern     string
	Replacement string
}

// builtinPatterns returns the default redaction set. Order matters: block
// patterns run before line patterns, and specific token forms before the
// generic token rule.
func builtinPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "key_block",
			Pattern:     `(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`,
			Replacement: "__MASKED_KEY_BLOCK__",
		},
		{
			Name:        "ssh_key",
			Pattern:     `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
			Replacement: "__MASKED_SSH_KEY__",
		},
		{
			Name:        "github_token",
			Pattern:     `gh[pousr]_[A-Za-z0-9]{36,255}`,
			Replacement: "__MASKED_GITHUB_TOKEN__",
		},
		{
			// netsh prints "Key Content : x", nmcli prints
			// "802-11-wireless-security.psk: x", wpa_supplicant uses
			// "psk=x". The value runs to end of line.
			Name:        "wifi_key",
			Pattern:     `(?i)(?:key content|psk|passphrase)\s*[:=]\s*[^\r\n]+`,
			Replacement: "psk: __MASKED_WIFI_KEY__",
		},
		{
			Name:        "api_key",
			Pattern:     `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}["']?`,
			Replacement: "api_key: __MASKED_API_KEY__",
		},
		{
			Name:        "password",
			Pattern:     `(?i)(?:password|passwd)["']?\s*[:=]\s*["']?[^"'\s]{4,}["']?`,
			Replacement: "password: __MASKED_PASSWORD__",
		},
		{
			Name:        "token",
			Pattern:     `(?i)token["']?\s*[:=]\s*["']?[A-Za-z0-9_\-.]{16,}["']?`,
			Replacement: "token: __MASKED_TOKEN__",
		},
		{
			Name:        "bearer",
			Pattern:     `(?i)\bbearer\s+[A-Za-z0-9_\-.=]{16,}`,
			Replacement: "Bearer __MASKED_TOKEN__",
		},
		{
			Name:        "email",
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			Replacement: "__MASKED_EMAIL__",
		},
	}
}

type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// compilePatterns compiles rules, skipping any whose expression is invalid.
// A bad custom pattern must not take down the agent; the remaining rules
// still apply.
func compilePatterns(patterns []Pattern) []compiledPattern {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			slog.Error("Skipping masking pattern that does not compile",
				"pattern", p.Name,
				"error", err)
			continue
		}
		out = append(out, compiledPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}
	return out
}
