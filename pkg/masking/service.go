// Package masking scrubs credentials and other secrets from probe command
// output before it reaches the model, the event stream, or session history.
//
// Diagnostic commands leak more than people expect: netsh can print Wi-Fi
// keys, nmcli exposes connection PSKs, and a process listing shows every
// --password flag on the box. Masking runs on raw stdout/stderr inside the
// probe runtime, so parsers, tool results, and stored transcripts only ever
// see redacted text.
package masking

// Service applies an ordered set of redaction patterns. Construct once at
// startup; Mask is safe for concurrent use.
type Service struct {
	patterns []compiledPattern
}

// New builds a service from the built-in patterns plus any custom rules.
// Custom rules run after the built-ins.
func New(custom []Pattern) *Service {
	rules := append(builtinPatterns(), custom...)
	return &Service{patterns: compilePatterns(rules)}
}

// Mask applies every pattern to text and returns the redacted result.
func (s *Service) Mask(text string) string {
	if text == "" {
		return text
	}
	for _, p := range s.patterns {
		text = p.regex.ReplaceAllString(text, p.replacement)
	}
	return text
}

// Len returns the number of active patterns.
func (s *Service) Len() int {
	return len(s.patterns)
}
