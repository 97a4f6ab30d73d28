// Package probe executes host diagnostic and remediation probes.
//
// A probe is a named routine with a platform-specific shell command and a
// parser that turns command output into a structured ProbeResult. The
// runtime owns platform detection (done once at construction), wall-clock
// timeouts, and the mapping of subprocess failures into result error
// kinds. Probes that need no subprocess (pure filesystem work) supply a
// RunFunc instead of command templates.
package probe

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/netmedic/netmedic/pkg/models"
)

// Supported platform identifiers.
const (
	PlatformMacOS   = "macos"
	PlatformWindows = "windows"
	PlatformLinux   = "linux"
)

// Error kinds reported inside ProbeResult.Error.
const (
	ErrKindTimeout    = "timeout"
	ErrKindPermission = "permission"
	ErrKindInvalidArg = "invalid_argument"
)

// ErrProbeNotFound is returned by Run for an unknown probe name.
var ErrProbeNotFound = errors.New("probe not found")

// Default and ceiling wall-clock budgets for probe subprocesses.
const (
	DefaultTimeout = 15 * time.Second
	MaxTimeout     = 60 * time.Second
)

// Probe is one diagnostic or remediation routine.
//
// Commands maps platform → shell command template; templates may contain
// {{name}} placeholders filled from the argument map. Parse receives the
// subprocess output and produces the result fields; it decides success,
// stderr alone never does. RunFunc, when set, replaces subprocess
// execution entirely.
type Probe struct {
	Name        string
	Description string
	Parameters  []models.ToolParameter
	Timeout     time.Duration // 0 = runtime default, capped at MaxTimeout
	Action      bool          // state-changing probe
	Commands    map[string]string
	Parse       func(platform string, args map[string]any, out CommandOutput) *models.ProbeResult
	RunFunc     func(ctx context.Context, platform string, args map[string]any) *models.ProbeResult
	// Before runs prior to command expansion. It may normalize the
	// argument map in place, and a non-nil result short-circuits the
	// probe (used for protected-target refusals).
	Before func(platform string, args map[string]any) *models.ProbeResult
}

// SupportsPlatform reports whether the probe can run on the given platform.
func (p *Probe) SupportsPlatform(platform string) bool {
	if p.RunFunc != nil {
		return true
	}
	_, ok := p.Commands[platform]
	return ok
}

// Masker scrubs secrets from raw command output. Satisfied by
// *masking.Service.
type Masker interface {
	Mask(string) string
}

// Config carries probe runtime tunables.
type Config struct {
	DefaultTimeout time.Duration
	TempFileMinAge time.Duration
	// TempFileRoots replaces the platform's default temp directories
	// when set. Used by operators with nonstandard temp locations.
	TempFileRoots []string
	// Masker, when set, scrubs command output before it reaches parsers,
	// results, or history. Nil disables scrubbing.
	Masker Masker
}

// Runtime executes probes on the local host.
type Runtime struct {
	platform string
	runner   CommandRunner
	cfg      Config
	probes   map[string]*Probe
	order    []string
}

// NewRuntime builds a runtime for the detected host platform with the
// built-in probe set.
func NewRuntime(cfg Config) *Runtime {
	return NewRuntimeWithRunner(cfg, nil)
}

// NewRuntimeWithRunner is NewRuntime with an injectable command runner.
func NewRuntimeWithRunner(cfg Config, runner CommandRunner) *Runtime {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.TempFileMinAge <= 0 {
		cfg.TempFileMinAge = time.Hour
	}
	if runner == nil {
		runner = NewShellRunner(cfg.DefaultTimeout)
	}
	rt := &Runtime{
		platform: DetectPlatform(),
		runner:   runner,
		cfg:      cfg,
		probes:   make(map[string]*Probe),
	}
	for _, p := range builtinProbes(cfg) {
		rt.add(p)
	}
	return rt
}

// DetectPlatform maps the Go OS identifier to the probe platform name.
func DetectPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	default:
		return PlatformLinux
	}
}

// Platform returns the detected host platform.
func (r *Runtime) Platform() string { return r.platform }

// Probes returns the probes usable on this host, in registration order.
func (r *Runtime) Probes() []*Probe {
	out := make([]*Probe, 0, len(r.order))
	for _, name := range r.order {
		p := r.probes[name]
		if p.SupportsPlatform(r.platform) {
			out = append(out, p)
		}
	}
	return out
}

func (r *Runtime) add(p *Probe) {
	if _, exists := r.probes[p.Name]; exists {
		return
	}
	r.probes[p.Name] = p
	r.order = append(r.order, p.Name)
}

// Run executes the named probe and maps every subprocess failure mode
// into the returned result. The error return is reserved for unknown
// probes and caller cancellation; everything else is a ProbeResult.
func (r *Runtime) Run(ctx context.Context, name string, args map[string]any) (*models.ProbeResult, error) {
	p, ok := r.probes[name]
	if !ok || !p.SupportsPlatform(r.platform) {
		return nil, fmt.Errorf("%w: %s", ErrProbeNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}

	if p.Before != nil {
		if res := p.Before(r.platform, args); res != nil {
			if res.Data == nil {
				res.Data = map[string]any{}
			}
			res.Platform = r.platform
			return res, nil
		}
	}

	if p.RunFunc != nil {
		res := p.RunFunc(ctx, r.platform, args)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Platform = r.platform
		return res, nil
	}

	command, err := expandCommand(p.Commands[r.platform], args)
	if err != nil {
		return &models.ProbeResult{
			Success:   false,
			Data:      map[string]any{},
			Error:     ErrKindInvalidArg,
			Platform:  r.platform,
			RawOutput: err.Error(),
		}, nil
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	out, err := r.runner.Run(ctx, CommandSpec{Command: command, Timeout: timeout})
	// Scrub before any branch below: error results, timeout results, and
	// parsers must only ever see redacted text.
	if r.cfg.Masker != nil {
		out.Stdout = r.cfg.Masker.Mask(out.Stdout)
		out.Stderr = r.cfg.Masker.Mask(out.Stderr)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &models.ProbeResult{
			Success:   false,
			Data:      map[string]any{},
			Error:     err.Error(),
			Platform:  r.platform,
			RawOutput: out.Stdout,
		}, nil
	}

	if out.TimedOut {
		return &models.ProbeResult{
			Success:   false,
			Data:      map[string]any{"duration_ms": out.DurationMs},
			Error:     ErrKindTimeout,
			Platform:  r.platform,
			RawOutput: collectedOutput(out),
		}, nil
	}

	res := p.Parse(r.platform, args, out)
	if res.Data == nil {
		res.Data = map[string]any{}
	}
	res.Platform = r.platform
	if res.RawOutput == "" {
		res.RawOutput = collectedOutput(out)
	}
	if !res.Success && res.Error == "" && permissionDenied(out) {
		res.Error = ErrKindPermission
	}
	return res, nil
}

func collectedOutput(out CommandOutput) string {
	if out.Stdout != "" {
		return out.Stdout
	}
	return out.Stderr
}

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// shellArgPattern admits hostnames, IPs, process and image names. Anything
// else never reaches the shell.
var shellArgPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]*$`)

func expandCommand(template string, args map[string]any) (string, error) {
	var expandErr error
	expanded := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		v, ok := args[key]
		if !ok {
			expandErr = fmt.Errorf("missing argument %q", key)
			return ""
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", v))
		if !shellArgPattern.MatchString(s) {
			expandErr = fmt.Errorf("argument %q has unsafe value %q", key, s)
			return ""
		}
		return s
	})
	return expanded, expandErr
}

var permissionMarkers = []string{
	"permission denied",
	"operation not permitted",
	"access is denied",
	"access denied",
	"requires elevation",
	"run as root",
	"run as administrator",
	"requested operation requires elevation",
}

func permissionDenied(out CommandOutput) bool {
	combined := strings.ToLower(out.Stdout + "\n" + out.Stderr)
	for _, marker := range permissionMarkers {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}
