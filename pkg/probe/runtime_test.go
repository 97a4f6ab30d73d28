package probe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner returns canned output and records what it was asked to run.
type fakeRunner struct {
	output   CommandOutput
	err      error
	commands []string
	timeouts []time.Duration
}

type stubMasker struct{}

func (stubMasker) Mask(s string) string {
	return strings.ReplaceAll(s, "hunter2secret", "__MASKED__")
}

func (f *fakeRunner) Run(_ context.Context, spec CommandSpec) (CommandOutput, error) {
	f.commands = append(f.commands, spec.Command)
	f.timeouts = append(f.timeouts, spec.Timeout)
	return f.output, f.err
}

func newTestRuntime(t *testing.T, runner CommandRunner) *Runtime {
	t.Helper()
	return NewRuntimeWithRunner(Config{DefaultTimeout: 15 * time.Second}, runner)
}

func TestRuntime_Run(t *testing.T) {
	t.Run("unknown probe", func(t *testing.T) {
		rt := newTestRuntime(t, &fakeRunner{})
		_, err := rt.Run(context.Background(), "no_such_probe", nil)
		require.ErrorIs(t, err, ErrProbeNotFound)
	})

	t.Run("timeout maps into the result", func(t *testing.T) {
		runner := &fakeRunner{output: CommandOutput{Stdout: "partial", TimedOut: true, ExitCode: -1, DurationMs: 15000}}
		rt := newTestRuntime(t, runner)
		res, err := rt.Run(context.Background(), "check_adapter_status", nil)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, ErrKindTimeout, res.Error)
		assert.Equal(t, "partial", res.RawOutput)
	})

	t.Run("permission denial detected from output", func(t *testing.T) {
		runner := &fakeRunner{output: CommandOutput{Stderr: "networksetup: Operation not permitted", ExitCode: 1}}
		rt := newTestRuntime(t, runner)
		res, err := rt.Run(context.Background(), "enable_wifi", nil)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, ErrKindPermission, res.Error)
	})

	t.Run("unsafe argument never reaches the shell", func(t *testing.T) {
		runner := &fakeRunner{}
		rt := newTestRuntime(t, runner)
		res, err := rt.Run(context.Background(), "ping_gateway", map[string]any{"gateway": "10.0.0.1; rm -rf /"})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, ErrKindInvalidArg, res.Error)
		assert.Empty(t, runner.commands)
	})

	t.Run("argument expansion", func(t *testing.T) {
		runner := &fakeRunner{output: CommandOutput{Stdout: unixPingOutput, ExitCode: 0}}
		rt := newTestRuntime(t, runner)
		res, err := rt.Run(context.Background(), "ping_gateway", map[string]any{"gateway": "192.168.1.1"})
		require.NoError(t, err)
		assert.True(t, res.Success)
		require.Len(t, runner.commands, 1)
		assert.Contains(t, runner.commands[0], "192.168.1.1")
		assert.NotContains(t, runner.commands[0], "{{")
	})

	t.Run("ping timeout override capped", func(t *testing.T) {
		runner := &fakeRunner{output: CommandOutput{Stdout: unixPingOutput}}
		rt := newTestRuntime(t, runner)
		_, err := rt.Run(context.Background(), "ping_gateway", map[string]any{"gateway": "192.168.1.1"})
		require.NoError(t, err)
		require.Len(t, runner.timeouts, 1)
		assert.Equal(t, 30*time.Second, runner.timeouts[0])
		assert.LessOrEqual(t, runner.timeouts[0], MaxTimeout)
	})

	t.Run("platform is stamped on every result", func(t *testing.T) {
		runner := &fakeRunner{output: CommandOutput{Stdout: "x", ExitCode: 0}}
		rt := newTestRuntime(t, runner)
		res, err := rt.Run(context.Background(), "get_system_info", nil)
		require.NoError(t, err)
		assert.Equal(t, rt.Platform(), res.Platform)
	})

	t.Run("cancellation propagates as an error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		runner := &fakeRunner{err: context.Canceled}
		rt := newTestRuntime(t, runner)
		_, err := rt.Run(ctx, "check_adapter_status", nil)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("masker scrubs output before parsing", func(t *testing.T) {
		runner := &fakeRunner{output: CommandOutput{Stdout: "OS Name: test\nKey Content: hunter2secret", ExitCode: 0}}
		rt := NewRuntimeWithRunner(Config{DefaultTimeout: 15 * time.Second, Masker: stubMasker{}}, runner)
		res, err := rt.Run(context.Background(), "get_system_info", nil)
		require.NoError(t, err)
		assert.NotContains(t, res.RawOutput, "hunter2secret")
		assert.Contains(t, res.RawOutput, "__MASKED__")
	})

	t.Run("masker scrubs failed command output", func(t *testing.T) {
		runner := &fakeRunner{
			output: CommandOutput{Stdout: "psk=hunter2secret", ExitCode: 1},
			err:    errors.New("exit status 1"),
		}
		rt := NewRuntimeWithRunner(Config{DefaultTimeout: 15 * time.Second, Masker: stubMasker{}}, runner)
		res, err := rt.Run(context.Background(), "check_adapter_status", nil)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.NotContains(t, res.RawOutput, "hunter2secret")
	})
}

func TestRuntime_Probes(t *testing.T) {
	rt := newTestRuntime(t, &fakeRunner{})
	probes := rt.Probes()
	require.NotEmpty(t, probes)

	names := make(map[string]bool, len(probes))
	for _, p := range probes {
		names[p.Name] = true
		assert.True(t, p.SupportsPlatform(rt.Platform()), "probe %s listed but unsupported", p.Name)
	}

	// The diagnostic ladder must be present on every platform.
	for _, required := range []string{
		"check_adapter_status", "get_ip_config", "ping_gateway",
		"ping_dns", "test_dns_resolution", "cleanup_temp_files",
	} {
		assert.True(t, names[required], "missing probe %s", required)
	}

	if rt.Platform() != PlatformWindows {
		assert.False(t, names["run_dism_sfc"], "windows-only probe registered on %s", rt.Platform())
		assert.False(t, names["repair_office365"])
		assert.False(t, names["fix_dell_audio"])
	}
}

func TestRuntime_ActionProbeNames(t *testing.T) {
	rt := newTestRuntime(t, &fakeRunner{})
	actions := rt.ActionProbeNames()
	assert.Contains(t, actions, "enable_wifi")
	assert.Contains(t, actions, "kill_process")
	assert.Contains(t, actions, "cleanup_temp_files")
	assert.NotContains(t, actions, "ping_gateway")
	assert.NotContains(t, actions, "check_adapter_status")
}

func TestExpandCommand(t *testing.T) {
	tests := []struct {
		name     string
		template string
		args     map[string]any
		want     string
		wantErr  bool
	}{
		{"no placeholders", "ifconfig", nil, "ifconfig", false},
		{"string arg", "ping -c 4 {{gateway}}", map[string]any{"gateway": "10.0.0.1"}, "ping -c 4 10.0.0.1", false},
		{"integer arg", "head -n {{limit}}", map[string]any{"limit": 5}, "head -n 5", false},
		{"missing arg", "ping {{gateway}}", map[string]any{}, "", true},
		{"shell metacharacters rejected", "ping {{gateway}}", map[string]any{"gateway": "$(reboot)"}, "", true},
		{"spaces rejected", "pkill -x {{name}}", map[string]any{"name": "a b"}, "", true},
		{"leading dash rejected", "ping {{gateway}}", map[string]any{"gateway": "-flood"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandCommand(tt.template, tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expandCommand = %q, want %q", got, tt.want)
			}
		})
	}
}
