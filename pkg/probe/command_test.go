package probe

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test drives the unix shell")
	}
}

func TestShellRunner_Run(t *testing.T) {
	skipOnWindows(t)
	runner := NewShellRunner(5 * time.Second)

	t.Run("captures stdout and exit code", func(t *testing.T) {
		out, err := runner.Run(context.Background(), CommandSpec{Command: "echo hello"})
		require.NoError(t, err)
		assert.Equal(t, 0, out.ExitCode)
		assert.Equal(t, "hello\n", out.Stdout)
		assert.False(t, out.TimedOut)
	})

	t.Run("captures stderr without failing", func(t *testing.T) {
		out, err := runner.Run(context.Background(), CommandSpec{Command: "echo oops 1>&2"})
		require.NoError(t, err)
		assert.Equal(t, 0, out.ExitCode)
		assert.Equal(t, "oops\n", out.Stderr)
	})

	t.Run("reports nonzero exit", func(t *testing.T) {
		out, err := runner.Run(context.Background(), CommandSpec{Command: "exit 3"})
		require.NoError(t, err)
		assert.Equal(t, 3, out.ExitCode)
	})

	t.Run("timeout terminates and keeps collected output", func(t *testing.T) {
		start := time.Now()
		out, err := runner.Run(context.Background(), CommandSpec{
			Command: "echo partial; sleep 30",
			Timeout: 300 * time.Millisecond,
		})
		require.NoError(t, err)
		assert.True(t, out.TimedOut)
		assert.Equal(t, "partial\n", out.Stdout)
		// Grace period is 2s; well under the sleep.
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	t.Run("caller cancellation is an error, not a timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()
		_, err := runner.Run(ctx, CommandSpec{Command: "sleep 30", Timeout: time.Minute})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("empty command rejected", func(t *testing.T) {
		_, err := runner.Run(context.Background(), CommandSpec{})
		assert.Error(t, err)
	})
}

func TestLimitedBuffer(t *testing.T) {
	buf := newLimitedBuffer(10)
	n, err := buf.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, "0123456789", buf.String())

	n, err = buf.Write([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123456789", buf.String())
}
