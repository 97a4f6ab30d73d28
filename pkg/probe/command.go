package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// CommandSpec describes one shell invocation.
type CommandSpec struct {
	Command string
	Timeout time.Duration // 0 = runner default
}

// CommandOutput is what came back from the child process.
// On timeout, Stdout and Stderr hold whatever was collected before the
// process tree was terminated.
type CommandOutput struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	DurationMs int64
	TimedOut   bool
}

// CommandRunner executes shell commands under a wall-clock budget.
// Implementations must terminate the whole child process tree on timeout
// and still return any output collected before the kill.
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec) (CommandOutput, error)
}

// shellRunner runs commands through the platform shell with a bounded
// output buffer and a graceful-then-hard termination sequence on timeout.
type shellRunner struct {
	defaultTimeout time.Duration
	gracePeriod    time.Duration
	maxOutput      int
}

// NewShellRunner creates a CommandRunner with the given default timeout.
func NewShellRunner(defaultTimeout time.Duration) CommandRunner {
	return &shellRunner{
		defaultTimeout: defaultTimeout,
		gracePeriod:    2 * time.Second,
		maxOutput:      64000,
	}
}

func (r *shellRunner) Run(ctx context.Context, spec CommandSpec) (CommandOutput, error) {
	if spec.Command == "" {
		return CommandOutput{ExitCode: -1}, fmt.Errorf("command is required")
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shellCommand(spec.Command)
	configureProcAttr(cmd)

	stdout := newLimitedBuffer(r.maxOutput)
	stderr := newLimitedBuffer(r.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return CommandOutput{ExitCode: -1}, fmt.Errorf("start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		// Ask politely first so children can flush, then force the issue.
		terminateCommand(cmd)
		select {
		case waitErr = <-done:
		case <-time.After(r.gracePeriod):
			killCommand(cmd)
			waitErr = <-done
		}
	}

	out := CommandOutput{
		ExitCode:   exitCode(waitErr),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if ctx.Err() != nil {
		// Caller cancellation, not a probe timeout.
		return out, ctx.Err()
	}
	out.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
	return out, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// limitedBuffer keeps at most max bytes and silently drops the rest.
// Probe output is model-facing; unbounded capture is never useful.
type limitedBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newLimitedBuffer(max int) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 && len(b.buf) >= b.max {
		return len(p), nil
	}
	remaining := b.max - len(b.buf)
	if b.max > 0 && len(p) > remaining {
		b.buf = append(b.buf, p[:remaining]...)
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
