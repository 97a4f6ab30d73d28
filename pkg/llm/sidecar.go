package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	sidecarStartupTimeout = 30 * time.Second
	sidecarStopGrace      = 5 * time.Second
	sidecarPollInterval   = 500 * time.Millisecond
)

// Sidecar manages an optional local model server subprocess. The server
// starts lazily on first use, is health-polled until it answers, and is
// shared across sessions. A server that is already listening when
// EnsureStarted runs is used as is and never stopped by this process.
type Sidecar struct {
	command   string
	args      []string
	healthURL string
	probe     *http.Client

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan error
}

// NewSidecar creates a sidecar for the given server command. baseURL is
// the local provider's endpoint; the health probe targets its root. An
// empty command returns nil, and all methods are nil-safe.
func NewSidecar(command string, args []string, baseURL string) *Sidecar {
	if command == "" {
		return nil
	}
	base := strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1")
	if base == "" {
		base = strings.TrimSuffix(DefaultLocalBaseURL, "/v1")
	}
	return &Sidecar{
		command:   command,
		args:      args,
		healthURL: base + "/",
		probe:     &http.Client{Timeout: localProbeTimeout},
	}
}

// EnsureStarted makes sure the server is running and healthy, starting
// it if needed. Concurrent callers serialize on one startup.
func (s *Sidecar) EnsureStarted(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.healthy(ctx) {
		return nil
	}
	if s.cmd == nil {
		cmd := exec.Command(s.command, s.args...)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start local model server: %w", err)
		}
		slog.Info("Local model server started", "command", s.command, "pid", cmd.Process.Pid)
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		s.cmd = cmd
		s.done = done
	}
	return s.awaitHealthy(ctx)
}

func (s *Sidecar) awaitHealthy(ctx context.Context) error {
	deadline := time.Now().Add(sidecarStartupTimeout)
	ticker := time.NewTicker(sidecarPollInterval)
	defer ticker.Stop()

	for {
		if s.healthy(ctx) {
			return nil
		}
		select {
		case err := <-s.done:
			s.cmd = nil
			s.done = nil
			return fmt.Errorf("local model server exited during startup: %v", err)
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("local model server did not become healthy within %s", sidecarStartupTimeout)
			}
		}
	}
}

// Stop terminates a server this process started: SIGTERM first, SIGKILL
// once the grace period runs out. Externally started servers are left
// running.
func (s *Sidecar) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	pid := s.cmd.Process.Pid
	_ = s.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-s.done:
		slog.Info("Local model server stopped", "pid", pid)
	case <-time.After(sidecarStopGrace):
		slog.Warn("Local model server did not stop in time, killing", "pid", pid)
		_ = s.cmd.Process.Kill()
		<-s.done
	}
	s.cmd = nil
	s.done = nil
}

func (s *Sidecar) healthy(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, localProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return true
}
