// NetMedic server: AI-assisted host network diagnostics. Serves the
// HTTP/WS API, runs the diagnostic engine, and optionally records
// session history to Postgres.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/netmedic/netmedic/pkg/agent"
	"github.com/netmedic/netmedic/pkg/api"
	"github.com/netmedic/netmedic/pkg/config"
	"github.com/netmedic/netmedic/pkg/database"
	"github.com/netmedic/netmedic/pkg/events"
	"github.com/netmedic/netmedic/pkg/history"
	"github.com/netmedic/netmedic/pkg/llm"
	"github.com/netmedic/netmedic/pkg/masking"
	"github.com/netmedic/netmedic/pkg/probe"
	"github.com/netmedic/netmedic/pkg/session"
	"github.com/netmedic/netmedic/pkg/store"
	"github.com/netmedic/netmedic/pkg/tools"
	"github.com/netmedic/netmedic/pkg/version"
)

const (
	wsWriteTimeout        = 10 * time.Second
	engineShutdownTimeout = 30 * time.Second
	httpShutdownTimeout   = 5 * time.Second
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("No .env file, continuing with existing environment",
			"path", envPath)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting netmedic",
		"version", version.Full(),
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. History persistence (optional, enabled by DB_HOST)
	var (
		dbClient    *database.Client
		recorder    *history.Recorder
		reader      *history.Reader
		retention   *history.RetentionService
		messageHook store.MessageHook
		toolObs     agent.ToolObserver
		callObs     llm.CallObserver
	)
	if database.Enabled() {
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		dbClient, err = database.NewClient(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()

		recorder = history.NewRecorder(dbClient)
		reader = history.NewReader(dbClient)
		messageHook = recorder.OnMessage
		toolObs = recorder.OnToolCall
		callObs = recorder.OnLlmCall

		retention = history.NewRetentionService(cfg.Retention, dbClient)
		retention.Start(ctx)
		slog.Info("History persistence enabled")
	} else {
		slog.Info("History persistence disabled (DB_HOST not set)")
	}

	// 3. Conversation store
	st := store.New(cfg.SystemPrompt, messageHook)

	// 4. Probe runtime and tool registry
	var masker probe.Masker
	if cfg.Masking.Enabled {
		custom := make([]masking.Pattern, 0, len(cfg.Masking.CustomPatterns))
		for _, p := range cfg.Masking.CustomPatterns {
			custom = append(custom, masking.Pattern{Name: p.Name, Pattern: p.Pattern, Replacement: p.Replacement})
		}
		svc := masking.New(custom)
		masker = svc
		slog.Info("Output masking enabled", "patterns", svc.Len())
	} else {
		slog.Warn("Output masking disabled; raw command output will reach the model")
	}
	rt := probe.NewRuntime(probe.Config{
		DefaultTimeout: cfg.Probes.DefaultTimeout(),
		TempFileMinAge: cfg.Probes.TempFileMinAge(),
		TempFileRoots:  cfg.Probes.TempFileRoots,
		Masker:         masker,
	})
	registry := tools.NewRegistry(rt.Platform())
	if err := probe.RegisterAll(registry, rt); err != nil {
		slog.Error("Failed to register probes", "error", err)
		os.Exit(1)
	}
	slog.Info("Probes registered", "platform", rt.Platform(), "tools", registry.Len())

	// 5. LLM providers in fallback order
	providers, sidecar, err := buildProviders(cfg)
	if err != nil {
		slog.Error("Failed to build LLM providers", "error", err)
		os.Exit(1)
	}
	if sidecar != nil {
		// Best effort: the provider stays out of rotation until its
		// availability probe passes, so a failed start is not fatal.
		if err := sidecar.EnsureStarted(ctx); err != nil {
			slog.Warn("Local model server unavailable", "error", err)
		}
		defer sidecar.Stop()
	}
	adapter := llm.NewAdapter(providers, cfg.LLM.RequestTimeout(), callObs)

	// 6. Diagnostic loop and session manager
	loopCfg := agent.DefaultConfig()
	loopCfg.MaxIterations = cfg.Loop.MaxToolIterations
	loopCfg.ForceToolFirstTurn = cfg.Loop.ForceToolOnFirstTurn
	loopCfg.FanOut = cfg.Loop.ParallelToolFanOut
	loopCfg.TurnSoftCeiling = cfg.Loop.TurnSoftCeiling()
	loopCfg.VerificationEnabled = cfg.Loop.VerificationEnabled
	loop := agent.New(st, adapter, registry, nil, loopCfg, toolObs)

	connManager := events.NewConnectionManager(wsWriteTimeout)
	manager := session.NewManager(st, loop, connManager)

	// 7. HTTP server
	httpServer := api.NewServer(cfg, manager, registry, connManager)
	if dbClient != nil {
		httpServer.SetHistory(dbClient, reader)
	}

	// 8. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := httpServer.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("netmedic started successfully",
		"listen_addr", cfg.ListenAddr,
		"providers", cfg.Stats().Providers)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop turns, then retention, then flush the
	// recorder, then close HTTP. The database client closes last via defer.
	engineDone := make(chan struct{})
	go func() {
		manager.Shutdown()
		close(engineDone)
	}()
	select {
	case <-engineDone:
		slog.Info("Session manager stopped gracefully")
	case <-time.After(engineShutdownTimeout):
		slog.Warn("Session manager shutdown timeout exceeded")
	}

	if retention != nil {
		retention.Stop()
	}
	if recorder != nil {
		recorder.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// buildProviders instantiates the configured providers in fallback order.
// At most one sidecar is returned: the one of the first local provider
// that configures it.
func buildProviders(cfg *config.Config) ([]llm.Provider, *llm.Sidecar, error) {
	var providers []llm.Provider
	var sidecar *llm.Sidecar

	for _, name := range cfg.ProviderOrder() {
		pc, err := cfg.GetProvider(name)
		if err != nil {
			return nil, nil, err
		}
		switch pc.Type {
		case config.ProviderTypeOpenAI:
			providers = append(providers, llm.NewOpenAIProvider(name, pc.Model, os.Getenv(pc.APIKeyEnv), pc.BaseURL))
		case config.ProviderTypeAnthropic:
			providers = append(providers, llm.NewAnthropicProvider(name, pc.Model, os.Getenv(pc.APIKeyEnv), pc.BaseURL))
		case config.ProviderTypeLocal:
			providers = append(providers, llm.NewLocalProvider(name, pc.Model, pc.BaseURL))
			if sidecar == nil && pc.Sidecar != nil {
				sidecar = llm.NewSidecar(pc.Sidecar.Command, pc.Sidecar.Args, pc.BaseURL)
			}
		}
	}
	return providers, sidecar, nil
}
