// Command petspeak is the main entry point for the petspeak analysis server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/petspeakapp/petspeak/internal/analyzer"
	"github.com/petspeakapp/petspeak/internal/analyzer/anyllm"
	"github.com/petspeakapp/petspeak/internal/analyzer/mock"
	"github.com/petspeakapp/petspeak/internal/analyzer/openai"
	"github.com/petspeakapp/petspeak/internal/config"
	"github.com/petspeakapp/petspeak/internal/credit"
	"github.com/petspeakapp/petspeak/internal/health"
	"github.com/petspeakapp/petspeak/internal/history"
	"github.com/petspeakapp/petspeak/internal/identity"
	"github.com/petspeakapp/petspeak/internal/observe"
	"github.com/petspeakapp/petspeak/internal/resilience"
	"github.com/petspeakapp/petspeak/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "petspeak: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "petspeak: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("petspeak starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "petspeak"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := buildAnalyzer(cfg, reg)
	if err != nil {
		slog.Error("failed to build analysis provider", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	var (
		ledger   credit.Ledger
		recStore history.Store
		profiles identity.Store
		checkers []health.Checker
	)
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()

		pgLedger := credit.NewPostgresLedger(pool)
		pgHistory := history.NewPostgresStore(pool)
		pgProfiles := identity.NewPostgresStore(pool)
		for name, migrate := range map[string]func(context.Context) error{
			"credits":  pgLedger.Migrate,
			"history":  pgHistory.Migrate,
			"identity": pgProfiles.Migrate,
		} {
			if err := migrate(ctx); err != nil {
				slog.Error("migration failed", "store", name, "err", err)
				return 1
			}
		}
		ledger, recStore, profiles = pgLedger, pgHistory, pgProfiles
		checkers = append(checkers, health.Checker{Name: "database", Check: pool.Ping})
		slog.Info("using postgres storage")
	} else {
		ledger = credit.NewMemoryLedger()
		recStore = history.NewMemoryStore()
		profiles = identity.NewMemoryStore()
		slog.Warn("no postgres_dsn configured — using in-memory storage, data will not survive restarts")
	}

	// ── Config hot-reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.AnalyzerChanged {
			slog.Warn("analyzer provider configuration changed — restart required to apply")
		}
		if d.CreditsChanged {
			slog.Warn("credits configuration changed — restart required to apply")
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv, err := server.New(server.Deps{
		Analyzer:        provider,
		ProviderName:    cfg.Providers.Analyzer.Name,
		Ledger:          ledger,
		History:         recStore,
		Profiles:        profiles,
		SignupGrant:     cfg.Credits.SignupGrant,
		AnonymousPolicy: cfg.Credits.Anonymous,
		Logger:          logger,
		Health:          health.New(checkers...),
	})
	if err != nil {
		slog.Error("failed to assemble server", "err", err)
		return 1
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx, cfg.Server); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends are the chat backends reachable through any-llm-go. They
// interpret a transcription; they cannot hear the audio itself.
var anyllmBackends = []string{
	"anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
	"llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in analysis provider factories
// into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterAnalyzer("openai", func(entry config.ProviderEntry) (analyzer.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if entry.TranscriptionModel != "" {
			opts = append(opts, openai.WithTranscriptionModel(entry.TranscriptionModel))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, backend := range anyllmBackends {
		backend := backend
		reg.RegisterAnalyzer(backend, func(entry config.ProviderEntry) (analyzer.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// Deterministic canned results, for development without an API key.
	reg.RegisterAnalyzer("mock", func(config.ProviderEntry) (analyzer.Provider, error) {
		return &mock.Provider{}, nil
	})
}

// buildAnalyzer instantiates the configured primary provider and, when a
// fallback is configured, wraps both in a failover group.
func buildAnalyzer(cfg *config.Config, reg *config.Registry) (analyzer.Provider, error) {
	primary, err := reg.CreateAnalyzer(cfg.Providers.Analyzer)
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	if cfg.Providers.Fallback.Name == "" {
		return primary, nil
	}

	secondary, err := reg.CreateAnalyzer(cfg.Providers.Fallback)
	if err != nil {
		return nil, fmt.Errorf("fallback analyzer: %w", err)
	}
	group := resilience.NewAnalyzerFallback(primary, cfg.Providers.Analyzer.Name, resilience.FallbackConfig{})
	group.AddFallback(cfg.Providers.Fallback.Name, secondary)
	return group, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         petspeak — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Analyzer", cfg.Providers.Analyzer.Name, cfg.Providers.Analyzer.Model)
	printProvider("Fallback", cfg.Providers.Fallback.Name, cfg.Providers.Fallback.Model)
	storage := "in-memory"
	if cfg.Storage.PostgresDSN != "" {
		storage = "postgres"
	}
	fmt.Printf("║  Storage         : %-19s ║\n", storage)
	fmt.Printf("║  Anonymous       : %-19s ║\n", cfg.Credits.Anonymous)
	fmt.Printf("║  Signup grant    : %-19d ║\n", cfg.Credits.SignupGrant)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(disabled)"
	} else if model != "" {
		value = fmt.Sprintf("%s (%s)", name, model)
	}
	fmt.Printf("║  %-15s : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
