// Command tartil is the main entry point for the tartil recitation analysis
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/tartil/internal/app"
	"github.com/MrWong99/tartil/internal/config"
	"github.com/MrWong99/tartil/internal/observe"
	"github.com/MrWong99/tartil/pkg/provider/stt"
	"github.com/MrWong99/tartil/pkg/provider/stt/deepgram"
	"github.com/MrWong99/tartil/pkg/provider/stt/openai"
	"github.com/MrWong99/tartil/pkg/provider/stt/synthetic"
	"github.com/MrWong99/tartil/pkg/provider/stt/whisper"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envFile := flag.String("env-file", ".env", "optional .env file loaded before the config is parsed")
	watch := flag.Bool("watch", true, "reload scoring thresholds and log level when the config file changes")
	flag.Parse()

	// ── Environment + configuration ───────────────────────────────────────────
	if err := config.LoadEnvFiles(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "tartil: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "tartil: config file %q not found; starting with defaults\n", *configPath)
			cfg, err = config.LoadFromReader(strings.NewReader(""))
			*watch = false
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "tartil: %v\n", err)
			return 1
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})))

	slog.Info("tartil starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Observe.ServiceName,
		ServiceVersion: version,
	})
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

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	opts := []app.Option{
		app.WithLevelVar(levelVar),
		app.WithVersion(version),
	}
	if *watch {
		opts = append(opts, app.WithConfigWatch(*configPath, 0))
	}
	application, err := app.New(ctx, cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready; press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in STT factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptionString("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d, err := time.ParseDuration(entry.OptionString("timeout")); err == nil {
			opts = append(opts, openai.WithTimeout(d))
		}
		if n := entry.OptionInt("max_retries", -1); n >= 0 {
			opts = append(opts, openai.WithMaxRetries(n))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptionString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptionString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if n := entry.OptionInt("threads", 0); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// synthetic echoes the reference text; useful for demos and load tests.
	reg.RegisterSTT("synthetic", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []synthetic.Option
		if d, err := time.ParseDuration(entry.OptionString("word_spacing")); err == nil {
			opts = append(opts, synthetic.WithWordSpacing(d))
		}
		if d, err := time.ParseDuration(entry.OptionString("word_length")); err == nil {
			opts = append(opts, synthetic.WithWordLength(d))
		}
		return synthetic.New(opts...), nil
	})

	for _, name := range reg.STTNames() {
		slog.Debug("registered provider", "kind", "stt", "name", name)
	}
}

// buildProviders instantiates the configured STT chain using the registry.
// Unknown names are skipped with a warning; construction errors are fatal.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	for _, entry := range cfg.Providers.Chain() {
		p, err := reg.CreateSTT(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("provider not available; skipping", "kind", "stt", "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
		}
		ps.STT = append(ps.STT, app.NamedSTT{Name: entry.Name, Provider: p})
		slog.Info("provider created", "kind", "stt", "name", entry.Name)
	}
	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          tartil: startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	chain := cfg.Providers.Chain()
	if len(chain) == 0 {
		printRow("STT", "(synthetic only)")
	}
	for i, e := range chain {
		label := "STT"
		if i > 0 {
			label = fmt.Sprintf("STT fallback %d", i)
		}
		value := e.Name
		if e.Model != "" {
			value = e.Name + " / " + e.Model
		}
		printRow(label, value)
	}
	printRow("Timeout", cfg.Transcription.Timeout.String())
	printRow("Language", cfg.Transcription.Language)
	catalogBackend := "memory"
	if cfg.Catalog.PostgresDSN != "" {
		catalogBackend = "postgres"
	}
	printRow("Catalog", fmt.Sprintf("%s, %d file(s)", catalogBackend, len(cfg.Catalog.AyahFiles)))
	printRow("Upload limit", fmt.Sprintf("%d KiB", cfg.Server.MaxUploadBytes>>10))
	printRow("Metrics", cfg.Observe.MetricsPath)
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}
