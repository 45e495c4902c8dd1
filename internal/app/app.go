// Package app wires all tartil subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP (and watches the config file when asked to)
// until the context is cancelled, and Shutdown releases everything in order.
//
// For testing, inject doubles via functional options (WithCatalog,
// WithMetrics, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/tartil/internal/catalog"
	"github.com/MrWong99/tartil/internal/config"
	"github.com/MrWong99/tartil/internal/health"
	"github.com/MrWong99/tartil/internal/observe"
	"github.com/MrWong99/tartil/internal/recitation"
	"github.com/MrWong99/tartil/internal/recitation/tajweed"
	"github.com/MrWong99/tartil/internal/resilience"
	"github.com/MrWong99/tartil/internal/server"
	"github.com/MrWong99/tartil/internal/transcription"
	"github.com/MrWong99/tartil/pkg/provider/stt"
)

// ShutdownTimeout bounds the graceful HTTP drain at the end of [App.Run].
const ShutdownTimeout = 15 * time.Second

// NamedSTT is one configured transcription backend.
type NamedSTT struct {
	Name     string
	Provider stt.Provider
}

// Providers holds the instantiated providers. Populated by main.go via the
// config registry.
type Providers struct {
	// STT lists the transcription backends in the order they are tried.
	// Empty means every analysis uses the synthetic transcript.
	STT []NamedSTT
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	levelVar       *slog.LevelVar
	version        string
	configPath     string
	watchInterval  time.Duration

	// Subsystems, initialised in New and torn down in Shutdown.
	engine      atomic.Pointer[recitation.Engine]
	catalog     catalog.Store
	chain       *resilience.STTFallback
	transcriber *transcription.Service
	health      *health.Handler
	handler     http.Handler
	httpServer  *http.Server
	watcher     *config.Watcher
	listenAddr  atomic.Value

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCatalog injects an ayah store instead of creating one from config.
// Configured ayah files are still imported into it.
func WithCatalog(s catalog.Store) Option {
	return func(a *App) { a.catalog = s }
}

// WithMetrics injects the metrics recorder. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler replaces the Prometheus handler mounted at
// observe.metrics_path. Default: promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLevelVar lets config reloads change the log level of the handler
// built on lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = lv }
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithConfigWatch makes Run poll the config file at path and apply
// reloadable changes. A non-positive interval keeps the watcher default.
func WithConfigWatch(path string, interval time.Duration) Option {
	return func(a *App) {
		a.configPath = path
		a.watchInterval = interval
	}
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. New performs all
// initialisation synchronously: engine construction, catalog connection and
// import, transcription chain assembly and HTTP routing.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.metricsHandler == nil {
		a.metricsHandler = promhttp.Handler()
	}

	// ── 1. Analysis engine ───────────────────────────────────────────────
	engine, err := newEngine(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("app: init engine: %w", err)
	}
	a.engine.Store(engine)

	// ── 2. Ayah catalog ──────────────────────────────────────────────────
	if err := a.initCatalog(ctx); err != nil {
		a.runClosers()
		return nil, fmt.Errorf("app: init catalog: %w", err)
	}

	// ── 3. Transcription ─────────────────────────────────────────────────
	a.initTranscription()

	// ── 4. Config watcher ────────────────────────────────────────────────
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.ApplyConfig, config.WithInterval(a.watchInterval))
		if err != nil {
			a.runClosers()
			return nil, fmt.Errorf("app: init config watcher: %w", err)
		}
		a.watcher = w
	}

	// ── 5. HTTP ──────────────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func newEngine(cfg recitation.ScoringConfig) (*recitation.Engine, error) {
	return recitation.NewEngine(cfg, tajweed.New(cfg))
}

// initCatalog sets up the ayah store and imports the configured files.
func (a *App) initCatalog(ctx context.Context) error {
	if a.catalog == nil {
		if dsn := a.cfg.Catalog.PostgresDSN; dsn != "" {
			store, err := catalog.Connect(ctx, dsn)
			if err != nil {
				return err
			}
			a.catalog = store
			a.closers = append(a.closers, func() error {
				store.Close()
				return nil
			})
			slog.Info("ayah catalog connected", "backend", "postgres")
		} else {
			a.catalog = catalog.NewMemStore()
		}
	}

	if files := a.cfg.Catalog.AyahFiles; len(files) > 0 {
		n, err := catalog.Import(ctx, a.catalog, files)
		if err != nil {
			return err
		}
		slog.Info("imported ayahs", "files", len(files), "count", n)
	}
	return nil
}

// initTranscription builds the fallback chain over the configured providers
// and the transcription service around it.
func (a *App) initTranscription() {
	tcfg := a.cfg.Transcription
	fbCfg := resilience.FallbackConfig{CircuitBreaker: tcfg.CircuitBreaker}
	fbCfg.CircuitBreaker.OnStateChange = func(name string, to resilience.State) {
		a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
	}

	for _, p := range a.providers.STT {
		if a.chain == nil {
			a.chain = resilience.NewSTTFallback(p.Provider, p.Name, fbCfg)
		} else {
			a.chain.AddFallback(p.Name, p.Provider)
		}
		if c, ok := p.Provider.(io.Closer); ok {
			a.closers = append(a.closers, c.Close)
		}
	}

	opts := []transcription.Option{
		transcription.WithTimeout(tcfg.Timeout),
		transcription.WithLanguage(tcfg.Language),
		transcription.WithMetrics(a.metrics),
	}
	if a.chain == nil {
		// A typed nil would hide the unconfigured state.
		a.transcriber = transcription.New(nil, opts...)
		slog.Warn("no transcription provider available; using synthetic transcripts")
		return
	}
	a.transcriber = transcription.New(a.chain, opts...)
	slog.Info("transcription chain ready", "providers", a.chain.Names())
}

// initHTTP builds the routed, instrumented handler and the server around it.
func (a *App) initHTTP() {
	a.health = health.New([]health.Checker{
		{Name: "catalog", Check: a.checkCatalog},
		{Name: "transcription", Check: a.checkTranscription},
	}, health.WithVersion(a.version))

	api := server.New(a.transcriber, a,
		server.WithCatalog(a.catalog),
		server.WithMetrics(a.metrics),
		server.WithMaxUploadBytes(a.cfg.Server.MaxUploadBytes),
		server.WithDefaultLanguage(a.cfg.Transcription.Language),
	)

	mux := http.NewServeMux()
	a.health.Register(mux)
	api.Register(mux)
	metricsPath := a.cfg.Observe.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	mux.Handle("GET "+metricsPath, a.metricsHandler)

	a.handler = observe.Middleware(a.metrics)(mux)
	a.httpServer = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *App) checkCatalog(ctx context.Context) error {
	_, err := a.catalog.Count(ctx)
	return err
}

// checkTranscription fails only when providers are configured and every one
// of them sits behind an open breaker. Without providers the synthetic
// transcript keeps the service usable.
func (a *App) checkTranscription(context.Context) error {
	if a.chain == nil {
		return nil
	}
	for _, st := range a.chain.States() {
		if st != resilience.StateOpen {
			return nil
		}
	}
	return errors.New("every transcription provider is unavailable")
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the fully routed HTTP handler, including middleware.
func (a *App) Handler() http.Handler { return a.handler }

// Engine returns the analysis engine currently in use.
func (a *App) Engine() *recitation.Engine { return a.engine.Load() }

// Catalog returns the ayah store.
func (a *App) Catalog() catalog.Store { return a.catalog }

// Addr returns the address the server listens on once Run has bound it,
// or "" before that.
func (a *App) Addr() string {
	s, _ := a.listenAddr.Load().(string)
	return s
}

// Analyze runs the current engine. It lets the HTTP layer pick up engines
// swapped in by config reloads.
func (a *App) Analyze(expectedText string, t recitation.Transcription) recitation.AnalysisResult {
	return a.engine.Load().Analyze(expectedText, t)
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// ApplyConfig applies the reloadable differences between old and new: the
// log level and the scoring thresholds. Changes to other sections are
// logged and take effect after a restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.ScoringChanged {
		engine, err := newEngine(new.Scoring)
		if err != nil {
			slog.Warn("keeping previous scoring config", "err", err)
		} else {
			a.engine.Store(engine)
			slog.Info("scoring config reloaded", "fields", d.ScoringFields)
		}
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and, when configured, polls the config file. It blocks
// until ctx is cancelled or the listener fails, then drains in-flight
// requests for up to [ShutdownTimeout]. On a clean stop it returns
// ctx.Err().
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.httpServer.Addr, err)
	}
	a.listenAddr.Store(ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String())
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("app: drain http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the watcher and runs the closers in order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.watcher != nil {
			a.watcher.Stop()
		}
		if err := a.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// runClosers releases what a failed New already opened.
func (a *App) runClosers() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}
