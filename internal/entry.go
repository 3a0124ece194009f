// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/refscan/internal/api"
	"github.com/starford/refscan/internal/apperr"
	"github.com/starford/refscan/internal/extract"
	"github.com/starford/refscan/internal/index"
	"github.com/starford/refscan/internal/mcpserver"
	"github.com/starford/refscan/internal/report"
	"github.com/starford/refscan/internal/resolve"
	"github.com/starford/refscan/internal/scan"
	"github.com/starford/refscan/internal/scanservice"
	"github.com/starford/refscan/internal/sse"
	"github.com/starford/refscan/internal/storage"
	"github.com/starford/refscan/internal/watcher"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{
		mode:    ModeScan,
		version: "dev",
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	if err := app.config.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if !app.mode.valid() {
		return fmt.Errorf("unknown mode %q", app.mode)
	}

	logger := app.newLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := app.build(logger)
	if err != nil {
		return err
	}
	defer p.close()

	switch app.mode {
	case ModeScan:
		return app.runScan(ctx, p)
	case ModeWatch:
		return app.runWatch(ctx, p, logger)
	case ModeServe:
		return app.runServe(ctx, p, logger)
	default:
		return app.runMCP(ctx, p, logger)
	}
}

// newLogger writes JSON to stdout for the server and text to stderr
// otherwise, leaving stdout to the console report or the MCP stream.
func (a *application) newLogger() *slog.Logger {
	hopts := &slog.HandlerOptions{Level: a.config.App.LogLevel}
	if a.mode == ModeServe {
		return slog.New(slog.NewJSONHandler(a.stdout, hopts))
	}
	return slog.New(slog.NewTextHandler(a.stderr, hopts))
}

// pipeline is everything built from the configuration.
type pipeline struct {
	store      *storage.FS
	svc        *scanservice.Service
	db         *index.DB
	reportPath string
	dbPath     string
	starts     []func()
	hooks      []func(*scan.Outcome, error)
}

func (p *pipeline) close() {
	if p.db != nil {
		_ = p.db.Close()
	}
}

func (p *pipeline) onStart() {
	for _, h := range p.starts {
		h()
	}
}

func (p *pipeline) onScan(out *scan.Outcome, err error) {
	for _, h := range p.hooks {
		h(out, err)
	}
}

func (a *application) build(logger *slog.Logger) (*pipeline, error) {
	cfg := a.config

	ext, err := extract.New(cfg.Extract.Rules)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	cls, err := resolve.NewClassifier(cfg.Assets.Categories)
	if err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}

	exts := cfg.Scan.FileExtensions
	if len(exts) == 0 {
		exts = ext.Extensions()
	}
	store, err := storage.NewFS(cfg.Scan.BaseDir, storage.Filter{
		Extensions: exts,
		SkipDirs:   cfg.Scan.SkipDirs,
		Ignore:     cfg.Scan.Ignore,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	reportPath, err := cfg.Scan.OutputPath()
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	stats, err := resolve.NewCachedExister(store, 0)
	if err != nil {
		return nil, fmt.Errorf("init stat cache: %w", err)
	}
	res := resolve.New(cfg.Resolve.Options(), stats)

	p := &pipeline{store: store, reportPath: reportPath}
	scanOpts := []scan.Option{
		scan.WithStatCache(stats),
		scan.WithLogger(logger),
		scan.WithWorkers(cfg.Scan.Workers),
	}
	svcOpts := []scanservice.Option{
		scanservice.WithReportPath(reportPath),
		scanservice.WithLogger(logger),
		scanservice.WithStartHook(p.onStart),
		scanservice.WithScanHook(p.onScan),
	}

	dbPath, err := cfg.SQLite.DatabasePath(store.Root(), a.mode.longRunning())
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		db, err := index.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		p.db = db
		p.dbPath = dbPath
		scanOpts = append(scanOpts, scan.WithCache(db))
		svcOpts = append(svcOpts, scanservice.WithIndex(db))
	}

	scanner := scan.New(store, ext, res, cls, cfg.Scan.SourceRoot, scanOpts...)
	p.svc = scanservice.New(scanner, svcOpts...)

	logger.Debug("Configuration loaded",
		slog.String("base_dir", store.Root()),
		slog.String("source_root", cfg.Scan.SourceRoot),
		slog.String("output", reportPath),
		slog.String("sqlite_path", p.dbPath),
		slog.String("log_level", cfg.App.LogLevel.String()))
	return p, nil
}

func (a *application) printReport(out *scan.Outcome, reportPath string) error {
	return report.WriteConsole(a.stdout, out.Report, report.ConsoleOptions{
		NoColor:    a.noColor,
		ReportPath: reportPath,
	})
}

func (a *application) runScan(ctx context.Context, p *pipeline) error {
	out, err := p.svc.Rescan(ctx)
	if err != nil {
		return err
	}
	if err := a.printReport(out, p.reportPath); err != nil {
		return err
	}
	if a.config.Scan.FailOnMissing && out.Report.HasMissing() {
		return apperr.ErrMissingRefs
	}
	return nil
}

// watchOptions skips the report file, the cache database and the temp files
// of atomic writes so that a rescan never triggers another one.
func (a *application) watchOptions(p *pipeline) watcher.Options {
	root := p.store.Root()
	rel := func(abs string) string {
		r, err := filepath.Rel(root, abs)
		if err != nil {
			return ""
		}
		return filepath.ToSlash(r)
	}
	reportRel := rel(p.reportPath)
	dbRel := ""
	if p.dbPath != "" {
		dbRel = rel(p.dbPath)
	}

	return watcher.Options{
		Root:     root,
		Debounce: a.config.Watch.Debounce,
		SkipDir:  p.store.SkipsDir,
		Ignore: func(r string) bool {
			if r == reportRel || strings.HasPrefix(filepath.Base(r), ".refscan-tmp-") {
				return true
			}
			return dbRel != "" && strings.HasPrefix(r, dbRel)
		},
	}
}

func (a *application) runWatch(ctx context.Context, p *pipeline, logger *slog.Logger) error {
	if err := a.runScan(ctx, p); err != nil && !errors.Is(err, apperr.ErrMissingRefs) {
		return err
	}

	return watcher.Watch(ctx, a.watchOptions(p), logger, nil, func() {
		out, err := p.svc.Rescan(ctx)
		if err != nil {
			logger.Error("watch: rescan failed", slog.String("error", err.Error()))
			return
		}
		if err := a.printReport(out, p.reportPath); err != nil {
			logger.Error("watch: print report failed", slog.String("error", err.Error()))
		}
	})
}

func (a *application) runServe(ctx context.Context, p *pipeline, logger *slog.Logger) error {
	cfg := a.config

	broker := sse.NewBroker(15 * time.Second)
	defer broker.Close()

	p.starts = append(p.starts, broker.ScanStarted)
	p.hooks = append(p.hooks, func(out *scan.Outcome, err error) {
		if err != nil {
			broker.ScanFailed(err)
			return
		}
		broker.ScanCompleted(sse.ScanSummary{
			Files:          out.Files,
			References:     out.Report.TotalReferences,
			MissingModules: out.Report.MissingModules,
			MissingAssets:  out.Report.MissingAssets,
			DurationMS:     out.Duration.Milliseconds(),
		})
	})

	if _, err := p.svc.Rescan(ctx); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(p.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := p.svc.Latest(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"scanning"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watcher.Watch(gCtx, a.watchOptions(p), logger, broker.FileChanged, func() {
			if _, err := p.svc.Rescan(gCtx); err != nil {
				logger.Error("watch: rescan failed", slog.String("error", err.Error()))
			}
		})
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func (a *application) runMCP(ctx context.Context, p *pipeline, logger *slog.Logger) error {
	if _, err := p.svc.Rescan(ctx); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	}
	logger.Info("MCP server starting on stdio")
	return mcpserver.New(p.svc, a.version).ServeStdio()
}
