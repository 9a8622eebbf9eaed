// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/engine"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/loader"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/postservice"
	"github.com/starford/folio/internal/preview"
	"github.com/starford/folio/internal/render"
	"github.com/starford/folio/internal/sink"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/watch"
)

// components is the build pipeline shared by every command.
type components struct {
	store   index.Store
	sources *storage.FS
	svc     *postservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger(w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// wire opens the index and assembles the pipeline. The caller closes the
// store.
func (a *application) wire(logger *slog.Logger) (*components, error) {
	cfg := a.config

	logger.Info("Configuration loaded",
		slog.String("input_path", cfg.Blog.InputPath),
		slog.String("output_path", cfg.Blog.OutputPath),
		slog.String("index_backend", cfg.Index.Backend),
		slog.String("index_path", cfg.Index.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	sources, err := storage.NewFS(cfg.Blog.InputPath)
	if err != nil {
		return nil, fmt.Errorf("init sources: %w", err)
	}
	out, err := sink.New(cfg.Blog.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}
	renderer, err := render.New(cfg.Blog.RenderOptions())
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Index.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	store, err := index.Open(cfg.Index.Backend, cfg.Index.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	ld := loader.New(sources, cfg.Blog.LoaderOptions(), logger)
	lockPath := cfg.Index.Lock()
	build := func(ctx context.Context, force bool) (*engine.Report, error) {
		eng := engine.New(cfg.Blog.EngineConfig(a.force || force, lockPath), ld, renderer, out, store, logger)
		return eng.Run(ctx)
	}

	return &components{
		store:   store,
		sources: sources,
		svc:     postservice.NewService(store, sources, ld, build),
	}, nil
}

// Build runs a single reconciliation pass.
func Build(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger(app.logOut)

	c, err := app.wire(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	summary, err := c.svc.Build(ctx, false)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if summary.Failed > 0 {
		logger.Warn("Build finished with errors",
			slog.Int("failed", summary.Failed),
			slog.Any("errors", summary.Errors))
	}
	return nil
}

// Serve builds the site, then serves the output tree with live reload and
// rebuilds whenever sources change.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger(app.logOut)

	c, err := app.wire(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	if err := os.MkdirAll(cfg.Blog.MediaDir(), 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}
	media, err := api.NewMediaHandler(cfg.Blog.MediaDir(), path.Join("/", cfg.Blog.RootPath, cfg.Blog.MediaPath))
	if err != nil {
		return err
	}

	var ready atomic.Bool
	rebuild := func(ctx context.Context, reason string) {
		summary, err := c.svc.Build(ctx, false)
		if err != nil {
			logger.Error("Rebuild failed", slog.String("reason", reason), slog.String("error", err.Error()))
			broker.PublishBuild(map[string]string{"error": err.Error()}, true)
			return
		}
		ready.Store(true)
		broker.PublishBuild(summary, false)
	}

	handler := preview.NewRouter(preview.Options{
		OutputDir:      cfg.Blog.OutputPath,
		RootPath:       cfg.Blog.RootPath,
		Events:         broker,
		API:            api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, media),
		Ready:          ready.Load,
		AllowedOrigins: cfg.App.HTTP.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: handler,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Initial build, then watch for changes.
	g.Go(func() error {
		rebuild(gCtx, "startup")
		err := watch.Watch(gCtx, c.sources.Root(), watch.Options{
			Debounce: cfg.Watch.Debounce,
			Schedule: cfg.Watch.Schedule,
		}, logger, broker.PublishSourceEvent, rebuild)
		if err != nil {
			return fmt.Errorf("watcher error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// MCP serves the index over the Model Context Protocol on stdio. Logs go to
// stderr so they do not corrupt the protocol stream.
func MCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger(app.logOut)

	c, err := app.wire(logger)
	if err != nil {
		return err
	}
	defer c.store.Close()

	var media storage.Provider
	if err := os.MkdirAll(app.config.Blog.MediaDir(), 0o755); err == nil {
		if fs, err := storage.NewFS(app.config.Blog.MediaDir()); err == nil {
			media = fs
		}
	}
	if media == nil {
		logger.Warn("Media directory unavailable, upload_asset disabled")
	}

	srv := mcpserver.New(c.svc, media, app.version)
	logger.Info("MCP server starting on stdio")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
