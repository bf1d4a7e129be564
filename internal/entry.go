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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/inkhorn/easel/internal/api"
	"github.com/inkhorn/easel/internal/boardservice"
	"github.com/inkhorn/easel/internal/catalog"
	"github.com/inkhorn/easel/internal/imagegen"
	"github.com/inkhorn/easel/internal/mcpserver"
	"github.com/inkhorn/easel/internal/sse"
	"github.com/inkhorn/easel/internal/storage"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("gallery_path", cfg.Gallery.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker; board commits and gallery changes fan out through it.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	store, db, svc, err := buildService(cfg, logger, broker.PublishBoardEvent)
	if err != nil {
		return err
	}
	defer db.Close()
	defer svc.Close()

	apiRouter := api.NewRouter(svc, store, db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

	// Build chi router.
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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start gallery watcher with SSE callback.
	g.Go(func() error {
		if err := catalog.Watch(gCtx, db, store, cfg.Gallery.Path, logger, func(kind, path string) {
			broker.PublishGalleryEvent()
		}); err != nil {
			logger.Warn("gallery watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server. Logs go to stderr so stdout stays a
// clean protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	_, db, svc, err := buildService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()
	defer svc.Close()

	logger.Info("Starting MCP server on stdio")
	return mcpserver.New(svc).ServeStdio()
}

// buildService wires the storage, catalog, generation client, and board
// service from config. event may be nil.
func buildService(cfg *Config, logger *slog.Logger, event boardservice.EventFunc) (storage.Provider, *catalog.DB, *boardservice.Service, error) {
	if err := os.MkdirAll(cfg.Gallery.Path, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create gallery dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Gallery.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init catalog: %w", err)
	}

	// Run initial gallery sync.
	if err := catalog.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	gen := imagegen.New(imagegen.Config{
		Endpoint: cfg.Generation.Endpoint,
		Timeout:  cfg.Generation.Timeout(),
		Logger:   logger,
	})

	svc := boardservice.NewService(db, store, gen, boardservice.Config{
		CanvasWidth:    cfg.Canvas.Width,
		CanvasHeight:   cfg.Canvas.Height,
		MaxHistory:     cfg.Canvas.MaxHistory,
		DefaultPen:     cfg.Canvas.DefaultPen(),
		Models:         cfg.Generation.Models,
		DefaultModel:   cfg.Generation.Model,
		StyleHint:      cfg.Generation.StyleHint,
		FallbackAPIKey: cfg.Generation.APIKey,
	}, logger, event)

	return store, db, svc, nil
}
