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

	"github.com/starford/docvault/internal/api"
	"github.com/starford/docvault/internal/explorer"
	"github.com/starford/docvault/internal/mcpserver"
	"github.com/starford/docvault/internal/sse"
	"github.com/starford/docvault/internal/storage"
	"github.com/starford/docvault/internal/watcher"
)

func (app *application) setup() (*slog.Logger, *storage.FS, error) {
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("base_dir", cfg.Vault.BaseDir),
		slog.Bool("watch", cfg.Vault.Watch),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure the vault base directory exists.
	if err := os.MkdirAll(cfg.Vault.BaseDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create base dir: %w", err)
	}

	opts := append(cfg.Vault.StoreOptions(), storage.WithLogger(logger))
	store, err := storage.NewFS(cfg.Vault.BaseDir, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	return logger, store, nil
}

// Handler builds the root HTTP handler: health checks plus the API under /api.
func Handler(store storage.Provider, opener storage.Revealer, cfg *Config, events http.Handler) http.Handler {
	apiRouter := api.NewRouter(store, opener, cfg.Auth.AuthEnabled(), cfg.Auth.Token, cfg.Vault.ImportRoots, events)

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
		if _, err := os.Stat(cfg.Vault.BaseDir); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"base dir unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	logger, store, err := app.setup()
	if err != nil {
		return err
	}
	cfg := app.config

	opener := app.opener
	if opener == nil {
		opener = explorer.New()
	}

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.TreeThrottle)
	defer broker.Close()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: Handler(store, opener, cfg, broker),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	if cfg.Vault.Watch {
		g.Go(func() error {
			err := watcher.Watch(gCtx, store.Base(), store, watcher.DefaultDebounce, logger, func(ev watcher.Event) {
				broker.PublishVaultEvent(ev.Kind, ev.VaultID, ev.Path)
			})
			if err != nil {
				// Serving continues without live updates.
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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
		if !app.noSignal {
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)
		}

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stop the watcher too.
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the vault tools over stdio until the client disconnects.
// Logs go to stderr since stdout carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app := newApplication(opts)
	logger, store, err := app.setup()
	if err != nil {
		return err
	}
	logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(store).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
