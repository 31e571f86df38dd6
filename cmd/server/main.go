// Package main provides the entry point for the render service.
package main

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

	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/bootstrap"
	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/config"
	"github.com/mnbproductionsyt-jpg/yt-render-ffmpeg/internal/server"
)

// writeTimeoutMargin leaves room to write the error response after a render times out.
const writeTimeoutMargin = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting render service",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("scratch_dir", cfg.ScratchDir),
		slog.String("scale_mode", cfg.ScaleMode),
		slog.Int("max_concurrent_encodes", cfg.MaxConcurrentEncodes),
		slog.Duration("render_timeout", cfg.RenderTimeout),
		slog.Bool("publisher_enabled", cfg.PublisherEnabled()),
	)
	logger.Debug("effective configuration", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	logger.Info("scratch workspace ready", slog.String("root", deps.Scratch.Root()))

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.Pipeline, logger)
	router := server.NewRouter(handlers, logger, server.Config{
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RenderTimeout + writeTimeoutMargin, // renders run inside the request
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		return err
	}

	// In-flight renders get their full budget before the server gives up on them.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RenderTimeout+writeTimeoutMargin)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
