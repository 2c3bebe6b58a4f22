package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/lpctl/service/app"
	"github.com/brojonat/lpctl/service/config"
	"github.com/brojonat/lpctl/service/logging"
	"github.com/brojonat/lpctl/service/metrics"
	"github.com/brojonat/lpctl/service/server"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logging.New("info", "json").Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Wire cache, chain, builder, pipeline, journal and events
	a, err := app.New(ctx, cfg, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to initialize liquidity service", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// The journal routes answer 503 when no store is configured.
	var store server.OperationStore
	if a.Store != nil {
		store = a.Store
	}

	httpServer := server.New(cfg.ServerAddr, a.Service, store, metricsCollector, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}
