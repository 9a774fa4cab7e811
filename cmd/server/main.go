// Package main runs the HTTP API together with the backtest dispatcher:
// - REST endpoints for strategies, backtests and option chains
// - Worker pool executing queued backtests
// - Websocket progress streams and Prometheus metrics
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optionforge/internal/backtest"
	"optionforge/internal/config"
	"optionforge/internal/dispatcher"
	"optionforge/internal/httpapi"
	"optionforge/internal/ingestion"
	"optionforge/internal/observability"
	"optionforge/internal/stores"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	migrate := flag.Bool("migrate", false, "Apply database migrations on startup")
	seed := flag.Bool("seed", false, "Create the sample strategies if missing")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	engineLogger := log.New(io.Discard, "", 0)
	if cfg.Logging.Verbose {
		engineLogger = log.New(os.Stdout, "[engine] ", log.LstdFlags)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	set, err := stores.Open(ctx, cfg.Storage, stores.Options{Migrate: *migrate, Logger: logger})
	if err != nil {
		logger.Fatalf("Failed to open stores: %v", err)
	}
	defer set.Close()

	if *seed {
		n, err := ingestion.SeedStrategies(ctx, set.Strategies, logger)
		if err != nil {
			logger.Fatalf("Failed to seed strategies: %v", err)
		}
		logger.Printf("Seeded %d sample strategies", n)
	}

	engine := backtest.NewEngine(backtest.Options{
		Provider:   set.Quotes,
		Underlying: set.Closes,
		Logger:     engineLogger,
	})

	disp := dispatcher.New(dispatcher.Options{
		Runner:     engine,
		Runs:       set.Runs,
		Strategies: set.Strategies,
		Curves:     set.Curves,
		Workers:    cfg.Dispatcher.Workers,
		QueueSize:  cfg.Dispatcher.QueueSize,
		Defaults:   cfg.Backtest.Settings(),
		Metrics:    observability.DefaultMetrics,
		Logger:     log.New(os.Stdout, "[dispatcher] ", log.LstdFlags),
	})
	disp.Start(ctx)

	api := httpapi.New(httpapi.Options{
		Strategies: set.Strategies,
		Runs:       set.Runs,
		Quotes:     set.Quotes,
		Dispatcher: disp,
		Metrics:    observability.DefaultMetrics,
		Logger:     log.New(os.Stdout, "[httpapi] ", log.LstdFlags),
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown: %v", err)
		}
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	logger.Printf("Starting HTTP server on %s (%d workers)", cfg.Server.Addr, cfg.Dispatcher.Workers)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}

	// in-flight runs are marked FAILED with kind Canceled
	disp.Wait()
	close(done)

	logger.Println("Shutdown complete")
}
