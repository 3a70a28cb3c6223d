// Package main is the entry point of the exchange hub API.
//
// The API exposes the matching trigger that the external scheduler calls
// on weekday mornings, plus read-only views over runs and slots. With
// SCHEDULER_ENABLED it also runs the cron trigger in-process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/campus-bookx/exchange-hub/config"
	"github.com/campus-bookx/exchange-hub/internal/bootstrap"
	"github.com/campus-bookx/exchange-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.NewLogger(cfg.App).With(logger.Component("api"))
	log.Info("starting exchange hub API",
		logger.String("timezone", cfg.App.Timezone),
		logger.String("address", cfg.HTTP.Addr()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DEPENDENCIES
	// ─────────────────────────────────────────────────────────────────────────
	deps, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build dependencies: %w", err)
	}
	defer deps.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. OPTIONAL IN-PROCESS SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		cs, err := deps.NewScheduler()
		if err != nil {
			return err
		}
		if err := cs.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer cs.Stop()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	srv, err := deps.NewHTTPServer()
	if err != nil {
		return err
	}
	errCh := srv.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Err(err))
		return err
	}
	log.Info("shutdown completed")
	return nil
}
