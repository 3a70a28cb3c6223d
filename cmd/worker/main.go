// Package main is the entry point of the exchange hub worker.
//
// The worker owns the cron trigger: it runs the matching engine on the
// configured schedule in the campus timezone. A run already in progress,
// from either the worker or the HTTP trigger, makes the tick a no-op.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campus-bookx/exchange-hub/config"
	"github.com/campus-bookx/exchange-hub/internal/bootstrap"
	"github.com/campus-bookx/exchange-hub/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "run the matching job once and exit")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, *once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, once bool) error {
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
	log := bootstrap.NewLogger(cfg.App).With(logger.Component("worker"))
	log.Info("starting exchange hub worker",
		logger.String("timezone", cfg.App.Timezone),
		logger.String("cron", cfg.Scheduler.Cron),
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
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	cs, err := deps.NewScheduler()
	if err != nil {
		return err
	}

	if once {
		for _, j := range cs.ListJobs() {
			res, err := cs.RunNow(ctx, j.Name)
			if err != nil {
				return fmt.Errorf("%s failed: %w", j.Name, err)
			}
			log.Info("job finished", logger.String("job", j.Name), logger.Latency(res.Duration))
		}
		return nil
	}

	if err := cs.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	for _, j := range cs.ListJobs() {
		log.Info("job scheduled",
			logger.String("job", j.Name),
			logger.String("next_run", j.NextRun.Format(time.RFC3339)),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	// Stop waits for a run in flight; bound it so a stuck commit cannot
	// block exit forever.
	done := make(chan struct{})
	go func() {
		cs.Stop()
		close(done)
	}()
	select {
	case <-done:
		log.Info("shutdown completed")
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("shutdown timed out with a job still running")
	}
	return nil
}
