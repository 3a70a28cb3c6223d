package bootstrap

import (
	"fmt"

	"github.com/campus-bookx/exchange-hub/internal/infrastructure/scheduler"
	"github.com/campus-bookx/exchange-hub/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/campus-bookx/exchange-hub/internal/interface/http"
	"github.com/campus-bookx/exchange-hub/internal/interface/http/handlers"
)

// NewScheduler registers the matching job on the configured cron line.
// Expressions are evaluated in the campus timezone.
func (d *Dependencies) NewScheduler() (*scheduler.CronScheduler, error) {
	opts := []scheduler.CronOption{scheduler.WithCronLogger(d.Logger)}
	if d.Config.App.Location != nil {
		opts = append(opts, scheduler.WithLocation(d.Config.App.Location))
	}
	cs := scheduler.NewCronScheduler(opts...)

	job := jobs.NewRunMatchingJob(d.RunMatching, d.Config.Scheduler.JobTimeout, d.Logger)
	if err := cs.AddJob(job.Name(), d.Config.Scheduler.Cron, job); err != nil {
		return nil, fmt.Errorf("register %s: %w", job.Name(), err)
	}
	return cs, nil
}

// NewHTTPServer builds the trigger endpoint server.
func (d *Dependencies) NewHTTPServer() (*httpapi.Server, error) {
	h := d.Config.HTTP

	keys, err := handlers.NewAPIKeyAuth(h.APIKeyHashes)
	if err != nil {
		return nil, fmt.Errorf("api keys: %w", err)
	}
	if !keys.Enabled() {
		d.Logger.Warn("no API key hashes configured; protected routes are open")
	}

	cfg := httpapi.DefaultConfig()
	cfg.Host = h.Host
	cfg.Port = h.Port
	cfg.ReadTimeout = h.ReadTimeout
	cfg.WriteTimeout = h.WriteTimeout
	cfg.IdleTimeout = h.IdleTimeout
	cfg.RunTimeout = h.RunTimeout
	cfg.RateLimitPerMinute = h.RateLimit
	if len(h.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = h.AllowedOrigins
	}

	return httpapi.NewServer(cfg, httpapi.Dependencies{
		RunMatching:   d.RunMatching,
		ListRuns:      d.ListRuns,
		ListSlots:     d.ListSlots,
		HealthChecker: d.Health,
		APIKeys:       keys,
		Logger:        d.Logger,
	}), nil
}
