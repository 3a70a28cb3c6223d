// Package jobs contains the scheduled jobs of the exchange hub.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/campus-bookx/exchange-hub/internal/application/command"
	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN MATCHING JOB
// ══════════════════════════════════════════════════════════════════════════════

// MatchingRunner executes one matching run.
type MatchingRunner interface {
	Handle(ctx context.Context, cmd command.RunMatchingCommand) (*command.RunMatchingResult, error)
}

// RunMatchingJob triggers the matching engine on a schedule.
type RunMatchingJob struct {
	runner  MatchingRunner
	timeout time.Duration
	log     *logger.Logger
}

// NewRunMatchingJob creates the job. A zero timeout means no limit beyond
// the scheduler's own context.
func NewRunMatchingJob(runner MatchingRunner, timeout time.Duration, log *logger.Logger) *RunMatchingJob {
	if log == nil {
		log = logger.Default()
	}
	return &RunMatchingJob{
		runner:  runner,
		timeout: timeout,
		log:     log.With(logger.Component("run_matching_job")),
	}
}

// Name implements scheduler.Job.
func (j *RunMatchingJob) Name() string { return "run_matching" }

// Description implements scheduler.Job.
func (j *RunMatchingJob) Description() string {
	return "Pairs pending slot 1 and slot 2 students into exchange slots"
}

// Run implements scheduler.Job. A run already in progress elsewhere is
// not a failure of this tick.
func (j *RunMatchingJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	res, err := j.runner.Handle(ctx, command.RunMatchingCommand{Trigger: exchange.TriggerCron})
	if errors.Is(err, shared.ErrRunInProgress) {
		j.log.Info("matching run already in progress, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info(res.Message,
		logger.RunID(res.RunID),
		logger.Int("matches_created", res.MatchesCreated),
	)
	return nil
}
