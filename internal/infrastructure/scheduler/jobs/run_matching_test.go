package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campus-bookx/exchange-hub/internal/application/command"
	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/pkg/logger"
)

type stubRunner struct {
	err         error
	got         command.RunMatchingCommand
	hasDeadline bool
}

func (s *stubRunner) Handle(ctx context.Context, cmd command.RunMatchingCommand) (*command.RunMatchingResult, error) {
	s.got = cmd
	_, s.hasDeadline = ctx.Deadline()
	if s.err != nil {
		return nil, s.err
	}
	return &command.RunMatchingResult{RunID: "r1", Message: "Successfully matched 1 pairs", MatchesCreated: 1}, nil
}

func TestRunMatchingJob(t *testing.T) {
	runner := &stubRunner{}
	job := NewRunMatchingJob(runner, time.Minute, logger.Discard())

	assert.Equal(t, "run_matching", job.Name())
	assert.NotEmpty(t, job.Description())
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, exchange.TriggerCron, runner.got.Trigger)
	assert.True(t, runner.hasDeadline)
}

func TestRunMatchingJobSkipsWhenLocked(t *testing.T) {
	job := NewRunMatchingJob(&stubRunner{err: shared.ErrRunInProgress}, 0, logger.Discard())
	assert.NoError(t, job.Run(context.Background()))
}

func TestRunMatchingJobReportsFailure(t *testing.T) {
	boom := errors.New("db down")
	job := NewRunMatchingJob(&stubRunner{err: boom}, 0, nil)
	assert.ErrorIs(t, job.Run(context.Background()), boom)
}
