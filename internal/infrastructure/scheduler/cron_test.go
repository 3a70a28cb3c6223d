package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-bookx/exchange-hub/pkg/logger"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

func TestParseCronExpression(t *testing.T) {
	for _, expr := range []string{"0 8 * * 1-5", "*/15 9-18 * * 1-5", "0,30 * 1 1-12/2 7", "5/10 * * * *"} {
		ce, err := ParseCronExpression(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, expr, ce.String())
	}

	for _, expr := range []string{"", "* * * *", "60 * * * *", "* 24 * * *", "* * 0 * *", "* * * 13 *", "* * * * 8", "*/0 * * * *", "a * * * *", "5-1 * * * *"} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, expr)
	}

	assert.Panics(t, func() { MustParseCronExpression("bad") })
}

func TestCronNext(t *testing.T) {
	workdays := MustParseCronExpression("0 8 * * 1-5")

	// Friday 2025-01-10 09:00 -> Monday 08:00.
	next := workdays.Next(timeutil.DateTime(2025, time.January, 10, 9, 0))
	assert.Equal(t, timeutil.DateTime(2025, time.January, 13, 8, 0), next)

	// Strictly after: at exactly 08:00 the next run is tomorrow.
	next = workdays.Next(timeutil.DateTime(2025, time.January, 13, 8, 0))
	assert.Equal(t, timeutil.DateTime(2025, time.January, 14, 8, 0), next)

	quarter := MustParseCronExpression("*/15 9-18 * * *")
	next = quarter.Next(timeutil.DateTime(2025, time.January, 13, 18, 50))
	assert.Equal(t, timeutil.DateTime(2025, time.January, 14, 9, 0), next)

	sunday := MustParseCronExpression("0 0 * * 7")
	next = sunday.Next(timeutil.DateTime(2025, time.January, 13, 0, 0))
	assert.Equal(t, time.Sunday, next.Weekday())

	never := MustParseCronExpression("0 0 31 2 *")
	assert.True(t, never.Next(timeutil.DateTime(2025, time.January, 1, 0, 0)).IsZero())
}

func newTestScheduler(now *time.Time) *CronScheduler {
	return NewCronScheduler(
		WithCronLogger(logger.Discard()),
		WithLocation(timeutil.CampusTZ),
		WithClock(func() time.Time { return *now }),
	)
}

func TestAddJob(t *testing.T) {
	now := timeutil.DateTime(2025, time.January, 10, 9, 0)
	cs := newTestScheduler(&now)
	job := JobFunc{JobName: "j", Fn: func(context.Context) error { return nil }}

	require.NoError(t, cs.AddJob("j", "0 8 * * 1-5", job))
	assert.ErrorIs(t, cs.AddJob("j", "0 8 * * 1-5", job), ErrJobAlreadyExists)
	assert.ErrorIs(t, cs.AddJob("nil", "0 8 * * *", nil), ErrNilJob)
	assert.Error(t, cs.AddJob("bad", "nope", job))

	jobs := cs.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, timeutil.DateTime(2025, time.January, 13, 8, 0), jobs[0].NextRun)
}

func TestRunNow(t *testing.T) {
	now := timeutil.DateTime(2025, time.January, 13, 7, 0)
	cs := newTestScheduler(&now)
	boom := errors.New("boom")
	calls := 0
	require.NoError(t, cs.AddJob("fails", "0 8 * * *", JobFunc{JobName: "fails", Fn: func(context.Context) error {
		calls++
		return boom
	}}))

	res, err := cs.RunNow(context.Background(), "fails")
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), cs.ListJobs()[0].RunCount)

	_, err = cs.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestTickRunsDueJobsAndSkipsOverlap(t *testing.T) {
	now := timeutil.DateTime(2025, time.January, 13, 7, 59)
	cs := newTestScheduler(&now)

	var runs atomic.Int32
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	require.NoError(t, cs.AddJob("slow", "* * * * *", JobFunc{JobName: "slow", Fn: func(context.Context) error {
		if runs.Add(1) == 1 {
			started.Done()
		}
		<-release
		return nil
	}}))

	now = now.Add(time.Minute)
	cs.tick(context.Background())
	started.Wait()

	// The first run is still going, so this tick is skipped.
	now = now.Add(time.Minute)
	cs.tick(context.Background())

	close(release)
	cs.wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, timeutil.DateTime(2025, time.January, 13, 8, 2), cs.ListJobs()[0].NextRun)
}

func TestStartStop(t *testing.T) {
	cs := NewCronScheduler(WithCronLogger(logger.Discard()))
	require.NoError(t, cs.Start(context.Background()))
	assert.ErrorIs(t, cs.Start(context.Background()), ErrSchedulerAlreadyRunning)
	cs.Stop()
	cs.Stop()
}
