package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/campus-bookx/exchange-hub/pkg/logger"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRON EXPRESSION
// ══════════════════════════════════════════════════════════════════════════════

// CronExpression is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
//   - "0 8 * * 1-5"  every workday at 08:00
//   - "*/15 9-18 * * 1-5"  every quarter hour of the exchange day
//
// Each field is a bitset of allowed values. Day-of-week accepts 0-7 with
// both 0 and 7 meaning Sunday.
type CronExpression struct {
	raw      string
	minutes  uint64
	hours    uint64
	days     uint64
	months   uint64
	weekdays uint64
}

type cronField struct {
	name     string
	min, max int
}

var cronFields = [5]cronField{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 7},
}

// ParseCronExpression parses a cron expression string.
// Each field supports *, n, n-m, */s, n-m/s and comma-separated lists.
func ParseCronExpression(expr string) (*CronExpression, error) {
	parts := strings.Fields(expr)
	if len(parts) != len(cronFields) {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(parts))
	}

	var sets [5]uint64
	for i, part := range parts {
		set, err := parseCronField(part, cronFields[i])
		if err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
		}
		sets[i] = set
	}

	// Fold 7 onto 0 so Sunday has one bit.
	if sets[4]&(1<<7) != 0 {
		sets[4] = sets[4]&^(1<<7) | 1
	}

	return &CronExpression{
		raw:      expr,
		minutes:  sets[0],
		hours:    sets[1],
		days:     sets[2],
		months:   sets[3],
		weekdays: sets[4],
	}, nil
}

// MustParseCronExpression parses a cron expression or panics.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

func parseCronField(s string, f cronField) (uint64, error) {
	var set uint64
	for _, term := range strings.Split(s, ",") {
		lo, hi, step := f.min, f.max, 1

		rangePart := term
		if i := strings.IndexByte(term, '/'); i >= 0 {
			n, err := strconv.Atoi(term[i+1:])
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("%s: invalid step in %q", f.name, term)
			}
			step = n
			rangePart = term[:i]
		}

		switch {
		case rangePart == "*":
		case strings.Contains(rangePart, "-"):
			bounds := strings.SplitN(rangePart, "-", 2)
			a, errA := strconv.Atoi(bounds[0])
			b, errB := strconv.Atoi(bounds[1])
			if errA != nil || errB != nil {
				return 0, fmt.Errorf("%s: invalid range %q", f.name, rangePart)
			}
			lo, hi = a, b
		default:
			n, err := strconv.Atoi(rangePart)
			if err != nil {
				return 0, fmt.Errorf("%s: invalid value %q", f.name, rangePart)
			}
			lo = n
			if step == 1 {
				hi = n
			}
		}

		if lo < f.min || hi > f.max || lo > hi {
			return 0, fmt.Errorf("%s: %q outside [%d-%d]", f.name, term, f.min, f.max)
		}
		for v := lo; v <= hi; v += step {
			set |= 1 << uint(v)
		}
	}
	return set, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after t, in t's location.
// A zero time means nothing matches within a year.
func (ce *CronExpression) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)
	limit := next.AddDate(1, 0, 0)

	for next.Before(limit) {
		switch {
		case !has(ce.months, int(next.Month())):
			next = time.Date(next.Year(), next.Month()+1, 1, 0, 0, 0, 0, next.Location())
		case !has(ce.days, next.Day()) || !has(ce.weekdays, int(next.Weekday())):
			next = time.Date(next.Year(), next.Month(), next.Day()+1, 0, 0, 0, 0, next.Location())
		case !has(ce.hours, next.Hour()):
			// Truncate rounds in UTC, which is off by 30 minutes in IST.
			next = time.Date(next.Year(), next.Month(), next.Day(), next.Hour()+1, 0, 0, 0, next.Location())
		case !has(ce.minutes, next.Minute()):
			next = next.Add(time.Minute)
		default:
			return next
		}
	}
	return time.Time{}
}

func has(set uint64, v int) bool {
	return set&(1<<uint(v)) != 0
}

// ══════════════════════════════════════════════════════════════════════════════
// CRON SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// CronJob is a registered job and its schedule state.
type CronJob struct {
	Name       string
	Expression *CronExpression
	Job        Job
	LastRun    time.Time
	NextRun    time.Time
	RunCount   int64
	LastResult *JobResult

	running bool
}

// CronScheduler runs jobs when their expressions match. A job whose
// previous run is still going is skipped for that tick.
type CronScheduler struct {
	mu       sync.RWMutex
	jobs     map[string]*CronJob
	log      *logger.Logger
	location *time.Location
	now      func() time.Time

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// CronOption configures the CronScheduler.
type CronOption func(*CronScheduler)

// WithLocation sets the timezone for cron expressions.
func WithLocation(loc *time.Location) CronOption {
	return func(cs *CronScheduler) {
		if loc != nil {
			cs.location = loc
		}
	}
}

// WithCronLogger sets the logger for the cron scheduler.
func WithCronLogger(l *logger.Logger) CronOption {
	return func(cs *CronScheduler) {
		if l != nil {
			cs.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CronOption {
	return func(cs *CronScheduler) {
		if now != nil {
			cs.now = now
		}
	}
}

// NewCronScheduler creates a scheduler evaluating expressions in the
// campus timezone by default.
func NewCronScheduler(opts ...CronOption) *CronScheduler {
	cs := &CronScheduler{
		jobs:     make(map[string]*CronJob),
		log:      logger.Default(),
		location: timeutil.CampusTZ,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(cs)
	}
	cs.log = cs.log.With(logger.Component("cron"))
	return cs
}

// AddJob registers a job under name with a cron expression.
func (cs *CronScheduler) AddJob(name, cronExpr string, job Job) error {
	if job == nil {
		return ErrNilJob
	}
	expr, err := ParseCronExpression(cronExpr)
	if err != nil {
		return err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, exists := cs.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	cj := &CronJob{
		Name:       name,
		Expression: expr,
		Job:        job,
		NextRun:    expr.Next(cs.now().In(cs.location)),
	}
	cs.jobs[name] = cj

	cs.log.Info("cron job added",
		logger.String("job", name),
		logger.String("expression", cronExpr),
		logger.String("next_run", cj.NextRun.Format(time.RFC3339)),
	)
	return nil
}

// ListJobs returns copies of all jobs ordered by next run.
func (cs *CronScheduler) ListJobs() []CronJob {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	out := make([]CronJob, 0, len(cs.jobs))
	for _, j := range cs.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].NextRun.Before(out[k].NextRun) })
	return out
}

// RunNow executes a job immediately and synchronously.
func (cs *CronScheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	cs.mu.Lock()
	cj, ok := cs.jobs[name]
	if !ok {
		cs.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if cj.running {
		cs.mu.Unlock()
		return &JobResult{JobName: name, Skipped: true}, nil
	}
	cj.running = true
	cs.mu.Unlock()

	res := cs.execute(ctx, cj)
	return &res, res.Error
}

// Start begins the scheduler loop. It returns immediately.
func (cs *CronScheduler) Start(ctx context.Context) error {
	cs.mu.Lock()
	if cs.running {
		cs.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	ctx, cs.cancel = context.WithCancel(ctx)
	cs.running = true
	cs.mu.Unlock()

	cs.log.Info("cron scheduler started", logger.String("timezone", cs.location.String()))

	cs.wg.Add(1)
	go cs.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for running jobs.
func (cs *CronScheduler) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	cs.cancel()
	cs.mu.Unlock()

	cs.wg.Wait()
	cs.log.Info("cron scheduler stopped")
}

func (cs *CronScheduler) loop(ctx context.Context) {
	defer cs.wg.Done()

	timer := time.NewTimer(cs.untilNextMinute())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			cs.tick(ctx)
			timer.Reset(cs.untilNextMinute())
		}
	}
}

func (cs *CronScheduler) untilNextMinute() time.Duration {
	now := cs.now()
	return now.Truncate(time.Minute).Add(time.Minute).Sub(now)
}

// tick starts every due job that is not already running.
func (cs *CronScheduler) tick(ctx context.Context) {
	now := cs.now().In(cs.location)

	cs.mu.Lock()
	var due []*CronJob
	for _, cj := range cs.jobs {
		if cj.NextRun.IsZero() || cj.NextRun.After(now) {
			continue
		}
		cj.NextRun = cj.Expression.Next(now)
		if cj.running {
			cs.log.Warn("cron job still running, skipping tick", logger.String("job", cj.Name))
			continue
		}
		cj.running = true
		due = append(due, cj)
	}
	cs.mu.Unlock()

	for _, cj := range due {
		cs.wg.Add(1)
		go func(cj *CronJob) {
			defer cs.wg.Done()
			cs.execute(ctx, cj)
		}(cj)
	}
}

// execute runs a job already marked running and records its result.
func (cs *CronScheduler) execute(ctx context.Context, cj *CronJob) JobResult {
	started := cs.now()
	cs.log.Info("running cron job", logger.String("job", cj.Name))

	err := cj.Job.Run(ctx)
	completed := cs.now()
	res := JobResult{
		JobName:     cj.Name,
		StartedAt:   started,
		CompletedAt: completed,
		Duration:    completed.Sub(started),
		Success:     err == nil,
		Error:       err,
	}

	cs.mu.Lock()
	cj.running = false
	cj.LastRun = started
	cj.RunCount++
	cj.LastResult = &res
	cs.mu.Unlock()

	if err != nil {
		cs.log.Error("cron job failed", logger.String("job", cj.Name), logger.Latency(res.Duration), logger.Err(err))
	} else {
		cs.log.Info("cron job completed", logger.String("job", cj.Name), logger.Latency(res.Duration))
	}
	return res
}
