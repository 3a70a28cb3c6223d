// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/internal/domain/student"
	"github.com/campus-bookx/exchange-hub/pkg/logger"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN MATCHING COMMAND
// One pass of the matching engine: lock, resolve term, load eligible
// students of both slots, pair them into schedule slots and commit.
// ══════════════════════════════════════════════════════════════════════════════

// RunMatchingCommand starts a matching run.
type RunMatchingCommand struct {
	Trigger exchange.Trigger

	// CorrelationID for tracing (request id for HTTP runs).
	CorrelationID string
}

// Validate validates the command.
func (c RunMatchingCommand) Validate() error {
	switch c.Trigger {
	case exchange.TriggerHTTP, exchange.TriggerCron:
		return nil
	default:
		return fmt.Errorf("run_matching: invalid trigger %q", c.Trigger)
	}
}

// RunMatchingResult summarises a successful run. Runs that pair nobody are
// still successful.
type RunMatchingResult struct {
	RunID          string
	Message        string
	MatchesCreated int
	Term           exchange.Term
	ExchangeDate   time.Time
	EligibleSlot1  int
	EligibleSlot2  int
	StoppedEarly   bool
	MatchIDs       []string
	Events         []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// DefaultPublishTimeout bounds event delivery after a commit. The run lock
// is still held and the HTTP caller still waiting while events go out.
const DefaultPublishTimeout = 10 * time.Second

// RunMatchingDeps wires the handler's collaborators.
type RunMatchingDeps struct {
	Lock       exchange.RunLock
	Terms      exchange.TermResolver
	Students   student.Repository
	Checker    student.MatchChecker
	Slots      exchange.SlotRepository
	Locations  exchange.LocationRepository
	Committer  exchange.MatchCommitter
	Recorder   exchange.RunRecorder
	Publisher  shared.EventPublisher
	DatePolicy exchange.DatePolicy
	Allocation exchange.AllocatorOptions
	Logger     *logger.Logger

	// PublishTimeout bounds event delivery. Defaults to DefaultPublishTimeout.
	PublishTimeout time.Duration

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// RunMatchingHandler handles the RunMatchingCommand.
type RunMatchingHandler struct {
	lock        exchange.RunLock
	terms       exchange.TermResolver
	eligibility *exchange.EligibilityFilter
	allocator   *exchange.SlotAllocator
	pairer      *exchange.Pairer
	policy      exchange.DatePolicy
	committer   exchange.MatchCommitter
	recorder    exchange.RunRecorder
	publisher   shared.EventPublisher
	publishTTL  time.Duration
	log         *logger.Logger
	now         func() time.Time
	newID       func() string
}

// NewRunMatchingHandler creates a new RunMatchingHandler.
func NewRunMatchingHandler(d RunMatchingDeps) *RunMatchingHandler {
	if d.Now == nil {
		d.Now = timeutil.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Logger == nil {
		d.Logger = logger.Default()
	}
	if d.PublishTimeout <= 0 {
		d.PublishTimeout = DefaultPublishTimeout
	}
	if d.DatePolicy == (exchange.DatePolicy{}) {
		d.DatePolicy = exchange.DefaultDatePolicy()
	}
	return &RunMatchingHandler{
		lock:        d.Lock,
		terms:       d.Terms,
		eligibility: exchange.NewEligibilityFilter(d.Students, d.Checker),
		allocator:   exchange.NewSlotAllocator(d.Slots, d.Locations, d.Allocation),
		pairer:      exchange.NewPairer(d.DatePolicy),
		policy:      d.DatePolicy,
		committer:   d.Committer,
		recorder:    d.Recorder,
		publisher:   d.Publisher,
		publishTTL:  d.PublishTimeout,
		log:         d.Logger.With(logger.Component("matching_engine")),
		now:         d.Now,
		newID:       d.NewID,
	}
}

// Handle executes one matching run. The run is recorded whatever the outcome.
func (h *RunMatchingHandler) Handle(ctx context.Context, cmd RunMatchingCommand) (*RunMatchingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("exchange", "RunMatching", shared.ErrInvalidInput, "invalid command", err)
	}

	run := &exchange.MatchingRun{
		ID:        h.newID(),
		Trigger:   cmd.Trigger,
		StartedAt: h.now(),
	}
	log := h.log.With(logger.RunID(run.ID), logger.String("trigger", string(cmd.Trigger)))
	if cmd.CorrelationID != "" {
		log = log.WithRequestID(cmd.CorrelationID)
	}

	log.Info("matching run started")
	result, err := h.run(ctx, run, log)

	run.FinishedAt = h.now()
	if err != nil {
		run.Error = err.Error()
		log.Error("matching run failed", logger.Err(err), logger.Latency(run.FinishedAt.Sub(run.StartedAt)))
	} else {
		run.Success = true
		run.Message = result.Message
		run.MatchesCreated = result.MatchesCreated
		run.StoppedEarly = result.StoppedEarly
		log.Info("matching run finished",
			logger.Int("matches_created", result.MatchesCreated),
			logger.Bool("stopped_early", result.StoppedEarly),
			logger.Latency(run.FinishedAt.Sub(run.StartedAt)),
		)
	}
	h.record(ctx, run, log)

	return result, err
}

func (h *RunMatchingHandler) run(ctx context.Context, run *exchange.MatchingRun, log *logger.Logger) (*RunMatchingResult, error) {
	release, err := h.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrRunInProgress) {
			return nil, err
		}
		return nil, shared.WrapError("exchange", "AcquireRunLock", shared.ErrServiceUnavailable, "acquire run lock", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release run lock", logger.Err(err))
		}
	}()

	term, err := h.terms.CurrentTerm(ctx)
	if err != nil {
		return nil, shared.WrapError("exchange", "ResolveTerm", shared.ErrTermUnavailable, "resolve current term", err)
	}
	if term.IsZero() {
		return nil, shared.ErrTermUnavailable
	}
	run.Semester, run.AcademicYear = term.Semester, term.AcademicYear
	log = log.With(logger.Semester(term.Semester), logger.AcademicYear(term.AcademicYear))

	slot1, err := h.eligibility.EligibleStudents(ctx, student.Slot1)
	if err != nil {
		return nil, err
	}
	slot2, err := h.eligibility.EligibleStudents(ctx, student.Slot2)
	if err != nil {
		return nil, err
	}
	log.Info("eligible students loaded", logger.Int("slot_1", len(slot1)), logger.Int("slot_2", len(slot2)))

	exchangeDate := h.policy.NextValidExchangeDate(run.StartedAt)
	run.ExchangeDate = &exchangeDate

	result := &RunMatchingResult{
		RunID:         run.ID,
		Term:          term,
		ExchangeDate:  exchangeDate,
		EligibleSlot1: len(slot1),
		EligibleSlot2: len(slot2),
	}

	if len(slot1) == 0 || len(slot2) == 0 {
		result.Message = fmt.Sprintf("No pairs possible: %d slot 1 and %d slot 2 students eligible", len(slot1), len(slot2))
		return result, nil
	}

	pairing := h.pairer.Match(ctx, slot1, slot2, exchangeDate, h.allocator.NewSession())
	for _, f := range pairing.Failures {
		log.Warn("no exchange slot available", logger.Date("date", f.Date), logger.Err(f.Err))
	}
	result.StoppedEarly = pairing.Stopped

	if len(pairing.Pending) == 0 {
		result.Message = "No available exchange slots: " + stopReason(pairing)
		h.publish(ctx, log, shared.NewMatchingStoppedEvent(run.ID, lastTriedDate(pairing), 0))
		return result, nil
	}

	batch := exchange.NewCommitBatch(pairing.Pending, term, h.now(), h.newID)
	created, err := h.committer.Commit(ctx, batch)
	if err != nil {
		return nil, shared.WrapError("exchange", "Commit", shared.ErrCommitFailed,
			fmt.Sprintf("commit %d matches", len(batch.Matches)), err)
	}

	result.MatchesCreated = created
	result.MatchIDs = batch.MatchIDs()
	result.Message = fmt.Sprintf("Successfully matched %d pairs", created)
	if pairing.Stopped {
		result.Message += "; stopped early: " + stopReason(pairing)
	}

	result.Events = append(result.Events, shared.NewMatchesCreatedEvent(
		run.ID, term.Semester, term.AcademicYear, timeutil.FormatDate(exchangeDate),
		result.MatchIDs, batch.StudentIDs,
	))
	if pairing.Stopped {
		result.Events = append(result.Events, shared.NewMatchingStoppedEvent(run.ID, lastTriedDate(pairing), created))
	}
	h.publish(ctx, log, result.Events...)

	return result, nil
}

// publish delivers events best-effort.
func (h *RunMatchingHandler) publish(ctx context.Context, log *logger.Logger, events ...shared.Event) {
	if h.publisher == nil || len(events) == 0 {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.publishTTL)
	defer cancel()
	if err := h.publisher.Publish(pctx, events...); err != nil {
		log.Warn("failed to publish matching events", logger.Err(err), logger.Int("events", len(events)))
	}
}

// record stores the run log entry best-effort.
func (h *RunMatchingHandler) record(ctx context.Context, run *exchange.MatchingRun, log *logger.Logger) {
	if h.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.recorder.Record(rctx, run); err != nil {
		log.Warn("failed to record matching run", logger.Err(err))
	}
}

func stopReason(p exchange.PairingResult) string {
	switch len(p.Failures) {
	case 0:
		return "no slot allocated"
	case 1:
		return "no exchange slot available on " + timeutil.FormatDate(p.Failures[0].Date)
	default:
		n := len(p.Failures)
		return fmt.Sprintf("no exchange slot available on %s or %s",
			timeutil.FormatDate(p.Failures[n-2].Date), timeutil.FormatDate(p.Failures[n-1].Date))
	}
}

func lastTriedDate(p exchange.PairingResult) string {
	if n := len(p.Failures); n > 0 {
		return timeutil.FormatDate(p.Failures[n-1].Date)
	}
	return timeutil.FormatDate(p.WorkingDate)
}
