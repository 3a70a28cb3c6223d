// Package memory is an in-process implementation of every exchange
// repository. It backs local development and the engine's tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/internal/domain/student"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// Operation names accepted by FailOn.
const (
	OpListPending = "list_pending"
	OpIsMatched   = "is_matched"
	OpCurrentTerm = "current_term"
	OpListSlots   = "list_slots"
	OpEnsureSlots = "ensure_slots"
	OpLocation    = "default_location"
	OpCommit      = "commit"
	OpRecordRun   = "record_run"
)

// Store keeps all tables behind one mutex.
type Store struct {
	mu sync.RWMutex

	students  []*student.AcademicRecord // insertion order
	locations []*exchange.Location
	slots     map[string]*exchange.ScheduleSlot
	matches   []*exchange.Match
	runs      []*exchange.MatchingRun

	term     *exchange.Term
	now      func() time.Time
	failures map[string]error
}

// Option configures a Store.
type Option func(*Store)

// WithTerm pins the current term instead of deriving it from the calendar.
func WithTerm(t exchange.Term) Option {
	return func(s *Store) { s.term = &t }
}

// WithClock overrides the clock used for term derivation.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		slots:    make(map[string]*exchange.ScheduleSlot),
		now:      timeutil.Now,
		failures: make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailOn makes the named operation return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	return s.failures[op]
}

// ═══════════════════════════════════════════════════════════════════════════
// Seeding
// ═══════════════════════════════════════════════════════════════════════════

// AddStudent inserts an academic record. Missing ids and timestamps are filled in.
func (s *Store) AddStudent(rec student.AcademicRecord) error {
	if rec.ExchangeStatus == "" {
		rec.ExchangeStatus = student.StatusPending
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.students {
		if existing.UserID == rec.UserID {
			return shared.WrapError("student", "Create", shared.ErrAlreadyExists, "academic record exists for "+rec.UserID, nil)
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.UpdatedAt = rec.CreatedAt
	s.students = append(s.students, &rec)
	return nil
}

// AddLocation inserts an exchange location.
func (s *Store) AddLocation(loc exchange.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = s.now()
	}
	s.locations = append(s.locations, &loc)
}

// AddSlot inserts a schedule slot as-is.
func (s *Store) AddSlot(slot exchange.ScheduleSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	slot.Date = timeutil.StartOfDay(slot.Date)
	s.slots[slot.ID] = &slot
}

// AddMatch inserts a match as-is.
func (s *Store) AddMatch(m exchange.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.matches = append(s.matches, &m)
}

// ═══════════════════════════════════════════════════════════════════════════
// Inspection
// ═══════════════════════════════════════════════════════════════════════════

// Matches returns a copy of every stored match in insertion order.
func (s *Store) Matches() []exchange.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.Match, len(s.matches))
	for i, m := range s.matches {
		out[i] = *m
	}
	return out
}

// Slots returns a copy of every slot ordered by date then period.
func (s *Store) Slots() []exchange.ScheduleSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.ScheduleSlot, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, *sl)
	}
	sortSlots(out)
	return out
}

// Student returns a copy of the record for userID.
func (s *Store) Student(userID string) (student.AcademicRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec := s.studentByUserID(userID); rec != nil {
		return *rec, true
	}
	return student.AcademicRecord{}, false
}

// SetExchangeStatus changes a student's status, as admin flows would.
func (s *Store) SetExchangeStatus(userID string, status student.ExchangeStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.studentByUserID(userID); rec != nil {
		rec.ExchangeStatus = status
		rec.UpdatedAt = s.now()
		return true
	}
	return false
}

func (s *Store) studentByUserID(userID string) *student.AcademicRecord {
	for _, rec := range s.students {
		if rec.UserID == userID {
			return rec
		}
	}
	return nil
}

func sortSlots(slots []exchange.ScheduleSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].Period.Order() < slots[j].Period.Order()
	})
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
