package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/internal/domain/student"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// ───────────────────────────────────────────────────────────────────────────────
// Students
// ───────────────────────────────────────────────────────────────────────────────

// ListPendingBySlot implements student.Repository in insertion order.
func (s *Store) ListPendingBySlot(ctx context.Context, slot student.Slot) ([]*student.AcademicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpListPending); err != nil {
		return nil, err
	}

	out := make([]*student.AcademicRecord, 0)
	for _, rec := range s.students {
		if rec.Slot == slot && rec.ExchangeStatus == student.StatusPending {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetByUserID implements student.Repository.
func (s *Store) GetByUserID(ctx context.Context, userID string) (*student.AcademicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec := s.studentByUserID(userID); rec != nil {
		cp := *rec
		return &cp, nil
	}
	return nil, shared.WrapError("student", "GetByUserID", shared.ErrNotFound, "academic record not found", nil)
}

// IsMatchedThisTerm implements student.MatchChecker.
func (s *Store) IsMatchedThisTerm(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpIsMatched); err != nil {
		return false, err
	}

	term := s.currentTerm()
	for _, m := range s.matches {
		if !m.Status.IsActive() || m.Semester != term.Semester || m.AcademicYear != term.AcademicYear {
			continue
		}
		if m.Student1ID == userID || m.Student2ID == userID {
			return true, nil
		}
	}
	return false, nil
}

// ───────────────────────────────────────────────────────────────────────────────
// Term
// ───────────────────────────────────────────────────────────────────────────────

// CurrentTerm implements exchange.TermResolver.
func (s *Store) CurrentTerm(ctx context.Context) (exchange.Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpCurrentTerm); err != nil {
		return exchange.Term{}, err
	}
	return s.currentTerm(), nil
}

func (s *Store) currentTerm() exchange.Term {
	if s.term != nil {
		return *s.term
	}
	return exchange.TermForDate(s.now())
}

// ───────────────────────────────────────────────────────────────────────────────
// Locations and slots
// ───────────────────────────────────────────────────────────────────────────────

// DefaultLocation implements exchange.LocationRepository.
func (s *Store) DefaultLocation(ctx context.Context) (*exchange.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpLocation); err != nil {
		return nil, err
	}
	for _, loc := range s.locations {
		if loc.IsActive {
			cp := *loc
			return &cp, nil
		}
	}
	return nil, nil
}

// ListActiveForDate implements exchange.SlotRepository.
func (s *Store) ListActiveForDate(ctx context.Context, date time.Time) ([]*exchange.ScheduleSlot, error) {
	return s.listForDate(date, true)
}

// ListForDate implements exchange.SlotRepository.
func (s *Store) ListForDate(ctx context.Context, date time.Time) ([]*exchange.ScheduleSlot, error) {
	return s.listForDate(date, false)
}

func (s *Store) listForDate(date time.Time, activeOnly bool) ([]*exchange.ScheduleSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpListSlots); err != nil {
		return nil, err
	}

	day := timeutil.StartOfDay(date)
	found := make([]exchange.ScheduleSlot, 0, 3)
	for _, sl := range s.slots {
		if sl.Date.Equal(day) && (sl.IsActive || !activeOnly) {
			found = append(found, *sl)
		}
	}
	sortSlots(found)

	out := make([]*exchange.ScheduleSlot, len(found))
	for i := range found {
		out[i] = &found[i]
	}
	return out, nil
}

// EnsureForDate implements exchange.SlotRepository. A (date, period) pair
// that already exists is skipped, mirroring ON CONFLICT DO NOTHING.
func (s *Store) EnsureForDate(ctx context.Context, date time.Time, locationID *string, windows []exchange.Window, maxExchanges int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpEnsureSlots); err != nil {
		return 0, err
	}

	day := timeutil.StartOfDay(date)
	existing := make(map[exchange.Period]bool)
	for _, sl := range s.slots {
		if sl.Date.Equal(day) {
			existing[sl.Period] = true
		}
	}

	created := 0
	for _, w := range windows {
		if existing[w.Period] {
			continue
		}
		sl := exchange.NewScheduleSlot(uuid.NewString(), day, w, locationID, maxExchanges)
		sl.CreatedAt = s.now()
		s.slots[sl.ID] = sl
		created++
	}
	return created, nil
}

// ───────────────────────────────────────────────────────────────────────────────
// Commit
// ───────────────────────────────────────────────────────────────────────────────

// Commit implements exchange.MatchCommitter. Every guard is checked before
// anything is written, so a failed commit leaves the store untouched.
func (s *Store) Commit(ctx context.Context, batch exchange.CommitBatch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpCommit); err != nil {
		return 0, err
	}

	for _, id := range batch.StudentIDs {
		rec := s.studentByUserID(id)
		if rec == nil || rec.ExchangeStatus != student.StatusPending {
			return 0, shared.WrapError("exchange", "Commit", shared.ErrStudentNotPending, id, nil)
		}
	}
	for _, id := range batch.SlotIDs() {
		sl, ok := s.slots[id]
		if !ok || sl.CurrentExchanges+batch.SlotUsage[id] > sl.MaxExchanges {
			return 0, shared.WrapError("exchange", "Commit", shared.ErrCapacityExceeded, id, nil)
		}
	}

	now := s.now()
	for _, m := range batch.Matches {
		cp := *m
		s.matches = append(s.matches, &cp)
	}
	for _, id := range batch.StudentIDs {
		rec := s.studentByUserID(id)
		rec.ExchangeStatus = student.StatusMatched
		rec.UpdatedAt = now
	}
	for id, n := range batch.SlotUsage {
		s.slots[id].CurrentExchanges += n
	}
	return len(batch.Matches), nil
}

// ───────────────────────────────────────────────────────────────────────────────
// Run log
// ───────────────────────────────────────────────────────────────────────────────

// Record implements exchange.RunRecorder.
func (s *Store) Record(ctx context.Context, run *exchange.MatchingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpRecordRun); err != nil {
		return err
	}
	cp := *run
	s.runs = append(s.runs, &cp)
	return nil
}

// ListRecent implements exchange.RunRecorder, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*exchange.MatchingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*exchange.MatchingRun, 0, len(s.runs))
	for _, r := range s.runs {
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
