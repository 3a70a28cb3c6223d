package exchange

import (
	"context"
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATORS
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// TermResolver returns the term every match of a run is stamped with.
type TermResolver interface {
	CurrentTerm(ctx context.Context) (Term, error)
}

// SlotRepository stores schedule slots.
type SlotRepository interface {
	// ListActiveForDate returns active slots on date ordered morning to evening.
	ListActiveForDate(ctx context.Context, date time.Time) ([]*ScheduleSlot, error)

	// ListForDate returns every slot on date, active or not, in period order.
	ListForDate(ctx context.Context, date time.Time) ([]*ScheduleSlot, error)

	// EnsureForDate creates the missing windows for date. Existing
	// (date, period) rows are left untouched. Returns how many were created.
	EnsureForDate(ctx context.Context, date time.Time, locationID *string, windows []Window, maxExchanges int) (int, error)
}

// LocationRepository reads exchange locations.
type LocationRepository interface {
	// DefaultLocation returns the first active location, or nil when none exist.
	DefaultLocation(ctx context.Context) (*Location, error)
}

// CommitBatch is everything one run writes.
type CommitBatch struct {
	Matches    []*Match
	StudentIDs []string
	// SlotUsage maps schedule slot id to the number of matches placed in it.
	SlotUsage map[string]int
}

// NewCommitBatch turns pending matches into a batch. newID supplies match ids.
func NewCommitBatch(pending []PendingMatch, term Term, matchedAt time.Time, newID func() string) CommitBatch {
	matches := make([]*Match, 0, len(pending))
	for _, p := range pending {
		matches = append(matches, p.ToMatch(newID(), term, matchedAt))
	}
	return CommitBatch{
		Matches:    matches,
		StudentIDs: StudentIDs(pending),
		SlotUsage:  SlotUsage(pending),
	}
}

// SlotIDs returns the batch's slot ids in a stable order.
func (b CommitBatch) SlotIDs() []string {
	ids := make([]string, 0, len(b.SlotUsage))
	for id := range b.SlotUsage {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MatchIDs returns the ids of the batch's matches.
func (b CommitBatch) MatchIDs() []string {
	ids := make([]string, len(b.Matches))
	for i, m := range b.Matches {
		ids[i] = m.ID
	}
	return ids
}

// MatchCommitter persists a batch: match rows, the pending to matched status
// flip and per-slot capacity increments. Either all of it lands or none.
type MatchCommitter interface {
	Commit(ctx context.Context, batch CommitBatch) (int, error)
}

// RunLock serializes matching runs across processes.
type RunLock interface {
	// Acquire returns shared.ErrRunInProgress when another run holds the lock.
	// The returned release must be called exactly once.
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN LOG
// ══════════════════════════════════════════════════════════════════════════════

// Trigger names what started a run.
type Trigger string

const (
	TriggerHTTP Trigger = "http"
	TriggerCron Trigger = "cron"
)

// MatchingRun is the audit record of one engine invocation.
type MatchingRun struct {
	ID             string     `json:"id"`
	Trigger        Trigger    `json:"trigger"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
	Success        bool       `json:"success"`
	MatchesCreated int        `json:"matches_created"`
	Semester       string     `json:"semester,omitempty"`
	AcademicYear   string     `json:"academic_year,omitempty"`
	ExchangeDate   *time.Time `json:"exchange_date,omitempty"`
	StoppedEarly   bool       `json:"stopped_early"`
	Message        string     `json:"message,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// RunRecorder stores and lists run records.
type RunRecorder interface {
	Record(ctx context.Context, run *MatchingRun) error
	ListRecent(ctx context.Context, limit int) ([]*MatchingRun, error)
}
