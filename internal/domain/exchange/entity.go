// Package exchange holds the matching engine's domain: terms, matches,
// schedule slots, the exchange-date policy, the slot allocator and the
// greedy pairing engine.
package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/campus-bookx/exchange-hub/internal/domain/student"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TERM
// ══════════════════════════════════════════════════════════════════════════════

// Term scopes match uniqueness: a student holds at most one active match per term.
type Term struct {
	Semester     string
	AcademicYear string
}

// IsZero reports whether the term was never resolved.
func (t Term) IsZero() bool {
	return strings.TrimSpace(t.Semester) == "" || strings.TrimSpace(t.AcademicYear) == ""
}

func (t Term) String() string {
	return t.Semester + " " + t.AcademicYear
}

// TermForDate applies the campus calendar: July to December is the Odd
// semester, January to June the Even one. Academic years start in July
// and are written as "2025-26".
func TermForDate(t time.Time) Term {
	c := t.In(timeutil.CampusTZ)
	startYear := c.Year()
	semester := "Odd"
	if c.Month() < time.July {
		startYear--
		semester = "Even"
	}
	return Term{
		Semester:     semester,
		AcademicYear: fmt.Sprintf("%d-%02d", startYear, (startYear+1)%100),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH
// ══════════════════════════════════════════════════════════════════════════════

// MatchStatus is the lifecycle state of an exchange match.
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusConfirmed MatchStatus = "confirmed"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusCancelled MatchStatus = "cancelled"
)

// IsActive reports whether the match still binds its students.
func (s MatchStatus) IsActive() bool {
	return s != MatchStatusCancelled
}

// Match is a persisted pairing of one slot-1 and one slot-2 student.
type Match struct {
	ID                string
	Student1ID        string
	Student2ID        string
	TimeSlotID        string
	LocationID        *string
	Status            MatchStatus
	Student1Confirmed bool
	Student2Confirmed bool
	Semester          string
	AcademicYear      string
	MatchedAt         time.Time
}

// PendingMatch is a pairing formed in memory during a run, before commit.
type PendingMatch struct {
	Student1 *student.AcademicRecord
	Student2 *student.AcademicRecord
	Slot     *ScheduleSlot
}

// ToMatch stamps a pending match with its identity, term and match time.
func (p PendingMatch) ToMatch(id string, term Term, matchedAt time.Time) *Match {
	return &Match{
		ID:           id,
		Student1ID:   p.Student1.UserID,
		Student2ID:   p.Student2.UserID,
		TimeSlotID:   p.Slot.ID,
		LocationID:   p.Slot.LocationID,
		Status:       MatchStatusMatched,
		Semester:     term.Semester,
		AcademicYear: term.AcademicYear,
		MatchedAt:    matchedAt,
	}
}

// StudentIDs returns the distinct user ids touched by a batch, in pairing order.
func StudentIDs(pending []PendingMatch) []string {
	seen := make(map[string]struct{}, len(pending)*2)
	ids := make([]string, 0, len(pending)*2)
	for _, p := range pending {
		for _, id := range []string{p.Student1.UserID, p.Student2.UserID} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// SlotUsage sums pending matches per schedule slot id.
func SlotUsage(pending []PendingMatch) map[string]int {
	usage := make(map[string]int)
	for _, p := range pending {
		usage[p.Slot.ID]++
	}
	return usage
}
