package exchange

import (
	"context"
	"time"

	"github.com/campus-bookx/exchange-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAIRING ENGINE
//
// Greedy first-found matching. Slot-1 students are walked in input order and
// each takes the first unmatched slot-2 student at the highest tier:
//
//  1. same branch and division
//  2. same branch
//  3. anyone
//
// This does not maximise same-branch pairs over the whole batch.
// ══════════════════════════════════════════════════════════════════════════════

// SlotSource hands out schedule slots during a run.
type SlotSource interface {
	Allocate(ctx context.Context, date time.Time) (*ScheduleSlot, error)
	Reserve(slot *ScheduleSlot)
}

// Tier is the tie-break level at which a partner was found.
type Tier int

const (
	TierSameDivision Tier = iota + 1
	TierSameBranch
	TierAny
)

// AllocationFailure records a date on which no slot could be obtained.
type AllocationFailure struct {
	Date time.Time
	Err  error
}

// PairingResult is the outcome of one pairing pass.
type PairingResult struct {
	Pending []PendingMatch
	// Tiers is parallel to Pending.
	Tiers []Tier
	// WorkingDate is the date the last pair was scheduled on, or the start date.
	WorkingDate time.Time
	// Stopped is set when a capacity dead-end halted the pass.
	Stopped  bool
	Failures []AllocationFailure
}

// Pairer forms pairs and places them into schedule slots.
type Pairer struct {
	policy DatePolicy
}

// NewPairer creates a Pairer that advances dates with the given policy.
func NewPairer(policy DatePolicy) *Pairer {
	return &Pairer{policy: policy}
}

// Match pairs slot-1 students against slot-2 students starting on startDate.
// When a date has no capacity the pass moves to the next weekday once; a
// second failure stops the whole pass.
func (p *Pairer) Match(ctx context.Context, slot1, slot2 []*student.AcademicRecord, startDate time.Time, slots SlotSource) PairingResult {
	result := PairingResult{WorkingDate: startDate}

	matched := make(map[string]bool, len(slot1)+len(slot2))
	date := startDate

	for _, s1 := range slot1 {
		if matched[s1.UserID] {
			continue
		}

		partner, tier := findPartner(s1, slot2, matched)
		if partner == nil {
			continue
		}

		slot, err := slots.Allocate(ctx, date)
		if slot == nil {
			result.Failures = append(result.Failures, AllocationFailure{Date: date, Err: err})
			next := p.policy.Advance(date)
			slot, err = slots.Allocate(ctx, next)
			if slot == nil {
				result.Failures = append(result.Failures, AllocationFailure{Date: next, Err: err})
				result.Stopped = true
				break
			}
			date = next
		}

		matched[s1.UserID] = true
		matched[partner.UserID] = true
		slots.Reserve(slot)

		result.Pending = append(result.Pending, PendingMatch{Student1: s1, Student2: partner, Slot: slot})
		result.Tiers = append(result.Tiers, tier)
		result.WorkingDate = date
	}

	return result
}

// findPartner returns the first unmatched slot-2 student at the best tier.
func findPartner(s1 *student.AcademicRecord, slot2 []*student.AcademicRecord, matched map[string]bool) (*student.AcademicRecord, Tier) {
	var sameBranch, anyone *student.AcademicRecord

	for _, s2 := range slot2 {
		if matched[s2.UserID] || s2.UserID == s1.UserID {
			continue
		}
		if s1.SameDivision(s2) {
			return s2, TierSameDivision
		}
		if sameBranch == nil && s1.SameBranch(s2) {
			sameBranch = s2
		}
		if anyone == nil {
			anyone = s2
		}
	}

	if sameBranch != nil {
		return sameBranch, TierSameBranch
	}
	if anyone != nil {
		return anyone, TierAny
	}
	return nil, 0
}
