package exchange

import (
	"context"
	"fmt"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/internal/domain/student"
)

// EligibilityFilter selects the students a run may pair: pending, and
// without an active match in the current term.
type EligibilityFilter struct {
	students student.Repository
	checker  student.MatchChecker
}

// NewEligibilityFilter creates an EligibilityFilter.
func NewEligibilityFilter(students student.Repository, checker student.MatchChecker) *EligibilityFilter {
	return &EligibilityFilter{students: students, checker: checker}
}

// EligibleStudents returns eligible students of a slot in repository order,
// without duplicates. Any query failure is returned as-is and ends the run.
func (f *EligibilityFilter) EligibleStudents(ctx context.Context, slot student.Slot) ([]*student.AcademicRecord, error) {
	if !slot.IsValid() {
		return nil, shared.ErrInvalidBookSlot
	}

	pending, err := f.students.ListPendingBySlot(ctx, slot)
	if err != nil {
		return nil, shared.WrapError("exchange", "EligibleStudents", shared.ErrInternal,
			fmt.Sprintf("list pending slot %d students", slot), err)
	}

	seen := make(map[string]struct{}, len(pending))
	eligible := make([]*student.AcademicRecord, 0, len(pending))
	for _, rec := range pending {
		if _, dup := seen[rec.UserID]; dup {
			continue
		}
		seen[rec.UserID] = struct{}{}

		if rec.Slot != slot || !rec.IsPending() {
			continue
		}

		matched, err := f.checker.IsMatchedThisTerm(ctx, rec.UserID)
		if err != nil {
			return nil, shared.WrapError("exchange", "EligibleStudents", shared.ErrInternal,
				"check existing match for "+rec.UserID, err)
		}
		if matched {
			continue
		}
		eligible = append(eligible, rec)
	}
	return eligible, nil
}
