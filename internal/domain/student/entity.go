package student

import (
	"strings"
	"time"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Slot is the book cohort a student belongs to.
type Slot int

const (
	Slot1 Slot = 1
	Slot2 Slot = 2
)

// IsValid reports whether the slot is 1 or 2.
func (s Slot) IsValid() bool {
	return s == Slot1 || s == Slot2
}

// Opposite returns the slot a student is paired against.
func (s Slot) Opposite() Slot {
	if s == Slot1 {
		return Slot2
	}
	return Slot1
}

// DetermineSlot assigns odd roll numbers to slot 1 and even ones to slot 2.
func DetermineSlot(rollNumber int) Slot {
	if rollNumber%2 == 1 {
		return Slot1
	}
	return Slot2
}

// Branch is an engineering branch.
type Branch string

const (
	BranchCS    Branch = "CS"
	BranchIT    Branch = "IT"
	BranchEXTC  Branch = "EXTC"
	BranchMECH  Branch = "MECH"
	BranchCIVIL Branch = "CIVIL"
	BranchAIDS  Branch = "AIDS"
	BranchAIML  Branch = "AIML"
)

// IsValid checks the branch against the known set.
func (b Branch) IsValid() bool {
	switch b {
	case BranchCS, BranchIT, BranchEXTC, BranchMECH, BranchCIVIL, BranchAIDS, BranchAIML:
		return true
	default:
		return false
	}
}

// ExchangeStatus tracks a student's progress through the exchange.
type ExchangeStatus string

const (
	StatusPending   ExchangeStatus = "pending"
	StatusRequested ExchangeStatus = "requested"
	StatusMatched   ExchangeStatus = "matched"
	StatusCompleted ExchangeStatus = "completed"
	StatusCancelled ExchangeStatus = "cancelled"
)

// IsValid checks the status against the known set.
func (s ExchangeStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusRequested, StatusMatched, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC RECORD
// ══════════════════════════════════════════════════════════════════════════════

// AcademicRecord is the part of a student profile the exchange works with.
type AcademicRecord struct {
	ID             string
	UserID         string
	Slot           Slot
	Branch         Branch
	Division       string
	RollNumber     int
	BooksOwned     []string
	BooksRequired  []string
	ExchangeStatus ExchangeStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the fields the exchange depends on.
func (r *AcademicRecord) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "user id is required")
	}
	if !r.Slot.IsValid() {
		return shared.ErrInvalidBookSlot
	}
	if r.RollNumber <= 0 {
		return shared.ErrInvalidRollNumber
	}
	if !r.ExchangeStatus.IsValid() {
		return shared.ErrInvalidExchangeStatus
	}
	return nil
}

// IsPending reports whether the student is waiting for a match.
func (r *AcademicRecord) IsPending() bool {
	return r.ExchangeStatus == StatusPending
}

// SameBranch reports whether both records share a branch.
func (r *AcademicRecord) SameBranch(other *AcademicRecord) bool {
	return r.Branch == other.Branch
}

// SameDivision reports whether both records share branch and division.
func (r *AcademicRecord) SameDivision(other *AcademicRecord) bool {
	return r.SameBranch(other) && r.Division == other.Division
}
