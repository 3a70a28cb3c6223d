package student

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository reads academic records.
type Repository interface {
	// ListPendingBySlot returns records with the given slot and a pending
	// exchange status, ordered by creation time then id.
	ListPendingBySlot(ctx context.Context, slot Slot) ([]*AcademicRecord, error)

	// GetByUserID returns the record for a user or shared.ErrNotFound.
	GetByUserID(ctx context.Context, userID string) (*AcademicRecord, error)
}

// MatchChecker answers whether a student already holds a non-cancelled
// match in the current term.
type MatchChecker interface {
	IsMatchedThisTerm(ctx context.Context, userID string) (bool, error)
}
