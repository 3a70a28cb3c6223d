// Package student contains the academic-record side of a student as seen by
// the book exchange.
//
// A student owns one AcademicRecord that places them in a book slot (1 or 2),
// an engineering branch and a division. Slot-1 students own the books that
// slot-2 students need and vice versa, so every exchange pairs one of each.
//
// The exchange engine only reads records and moves ExchangeStatus from
// pending to matched. Profile onboarding and every later status change
// belong to other parts of the platform.
//
// # Lookups
//
// Eligible students for a run are obtained in two steps:
//
//	pending, err := repo.ListPendingBySlot(ctx, student.Slot1)
//	matched, err := checker.IsMatchedThisTerm(ctx, rec.UserID)
//
// Both are read-only and must preserve a deterministic order.
package student
