// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"

	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MATCHING RUNS QUERY
// Recent matching runs, newest first, for operators checking what the
// engine did and why it stopped.
// ══════════════════════════════════════════════════════════════════════════════

const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 100
)

// ListMatchingRunsQuery contains the query parameters.
type ListMatchingRunsQuery struct {
	// Limit defaults to 20 and is capped at 100.
	Limit int
}

// Validate normalizes the limit.
func (q *ListMatchingRunsQuery) Validate() error {
	if q.Limit < 0 {
		return shared.NewDomainError("exchange", "ListMatchingRuns", shared.ErrInvalidInput, "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = DefaultRunsLimit
	}
	if q.Limit > MaxRunsLimit {
		q.Limit = MaxRunsLimit
	}
	return nil
}

// ListMatchingRunsResult is the query result.
type ListMatchingRunsResult struct {
	Runs  []*exchange.MatchingRun `json:"runs"`
	Count int                     `json:"count"`
}

// ListMatchingRunsHandler handles the query.
type ListMatchingRunsHandler struct {
	runs exchange.RunRecorder
}

// NewListMatchingRunsHandler creates a new ListMatchingRunsHandler.
func NewListMatchingRunsHandler(runs exchange.RunRecorder) *ListMatchingRunsHandler {
	return &ListMatchingRunsHandler{runs: runs}
}

// Handle executes the query.
func (h *ListMatchingRunsHandler) Handle(ctx context.Context, q ListMatchingRunsQuery) (*ListMatchingRunsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	runs, err := h.runs.ListRecent(ctx, q.Limit)
	if err != nil {
		return nil, shared.WrapError("exchange", "ListMatchingRuns", shared.ErrInternal, "list matching runs", err)
	}
	if runs == nil {
		runs = []*exchange.MatchingRun{}
	}
	return &ListMatchingRunsResult{Runs: runs, Count: len(runs)}, nil
}
