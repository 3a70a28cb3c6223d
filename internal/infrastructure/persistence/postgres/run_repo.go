package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

const matchingRunsTable = "matching_runs"

// RunRepository implements exchange.RunRecorder.
type RunRepository struct {
	conn *Connection
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(conn *Connection) *RunRepository {
	return &RunRepository{conn: conn}
}

// Record inserts a run log entry.
func (r *RunRepository) Record(ctx context.Context, run *exchange.MatchingRun) error {
	var exchangeDate *time.Time
	if run.ExchangeDate != nil {
		d := sqlDate(*run.ExchangeDate)
		exchangeDate = &d
	}

	_, err := exec(ctx, r.conn.DB(), psql.Insert(matchingRunsTable).
		Columns("id", "trigger", "started_at", "finished_at", "success", "matches_created",
			"semester", "academic_year", "exchange_date", "stopped_early", "message", "error").
		Values(run.ID, string(run.Trigger), run.StartedAt, run.FinishedAt, run.Success, run.MatchesCreated,
			nullIfEmpty(run.Semester), nullIfEmpty(run.AcademicYear), exchangeDate, run.StoppedEarly,
			nullIfEmpty(run.Message), nullIfEmpty(run.Error)))
	if err != nil {
		return fmt.Errorf("failed to record matching run: %w", err)
	}
	return nil
}

// ListRecent returns the newest runs first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*exchange.MatchingRun, error) {
	rows, err := query(ctx, r.conn.DB(), psql.Select(
		"id", "trigger", "started_at", "finished_at", "success", "matches_created",
		"COALESCE(semester, '')", "COALESCE(academic_year, '')", "exchange_date", "stopped_early",
		"COALESCE(message, '')", "COALESCE(error, '')").
		From(matchingRunsTable).
		OrderBy("started_at DESC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to list matching runs: %w", err)
	}
	defer rows.Close()

	var out []*exchange.MatchingRun
	for rows.Next() {
		var (
			run     exchange.MatchingRun
			trigger string
			date    *time.Time
		)
		if err := rows.Scan(&run.ID, &trigger, &run.StartedAt, &run.FinishedAt, &run.Success, &run.MatchesCreated,
			&run.Semester, &run.AcademicYear, &date, &run.StoppedEarly, &run.Message, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan matching run: %w", err)
		}
		run.Trigger = exchange.Trigger(trigger)
		if date != nil {
			d := timeutil.Date(date.Year(), date.Month(), date.Day())
			run.ExchangeDate = &d
		}
		out = append(out, &run)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
