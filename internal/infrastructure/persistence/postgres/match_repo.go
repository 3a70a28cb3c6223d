package postgres

import (
	"context"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const matchesTable = "exchange_matches"

// MatchRepository resolves the current term and commits match batches.
type MatchRepository struct {
	conn *Connection
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(conn *Connection) *MatchRepository {
	return &MatchRepository{conn: conn}
}

// CurrentTerm calls the get_current_semester SQL function.
func (r *MatchRepository) CurrentTerm(ctx context.Context) (exchange.Term, error) {
	text, args, err := psql.Select("semester", "academic_year").From("get_current_semester()").Limit(1).ToSql()
	if err != nil {
		return exchange.Term{}, err
	}

	var term exchange.Term
	if err := r.conn.DB().QueryRow(ctx, text, args...).Scan(&term.Semester, &term.AcademicYear); err != nil {
		if IsNoRows(err) {
			return exchange.Term{}, shared.ErrTermUnavailable
		}
		return exchange.Term{}, fmt.Errorf("failed to resolve current semester: %w", err)
	}
	return term, nil
}

// Commit writes a batch in one transaction. The status flip only touches
// rows still pending and every capacity increment is bounded by
// max_exchanges; a shortfall in either rolls everything back.
func (r *MatchRepository) Commit(ctx context.Context, batch exchange.CommitBatch) (int, error) {
	if len(batch.Matches) == 0 {
		return 0, nil
	}

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := insertMatches(ctx, tx, batch.Matches); err != nil {
			return err
		}
		if err := markMatched(ctx, tx, batch.StudentIDs); err != nil {
			return err
		}
		for _, slotID := range batch.SlotIDs() {
			if err := consumeCapacity(ctx, tx, slotID, batch.SlotUsage[slotID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(batch.Matches), nil
}

func insertMatches(ctx context.Context, tx pgx.Tx, matches []*exchange.Match) error {
	insert := psql.Insert(matchesTable).Columns(
		"id", "student_1_id", "student_2_id", "time_slot_id", "location_id", "match_status",
		"student_1_confirmed", "student_2_confirmed", "semester", "academic_year", "matched_at",
	)
	for _, m := range matches {
		insert = insert.Values(
			m.ID, m.Student1ID, m.Student2ID, m.TimeSlotID, m.LocationID, string(m.Status),
			m.Student1Confirmed, m.Student2Confirmed, m.Semester, m.AcademicYear, m.MatchedAt,
		)
	}
	if _, err := exec(ctx, tx, insert); err != nil {
		return fmt.Errorf("failed to insert %d matches: %w", len(matches), err)
	}
	return nil
}

func markMatched(ctx context.Context, tx pgx.Tx, userIDs []string) error {
	tag, err := exec(ctx, tx, psql.Update(academicInfoTable).
		Set("exchange_status", string(student.StatusMatched)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"user_id": userIDs, "exchange_status": string(student.StatusPending)}))
	if err != nil {
		return fmt.Errorf("failed to update exchange status: %w", err)
	}
	if int(tag.RowsAffected()) != len(userIDs) {
		return shared.WrapError("exchange", "Commit", shared.ErrStudentNotPending,
			fmt.Sprintf("%d of %d students still pending", tag.RowsAffected(), len(userIDs)), nil)
	}
	return nil
}

func consumeCapacity(ctx context.Context, tx pgx.Tx, slotID string, n int) error {
	tag, err := exec(ctx, tx, psql.Update(timeSlotsTable).
		Set("current_exchanges", sq.Expr("current_exchanges + ?", n)).
		Where(sq.Eq{"id": slotID}).
		Where(sq.Expr("current_exchanges + ? <= max_exchanges", n)))
	if err != nil {
		return fmt.Errorf("failed to update slot %s capacity: %w", slotID, err)
	}
	if tag.RowsAffected() != 1 {
		return shared.WrapError("exchange", "Commit", shared.ErrCapacityExceeded,
			"slot "+slotID+" cannot take "+strconv.Itoa(n)+" more", nil)
	}
	return nil
}
