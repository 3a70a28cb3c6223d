package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const academicInfoTable = "student_academic_info"

var academicInfoColumns = []string{
	"id", "user_id", "slot", "branch", "division", "roll_number",
	"books_owned", "books_required", "exchange_status", "created_at", "updated_at",
}

// StudentRepository implements student.Repository and student.MatchChecker.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// ListPendingBySlot returns pending records of a slot ordered by creation
// time, with the primary key as tie-break so runs are reproducible.
func (r *StudentRepository) ListPendingBySlot(ctx context.Context, slot student.Slot) ([]*student.AcademicRecord, error) {
	rows, err := query(ctx, r.conn.DB(), psql.Select(academicInfoColumns...).
		From(academicInfoTable).
		Where(sq.Eq{"slot": int(slot), "exchange_status": string(student.StatusPending)}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending students: %w", err)
	}
	defer rows.Close()

	var out []*student.AcademicRecord
	for rows.Next() {
		rec, err := scanAcademicRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetByUserID returns the academic record of a user.
func (r *StudentRepository) GetByUserID(ctx context.Context, userID string) (*student.AcademicRecord, error) {
	rows, err := query(ctx, r.conn.DB(), psql.Select(academicInfoColumns...).
		From(academicInfoTable).
		Where(sq.Eq{"user_id": userID}).
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to get academic record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, shared.WrapError("student", "GetByUserID", shared.ErrNotFound, "academic record not found", nil)
	}
	return scanAcademicRecord(rows)
}

// IsMatchedThisTerm calls the is_student_matched_this_semester SQL function.
func (r *StudentRepository) IsMatchedThisTerm(ctx context.Context, userID string) (bool, error) {
	text, args, err := psql.Select().Column(sq.Expr("is_student_matched_this_semester(?)", userID)).ToSql()
	if err != nil {
		return false, err
	}
	var matched bool
	if err := r.conn.DB().QueryRow(ctx, text, args...).Scan(&matched); err != nil {
		return false, fmt.Errorf("failed to check existing match: %w", err)
	}
	return matched, nil
}

func scanAcademicRecord(row pgx.Row) (*student.AcademicRecord, error) {
	var (
		rec    student.AcademicRecord
		slot   int16
		branch string
		status string
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &slot, &branch, &rec.Division, &rec.RollNumber,
		&rec.BooksOwned, &rec.BooksRequired, &status, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan academic record: %w", err)
	}
	rec.Slot = student.Slot(slot)
	rec.Branch = student.Branch(branch)
	rec.ExchangeStatus = student.ExchangeStatus(status)
	return &rec, nil
}
