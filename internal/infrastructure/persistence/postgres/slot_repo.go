package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SLOT AND LOCATION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

const (
	timeSlotsTable = "exchange_time_slots"
	locationsTable = "exchange_locations"

	periodOrder = "CASE period WHEN 'morning' THEN 0 WHEN 'afternoon' THEN 1 WHEN 'evening' THEN 2 ELSE 3 END"
)

var timeSlotColumns = []string{
	"id", "date", "period", "start_time", "end_time", "location_id",
	"current_exchanges", "max_exchanges", "is_active", "created_at",
}

// SlotRepository implements exchange.SlotRepository and exchange.LocationRepository.
type SlotRepository struct {
	conn *Connection
}

// NewSlotRepository creates a new SlotRepository.
func NewSlotRepository(conn *Connection) *SlotRepository {
	return &SlotRepository{conn: conn}
}

// ListActiveForDate returns active slots on date in period order.
func (r *SlotRepository) ListActiveForDate(ctx context.Context, date time.Time) ([]*exchange.ScheduleSlot, error) {
	return r.list(ctx, sq.Eq{"date": sqlDate(date), "is_active": true})
}

// ListForDate returns all slots on date in period order.
func (r *SlotRepository) ListForDate(ctx context.Context, date time.Time) ([]*exchange.ScheduleSlot, error) {
	return r.list(ctx, sq.Eq{"date": sqlDate(date)})
}

func (r *SlotRepository) list(ctx context.Context, where sq.Eq) ([]*exchange.ScheduleSlot, error) {
	rows, err := query(ctx, r.conn.DB(), psql.Select(timeSlotColumns...).
		From(timeSlotsTable).
		Where(where).
		OrderBy(periodOrder, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("failed to list time slots: %w", err)
	}
	defer rows.Close()

	var out []*exchange.ScheduleSlot
	for rows.Next() {
		slot, err := scanTimeSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

// EnsureForDate inserts the windows for date. The (date, period) unique
// constraint turns concurrent or repeated calls into no-ops.
func (r *SlotRepository) EnsureForDate(ctx context.Context, date time.Time, locationID *string, windows []exchange.Window, maxExchanges int) (int, error) {
	if len(windows) == 0 {
		return 0, nil
	}

	insert := psql.Insert(timeSlotsTable).Columns(
		"id", "date", "period", "start_time", "end_time", "location_id",
		"current_exchanges", "max_exchanges", "is_active",
	)
	day := sqlDate(date)
	for _, w := range windows {
		insert = insert.Values(
			uuid.NewString(), day, string(w.Period), sqlTime(w.Start), sqlTime(w.End), locationID,
			0, maxExchanges, true,
		)
	}
	insert = insert.Suffix("ON CONFLICT (date, period) DO NOTHING")

	tag, err := exec(ctx, r.conn.DB(), insert)
	if err != nil {
		return 0, fmt.Errorf("failed to create time slots for %s: %w", timeutil.FormatDate(date), err)
	}
	return int(tag.RowsAffected()), nil
}

// DefaultLocation returns the oldest active location, or nil when none exist.
func (r *SlotRepository) DefaultLocation(ctx context.Context) (*exchange.Location, error) {
	text, args, err := psql.Select("id", "name", "COALESCE(description, '')", "is_active", "created_at").
		From(locationsTable).
		Where(sq.Eq{"is_active": true}).
		OrderBy("created_at", "id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var loc exchange.Location
	err = r.conn.DB().QueryRow(ctx, text, args...).
		Scan(&loc.ID, &loc.Name, &loc.Description, &loc.IsActive, &loc.CreatedAt)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default location: %w", err)
	}
	return &loc, nil
}

func scanTimeSlot(row pgx.Row) (*exchange.ScheduleSlot, error) {
	var (
		s          exchange.ScheduleSlot
		date       time.Time
		period     string
		start, end pgtype.Time
	)
	err := row.Scan(
		&s.ID, &date, &period, &start, &end, &s.LocationID,
		&s.CurrentExchanges, &s.MaxExchanges, &s.IsActive, &s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan time slot: %w", err)
	}
	s.Date = timeutil.Date(date.Year(), date.Month(), date.Day())
	s.Period = exchange.Period(period)
	s.StartTime = clockFromSQL(start)
	s.EndTime = clockFromSQL(end)
	return &s, nil
}

// sqlDate maps a campus-local day onto the UTC midnight pgx writes as DATE.
func sqlDate(t time.Time) time.Time {
	c := t.In(timeutil.CampusTZ)
	return time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, time.UTC)
}

func sqlTime(c timeutil.Clock) pgtype.Time {
	return pgtype.Time{Microseconds: int64(c) * int64(time.Minute/time.Microsecond), Valid: true}
}

func clockFromSQL(t pgtype.Time) timeutil.Clock {
	return timeutil.Clock(t.Microseconds / int64(time.Minute/time.Microsecond))
}
