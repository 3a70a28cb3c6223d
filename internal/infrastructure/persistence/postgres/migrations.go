package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations and tracks them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations(), tableName: "schema_migrations"}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.DB().Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`, m.tableName))
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := query(ctx, m.conn.DB(), psql.Select("version", "applied_at").From(m.tableName).OrderBy("version"))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := exec(ctx, tx, psql.Insert(m.tableName).Columns("version", "name").Values(mig.Version, mig.Name))
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		count++
	}
	return count, nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			mig = &m.migrations[i]
		}
	}
	if mig == nil || mig.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := exec(ctx, tx, psql.Delete(m.tableName).Where("version = ?", last))
		return err
	})
}

// Status reports which embedded migrations are applied.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_exchange_schema", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_term_functions", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_matching_runs", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: EXCHANGE SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS exchange_locations (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name TEXT NOT NULL,
    description TEXT,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS student_academic_info (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL UNIQUE,
    slot SMALLINT NOT NULL CHECK (slot IN (1, 2)),
    branch TEXT NOT NULL CHECK (branch IN ('CS', 'IT', 'EXTC', 'MECH', 'CIVIL', 'AIDS', 'AIML')),
    division TEXT NOT NULL,
    roll_number INTEGER NOT NULL CHECK (roll_number > 0),
    books_owned TEXT[] NOT NULL DEFAULT '{}',
    books_required TEXT[] NOT NULL DEFAULT '{}',
    exchange_status TEXT NOT NULL DEFAULT 'pending'
        CHECK (exchange_status IN ('pending', 'requested', 'matched', 'completed', 'cancelled')),
    academic_info_completed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_academic_info_slot_status
    ON student_academic_info (slot, exchange_status, created_at, id);

CREATE TABLE IF NOT EXISTS exchange_time_slots (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    date DATE NOT NULL CHECK (EXTRACT(ISODOW FROM date) < 6),
    period TEXT NOT NULL CHECK (period IN ('morning', 'afternoon', 'evening')),
    start_time TIME NOT NULL,
    end_time TIME NOT NULL,
    location_id UUID REFERENCES exchange_locations (id),
    current_exchanges INTEGER NOT NULL DEFAULT 0,
    max_exchanges INTEGER NOT NULL DEFAULT 10,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT exchange_time_slots_capacity CHECK (current_exchanges >= 0 AND current_exchanges <= max_exchanges),
    CONSTRAINT exchange_time_slots_date_period UNIQUE (date, period)
);

CREATE TABLE IF NOT EXISTS exchange_matches (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_1_id UUID NOT NULL,
    student_2_id UUID NOT NULL,
    time_slot_id UUID REFERENCES exchange_time_slots (id),
    location_id UUID REFERENCES exchange_locations (id),
    match_status TEXT NOT NULL DEFAULT 'matched'
        CHECK (match_status IN ('matched', 'confirmed', 'completed', 'cancelled')),
    student_1_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    student_2_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    admin_approved BOOLEAN NOT NULL DEFAULT FALSE,
    semester TEXT NOT NULL,
    academic_year TEXT NOT NULL,
    matched_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    confirmed_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    CONSTRAINT exchange_matches_distinct_students CHECK (student_1_id <> student_2_id)
);

CREATE INDEX IF NOT EXISTS idx_exchange_matches_term_s1
    ON exchange_matches (semester, academic_year, student_1_id) WHERE match_status <> 'cancelled';
CREATE INDEX IF NOT EXISTS idx_exchange_matches_term_s2
    ON exchange_matches (semester, academic_year, student_2_id) WHERE match_status <> 'cancelled';
`

const migration001Down = `
DROP TABLE IF EXISTS exchange_matches;
DROP TABLE IF EXISTS exchange_time_slots;
DROP TABLE IF EXISTS student_academic_info;
DROP TABLE IF EXISTS exchange_locations;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: TERM FUNCTIONS
// July to December is the Odd semester, January to June the Even one.
// "Today" is CURRENT_DATE in the session TimeZone, which the pool sets to
// the campus zone.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE OR REPLACE FUNCTION get_current_semester()
RETURNS TABLE (semester TEXT, academic_year TEXT)
LANGUAGE sql STABLE AS $$
    WITH today AS (
        SELECT CURRENT_DATE AS d
    ), start_year AS (
        SELECT CASE WHEN EXTRACT(MONTH FROM d) >= 7
                    THEN EXTRACT(YEAR FROM d)::int
                    ELSE EXTRACT(YEAR FROM d)::int - 1 END AS y,
               EXTRACT(MONTH FROM d) >= 7 AS odd
        FROM today
    )
    SELECT CASE WHEN odd THEN 'Odd' ELSE 'Even' END,
           y::text || '-' || LPAD(((y + 1) % 100)::text, 2, '0')
    FROM start_year
$$;

CREATE OR REPLACE FUNCTION is_student_matched_this_semester(_user_id UUID)
RETURNS BOOLEAN
LANGUAGE sql STABLE AS $$
    SELECT EXISTS (
        SELECT 1
        FROM exchange_matches m, get_current_semester() t
        WHERE m.match_status <> 'cancelled'
          AND m.semester = t.semester
          AND m.academic_year = t.academic_year
          AND (m.student_1_id = _user_id OR m.student_2_id = _user_id)
    )
$$;

CREATE OR REPLACE FUNCTION determine_slot(roll_num INTEGER)
RETURNS SMALLINT
LANGUAGE sql IMMUTABLE AS $$
    SELECT CASE WHEN roll_num % 2 = 1 THEN 1 ELSE 2 END::smallint
$$;
`

const migration002Down = `
DROP FUNCTION IF EXISTS determine_slot(INTEGER);
DROP FUNCTION IF EXISTS is_student_matched_this_semester(UUID);
DROP FUNCTION IF EXISTS get_current_semester();
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: MATCHING RUN LOG
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS matching_runs (
    id UUID PRIMARY KEY,
    trigger TEXT NOT NULL,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    finished_at TIMESTAMP WITH TIME ZONE NOT NULL,
    success BOOLEAN NOT NULL,
    matches_created INTEGER NOT NULL DEFAULT 0,
    semester TEXT,
    academic_year TEXT,
    exchange_date DATE,
    stopped_early BOOLEAN NOT NULL DEFAULT FALSE,
    message TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_matching_runs_started_at ON matching_runs (started_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS matching_runs;
`
