package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
)

// AdvisoryLock implements exchange.RunLock with a session-level Postgres
// advisory lock. The lock lives on one pooled connection, which is held
// until release.
type AdvisoryLock struct {
	conn *Connection
	name string
}

// NewAdvisoryLock creates a lock keyed by hashtext(name).
func NewAdvisoryLock(conn *Connection, name string) *AdvisoryLock {
	return &AdvisoryLock{conn: conn, name: name}
}

// Acquire tries the lock once without waiting.
func (l *AdvisoryLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	pool := l.conn.Pool()
	if pool == nil {
		return nil, fmt.Errorf("postgres: advisory lock needs a pgxpool connection")
	}
	c, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire connection for advisory lock: %w", err)
	}

	text, args, err := psql.Select().Column(sq.Expr("pg_try_advisory_lock(hashtext(?))", l.name)).ToSql()
	if err != nil {
		c.Release()
		return nil, err
	}

	var locked bool
	if err := c.QueryRow(ctx, text, args...).Scan(&locked); err != nil {
		c.Release()
		return nil, fmt.Errorf("postgres: try advisory lock: %w", err)
	}
	if !locked {
		c.Release()
		return nil, shared.ErrRunInProgress
	}

	return func(ctx context.Context) error {
		defer c.Release()
		text, args, err := psql.Select().Column(sq.Expr("pg_advisory_unlock(hashtext(?))", l.name)).ToSql()
		if err != nil {
			return err
		}
		if _, err := c.Exec(ctx, text, args...); err != nil {
			// The session still holds the lock; drop the connection so it is freed.
			_ = c.Conn().Close(ctx)
			return fmt.Errorf("postgres: advisory unlock: %w", err)
		}
		return nil
	}, nil
}
