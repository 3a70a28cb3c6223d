package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
)

// DefaultLockTTL bounds how long a crashed holder can block new runs.
const DefaultLockTTL = 5 * time.Minute

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLock implements exchange.RunLock with SET NX PX.
type RunLock struct {
	client *Client
	key    string
	ttl    time.Duration
}

// NewRunLock creates a lock on LockKey(name).
func NewRunLock(client *Client, name string, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RunLock{client: client, key: LockKey(name), ttl: ttl}
}

// Acquire sets the key with a fresh token. A key already present means
// another run holds the lock.
func (l *RunLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, shared.ErrRunInProgress
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client.rdb, []string{l.key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("redis: release %s: %w", l.key, err)
		}
		return nil
	}, nil
}
