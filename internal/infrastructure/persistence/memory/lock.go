package memory

import (
	"context"
	"sync"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
)

// RunLock is a process-local exchange.RunLock.
type RunLock struct {
	mu sync.Mutex
}

// NewRunLock creates an unlocked RunLock.
func NewRunLock() *RunLock {
	return &RunLock{}
}

// Acquire implements exchange.RunLock without blocking.
func (l *RunLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, shared.ErrRunInProgress
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}
