package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/internal/infrastructure/persistence/memory"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

func TestListMatchingRunsLimit(t *testing.T) {
	q := ListMatchingRunsQuery{}
	require.NoError(t, q.Validate())
	assert.Equal(t, DefaultRunsLimit, q.Limit)

	q = ListMatchingRunsQuery{Limit: 1000}
	require.NoError(t, q.Validate())
	assert.Equal(t, MaxRunsLimit, q.Limit)

	q = ListMatchingRunsQuery{Limit: -1}
	assert.True(t, shared.IsValidation(q.Validate()))
}

func TestListMatchingRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	base := timeutil.DateTime(2025, time.January, 13, 8, 0)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, store.Record(ctx, &exchange.MatchingRun{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	res, err := NewListMatchingRunsHandler(store).Handle(ctx, ListMatchingRunsQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "r3", res.Runs[0].ID)
	assert.Equal(t, "r2", res.Runs[1].ID)
}

func TestListMatchingRunsEmpty(t *testing.T) {
	res, err := NewListMatchingRunsHandler(memory.New()).Handle(context.Background(), ListMatchingRunsQuery{})
	require.NoError(t, err)
	assert.NotNil(t, res.Runs)
	assert.Zero(t, res.Count)
}

func TestListSlotsDefaultsToNextExchangeDate(t *testing.T) {
	store := memory.New()
	monday := timeutil.Date(2025, time.January, 13)
	store.AddSlot(exchange.ScheduleSlot{ID: "m", Date: monday, Period: exchange.PeriodMorning,
		StartTime: timeutil.NewClock(9, 30), EndTime: timeutil.NewClock(12, 30), MaxExchanges: 10, CurrentExchanges: 4, IsActive: true})
	store.AddSlot(exchange.ScheduleSlot{ID: "e", Date: monday, Period: exchange.PeriodEvening, MaxExchanges: 10, IsActive: false})

	friday := timeutil.DateTime(2025, time.January, 10, 20, 0)
	h := NewListSlotsHandler(store, exchange.DefaultDatePolicy(), func() time.Time { return friday })

	res, err := h.Handle(context.Background(), ListSlotsQuery{})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-13", res.Date)
	require.Len(t, res.Slots, 2)
	assert.Equal(t, "09:30", res.Slots[0].StartTime)
	assert.Equal(t, 6, res.Slots[0].Remaining)
	assert.Equal(t, 6, res.Remaining)
	assert.False(t, res.Slots[1].IsActive)
}

func TestListSlotsFailure(t *testing.T) {
	store := memory.New()
	store.FailOn(memory.OpListSlots, errors.New("timeout"))

	_, err := NewListSlotsHandler(store, exchange.DefaultDatePolicy(), nil).
		Handle(context.Background(), ListSlotsQuery{Date: timeutil.Date(2025, time.January, 13)})
	assert.ErrorIs(t, err, shared.ErrInternal)
}
