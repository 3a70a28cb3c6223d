package query

import (
	"context"
	"time"

	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST EXCHANGE SLOTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListSlotsQuery selects the slots of one day. A zero Date means the next
// valid exchange date.
type ListSlotsQuery struct {
	Date time.Time
}

// SlotDTO is one schedule slot with its capacity usage.
type SlotDTO struct {
	ID               string  `json:"id"`
	Date             string  `json:"date"`
	Period           string  `json:"period"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	LocationID       *string `json:"location_id"`
	CurrentExchanges int     `json:"current_exchanges"`
	MaxExchanges     int     `json:"max_exchanges"`
	Remaining        int     `json:"remaining"`
	IsActive         bool    `json:"is_active"`
}

// ListSlotsResult is the query result.
type ListSlotsResult struct {
	Date      string    `json:"date"`
	Slots     []SlotDTO `json:"slots"`
	Remaining int       `json:"remaining"`
}

// ListSlotsHandler handles the query.
type ListSlotsHandler struct {
	slots  exchange.SlotRepository
	policy exchange.DatePolicy
	now    func() time.Time
}

// NewListSlotsHandler creates a new ListSlotsHandler.
func NewListSlotsHandler(slots exchange.SlotRepository, policy exchange.DatePolicy, now func() time.Time) *ListSlotsHandler {
	if now == nil {
		now = timeutil.Now
	}
	return &ListSlotsHandler{slots: slots, policy: policy, now: now}
}

// Handle executes the query.
func (h *ListSlotsHandler) Handle(ctx context.Context, q ListSlotsQuery) (*ListSlotsResult, error) {
	date := q.Date
	if date.IsZero() {
		date = h.policy.NextValidExchangeDate(h.now())
	}
	date = timeutil.StartOfDay(date)

	slots, err := h.slots.ListForDate(ctx, date)
	if err != nil {
		return nil, shared.WrapError("exchange", "ListSlots", shared.ErrInternal, "list exchange slots", err)
	}

	res := &ListSlotsResult{Date: timeutil.FormatDate(date), Slots: make([]SlotDTO, 0, len(slots))}
	for _, s := range slots {
		dto := SlotDTO{
			ID:               s.ID,
			Date:             timeutil.FormatDate(s.Date),
			Period:           string(s.Period),
			StartTime:        s.StartTime.String(),
			EndTime:          s.EndTime.String(),
			LocationID:       s.LocationID,
			CurrentExchanges: s.CurrentExchanges,
			MaxExchanges:     s.MaxExchanges,
			Remaining:        s.Remaining(),
			IsActive:         s.IsActive,
		}
		if s.IsActive {
			res.Remaining += dto.Remaining
		}
		res.Slots = append(res.Slots, dto)
	}
	return res, nil
}
