package exchange

import (
	"context"
	"time"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SLOT ALLOCATOR
// Finding capacity and ensuring capacity exists are separate steps.
// Creation is idempotent per (date, period), so concurrent ensures are safe.
// ══════════════════════════════════════════════════════════════════════════════

// AllocatorOptions configures the windows created for a new exchange date.
type AllocatorOptions struct {
	Windows      []Window
	MaxExchanges int
}

// DefaultAllocatorOptions returns three windows of ten exchanges each.
func DefaultAllocatorOptions() AllocatorOptions {
	return AllocatorOptions{Windows: DefaultWindows(), MaxExchanges: DefaultMaxExchanges}
}

// SlotAllocator finds or creates schedule slots with spare capacity.
type SlotAllocator struct {
	slots     SlotRepository
	locations LocationRepository
	opts      AllocatorOptions
}

// NewSlotAllocator creates a SlotAllocator. Zero-valued options fall back to defaults.
func NewSlotAllocator(slots SlotRepository, locations LocationRepository, opts AllocatorOptions) *SlotAllocator {
	if len(opts.Windows) == 0 {
		opts.Windows = DefaultWindows()
	}
	if opts.MaxExchanges <= 0 {
		opts.MaxExchanges = DefaultMaxExchanges
	}
	return &SlotAllocator{slots: slots, locations: locations, opts: opts}
}

// FindCapacity returns the first active slot on date with spare capacity,
// or nil when there is none.
func (a *SlotAllocator) FindCapacity(ctx context.Context, date time.Time) (*ScheduleSlot, error) {
	slots, err := a.slots.ListActiveForDate(ctx, timeutil.StartOfDay(date))
	if err != nil {
		return nil, err
	}
	return firstWithCapacity(slots), nil
}

// EnsureCapacity creates the configured windows for date at the default
// location. A missing location leaves the slots without one.
func (a *SlotAllocator) EnsureCapacity(ctx context.Context, date time.Time) (int, error) {
	loc, err := a.locations.DefaultLocation(ctx)
	if err != nil {
		return 0, err
	}
	var locationID *string
	if loc != nil {
		id := loc.ID
		locationID = &id
	}
	return a.slots.EnsureForDate(ctx, timeutil.StartOfDay(date), locationID, a.opts.Windows, a.opts.MaxExchanges)
}

// NewSession starts run-scoped allocation. The session remembers capacity
// consumed by the run so later pairs see it without re-querying.
func (a *SlotAllocator) NewSession() *AllocationSession {
	return &AllocationSession{
		allocator: a,
		tracked:   make(map[string][]*ScheduleSlot),
	}
}

func firstWithCapacity(slots []*ScheduleSlot) *ScheduleSlot {
	for _, s := range slots {
		if s.HasCapacity() {
			return s
		}
	}
	return nil
}

// ───────────────────────────────────────────────────────────────────────────────
// Session
// ───────────────────────────────────────────────────────────────────────────────

// AllocationSession hands out slots for a single run. Not safe for concurrent use.
type AllocationSession struct {
	allocator *SlotAllocator
	// tracked holds slots per date with the run's reservations applied.
	tracked map[string][]*ScheduleSlot
}

// Allocate returns a slot on date with room for one more exchange. Lookup
// failures are not fatal: the returned error wraps shared.ErrNoSlotAvailable
// and the caller decides whether to try another day.
func (s *AllocationSession) Allocate(ctx context.Context, date time.Time) (*ScheduleSlot, error) {
	key := timeutil.FormatDate(date)

	if slot := firstWithCapacity(s.tracked[key]); slot != nil {
		return slot, nil
	}

	slot, lookupErr := s.refresh(ctx, key, date)
	if slot != nil {
		return slot, nil
	}

	// Nothing usable on record: make sure the day's windows exist, then look again.
	if _, err := s.allocator.EnsureCapacity(ctx, date); err != nil && lookupErr == nil {
		lookupErr = err
	}

	slot, err := s.refresh(ctx, key, date)
	if slot != nil {
		return slot, nil
	}
	if err != nil {
		lookupErr = err
	}
	return nil, shared.WrapError("exchange", "AllocateSlot", shared.ErrNoSlotAvailable,
		"no exchange slot available on "+key, lookupErr)
}

// Reserve consumes one unit of capacity on a slot handed out by Allocate.
func (s *AllocationSession) Reserve(slot *ScheduleSlot) {
	slot.CurrentExchanges++
}

// refresh reloads the active slots for a date, keeping the tracked copies
// (and their reservations) for slots already seen in this run.
func (s *AllocationSession) refresh(ctx context.Context, key string, date time.Time) (*ScheduleSlot, error) {
	fresh, err := s.allocator.slots.ListActiveForDate(ctx, timeutil.StartOfDay(date))
	if err != nil {
		return nil, err
	}

	known := make(map[string]*ScheduleSlot, len(s.tracked[key]))
	for _, t := range s.tracked[key] {
		known[t.ID] = t
	}

	merged := make([]*ScheduleSlot, 0, len(fresh))
	for _, f := range fresh {
		if t, ok := known[f.ID]; ok {
			merged = append(merged, t)
			continue
		}
		cp := *f
		merged = append(merged, &cp)
	}
	s.tracked[key] = merged
	return firstWithCapacity(merged), nil
}
