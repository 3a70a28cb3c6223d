package exchange

import (
	"fmt"
	"time"

	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// Period is one of the three daily exchange windows.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

// Order is the position of a period within the day.
func (p Period) Order() int {
	switch p {
	case PeriodMorning:
		return 0
	case PeriodAfternoon:
		return 1
	case PeriodEvening:
		return 2
	default:
		return 3
	}
}

// IsValid checks the period against the known set.
func (p Period) IsValid() bool {
	return p.Order() < 3
}

// Window is a fixed daily time range for one period.
type Window struct {
	Period Period         `yaml:"period" validate:"required,oneof=morning afternoon evening"`
	Start  timeutil.Clock `yaml:"start"`
	End    timeutil.Clock `yaml:"end"`
}

// DefaultWindows are the three windows created for every exchange date.
func DefaultWindows() []Window {
	return []Window{
		{Period: PeriodMorning, Start: timeutil.NewClock(9, 30), End: timeutil.NewClock(12, 30)},
		{Period: PeriodAfternoon, Start: timeutil.NewClock(12, 30), End: timeutil.NewClock(15, 30)},
		{Period: PeriodEvening, Start: timeutil.NewClock(15, 30), End: timeutil.NewClock(18, 30)},
	}
}

// DefaultMaxExchanges is the capacity of a freshly created schedule slot.
const DefaultMaxExchanges = 10

// ValidateWindows checks that windows are known periods, non-empty, in
// period order and free of overlaps.
func ValidateWindows(windows []Window) error {
	if len(windows) == 0 {
		return shared.NewDomainError("exchange", "ValidateWindows", shared.ErrInvalidInput, "at least one window is required")
	}
	for i, w := range windows {
		if !w.Period.IsValid() {
			return shared.WrapError("exchange", "ValidateWindows", shared.ErrInvalidPeriod, string(w.Period), nil)
		}
		if w.End <= w.Start {
			return shared.NewDomainError("exchange", "ValidateWindows", shared.ErrInvalidInput,
				fmt.Sprintf("%s window ends before it starts", w.Period))
		}
		if i > 0 {
			prev := windows[i-1]
			if w.Period.Order() <= prev.Period.Order() || w.Start < prev.End {
				return shared.NewDomainError("exchange", "ValidateWindows", shared.ErrInvalidInput,
					fmt.Sprintf("%s window is out of order", w.Period))
			}
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE SLOT
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleSlot is a bounded-capacity (date, period, location) tuple at which
// physical exchanges happen.
type ScheduleSlot struct {
	ID               string
	Date             time.Time // midnight in the campus timezone
	Period           Period
	StartTime        timeutil.Clock
	EndTime          timeutil.Clock
	LocationID       *string
	CurrentExchanges int
	MaxExchanges     int
	IsActive         bool
	CreatedAt        time.Time
}

// HasCapacity reports whether one more exchange fits.
func (s *ScheduleSlot) HasCapacity() bool {
	return s.IsActive && s.CurrentExchanges < s.MaxExchanges
}

// Remaining is the number of exchanges that still fit.
func (s *ScheduleSlot) Remaining() int {
	if r := s.MaxExchanges - s.CurrentExchanges; r > 0 {
		return r
	}
	return 0
}

// NewScheduleSlot builds an empty active slot for a window on a date.
func NewScheduleSlot(id string, date time.Time, w Window, locationID *string, maxExchanges int) *ScheduleSlot {
	return &ScheduleSlot{
		ID:           id,
		Date:         timeutil.StartOfDay(date),
		Period:       w.Period,
		StartTime:    w.Start,
		EndTime:      w.End,
		LocationID:   locationID,
		MaxExchanges: maxExchanges,
		IsActive:     true,
	}
}

// Location is a physical exchange point on campus.
type Location struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
}
