package exchange

import (
	"time"

	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// DatePolicy decides which calendar day a matching run schedules exchanges on.
// Exchanges happen Monday to Friday between Open and Close.
type DatePolicy struct {
	Open  timeutil.Clock
	Close timeutil.Clock
}

// DefaultDatePolicy is the 09:30 to 18:30 operating window.
func DefaultDatePolicy() DatePolicy {
	return DatePolicy{
		Open:  timeutil.NewClock(9, 30),
		Close: timeutil.NewClock(18, 30),
	}
}

// NextValidExchangeDate returns today if it is a weekday and now is before
// Close, otherwise the next weekday. Runs before Open still resolve to today.
func (p DatePolicy) NextValidExchangeDate(now time.Time) time.Time {
	if timeutil.IsWeekend(now) || timeutil.ClockOf(now) >= p.Close {
		return timeutil.NextWorkday(now)
	}
	return timeutil.StartOfDay(now)
}

// Advance returns the weekday after date. Used when a date has no capacity left.
func (p DatePolicy) Advance(date time.Time) time.Time {
	return timeutil.NextWorkday(date)
}
