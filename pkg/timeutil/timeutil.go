// Package timeutil provides campus-timezone date helpers.
// All exchange scheduling happens in a single campus timezone, so calendar
// dates are represented as midnight of that day in CampusTZ.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CampusTZ is the timezone all exchange dates and windows are evaluated in.
// Defaults to India Standard Time (UTC+5:30, no DST). Set once at startup.
var CampusTZ = time.FixedZone("Asia/Kolkata", 5*60*60+30*60)

// SetLocation replaces CampusTZ. It must be called before any goroutine
// reads the zone.
func SetLocation(loc *time.Location) {
	if loc != nil {
		CampusTZ = loc
	}
}

// LoadLocation resolves an IANA name, falling back to the current CampusTZ
// when the tz database is not available on the host.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return CampusTZ
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return CampusTZ
	}
	return loc
}

// Now returns the current time in the campus timezone.
func Now() time.Time {
	return time.Now().In(CampusTZ)
}

// Date creates midnight of the given day in the campus timezone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, CampusTZ)
}

// DateTime creates a campus-local instant.
func DateTime(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, CampusTZ)
}

// StartOfDay returns midnight of t's campus-local day.
func StartOfDay(t time.Time) time.Time {
	c := t.In(CampusTZ)
	return time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, CampusTZ)
}

// IsWeekend reports whether t falls on Saturday or Sunday in the campus timezone.
func IsWeekend(t time.Time) bool {
	wd := t.In(CampusTZ).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsWorkday reports whether t falls on Monday to Friday.
func IsWorkday(t time.Time) bool {
	return !IsWeekend(t)
}

// NextWorkday returns the first Monday-to-Friday date strictly after t's day.
func NextWorkday(t time.Time) time.Time {
	d := StartOfDay(t).AddDate(0, 0, 1)
	for IsWeekend(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// WorkdayOnOrAfter returns t's day if it is a workday, otherwise the next one.
func WorkdayOnOrAfter(t time.Time) time.Time {
	d := StartOfDay(t)
	for IsWeekend(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// IsSameDay reports whether two instants share a campus-local date.
func IsSameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// ───────────────────────────────────────────────────────────────────────────────
// Dates
// ───────────────────────────────────────────────────────────────────────────────

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// FormatDate renders t's campus-local date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.In(CampusTZ).Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD as midnight in the campus timezone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), CampusTZ)
}

// ───────────────────────────────────────────────────────────────────────────────
// Clock times
// ───────────────────────────────────────────────────────────────────────────────

// Clock is a wall-clock time of day, in minutes after midnight.
type Clock int

// NewClock builds a Clock from hours and minutes.
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses "HH:MM" or "HH:MM:SS" (seconds are ignored).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock %q: bad minute", s)
	}
	return NewClock(h, m), nil
}

// MustClock is ParseClock for constants.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns t's campus-local time of day.
func ClockOf(t time.Time) Clock {
	c := t.In(CampusTZ)
	return NewClock(c.Hour(), c.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// String renders HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// SQL renders HH:MM:SS for TIME columns.
func (c Clock) SQL() string {
	return fmt.Sprintf("%02d:%02d:00", c.Hour(), c.Minute())
}

// On returns the instant at this clock time on date's campus-local day.
func (c Clock) On(date time.Time) time.Time {
	d := date.In(CampusTZ)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, CampusTZ)
}

// UnmarshalText lets Clock be decoded from YAML and env strings.
func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText renders HH:MM.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
