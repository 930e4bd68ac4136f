// Package calendar holds wall-clock date helpers. There is no timezone
// database handling here beyond the *time.Location callers pass in; "local"
// means whatever location the caller chose as its wall clock.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// ParseDate parses "yyyy-MM-dd" as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want yyyy-MM-dd", s)
	}
	return t, nil
}

// ParseClock parses "HH:mm" (24h).
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time %q: want HH:mm", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// At returns the instant on day's calendar date at clock c, in day's location.
func At(day time.Time, c Clock) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// ClockOf extracts the time of day of t.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// StartOfDay returns midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfWeek returns midnight of the Monday on or before t.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// SameDay reports whether a and b fall on the same calendar date.
// b is compared in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FormatDate renders t as yyyy-MM-dd.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatRange renders "2025-01-06 08:00-09:30", collapsing the end date when
// both instants share a day.
func FormatRange(start, end time.Time) string {
	if SameDay(start, end) {
		return start.Format(DateLayout+" "+ClockLayout) + "-" + end.Format(ClockLayout)
	}
	return start.Format(DateLayout+" "+ClockLayout) + " - " + end.Format(DateLayout+" "+ClockLayout)
}

var weekdayTokens = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// WeekdayToken renders d as a three-letter token ("Mon").
func WeekdayToken(d time.Weekday) string {
	return weekdayTokens[d]
}

// ParseWeekday accepts "Mon".."Sun" and the full English names, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, tok := range weekdayTokens {
		d := time.Weekday(i)
		if s == strings.ToLower(tok) || s == strings.ToLower(d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}
