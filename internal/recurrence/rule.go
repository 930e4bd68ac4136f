package recurrence

import (
	"time"

	"studycal/internal/calendar"
	"studycal/internal/model"
)

// MinYearlyCount is the smallest accepted YearlyCount. A rule yielding fewer
// than two occurrences is not a recurrence.
const MinYearlyCount = 2

// Daily builds a validated daily rule. end may be nil.
func Daily(interval int, end *time.Time) (model.RecurrenceRule, error) {
	r := model.RecurrenceRule{Frequency: model.Daily, Interval: interval, EndDate: end}
	return r, checkShape(r)
}

// Weekly builds a validated weekly rule on the given weekdays.
func Weekly(interval int, days []time.Weekday, end *time.Time) (model.RecurrenceRule, error) {
	r := model.RecurrenceRule{Frequency: model.Weekly, Interval: interval, DaysOfWeek: days, EndDate: end}
	return r, checkShape(r)
}

// Monthly builds a validated monthly rule on the given days of month.
func Monthly(interval int, days []int, end *time.Time) (model.RecurrenceRule, error) {
	r := model.RecurrenceRule{Frequency: model.Monthly, Interval: interval, DaysOfMonth: days, EndDate: end}
	return r, checkShape(r)
}

// Yearly builds a validated yearly rule bounded by count, end, or both.
func Yearly(interval, count int, end *time.Time) (model.RecurrenceRule, error) {
	r := model.RecurrenceRule{Frequency: model.Yearly, Interval: interval, YearlyCount: count, EndDate: end}
	return r, checkShape(r)
}

// Validate checks rule against the base interval it will expand.
// Generate never calls this; call sites that accept user input must.
func Validate(rule model.RecurrenceRule, baseStart, baseEnd time.Time) error {
	if !baseStart.Before(baseEnd) {
		return model.Invalid("end", "must be after start")
	}
	if err := checkShape(rule); err != nil {
		return err
	}
	if rule.EndDate != nil && cutoff(*rule.EndDate, baseStart.Location()).Before(baseStart) {
		return model.Invalid("endDate", "%s is before the first occurrence %s",
			calendar.FormatDate(*rule.EndDate), calendar.FormatDate(baseStart))
	}
	return nil
}

// checkShape validates everything that does not depend on the base interval.
func checkShape(r model.RecurrenceRule) error {
	if r.Interval < 0 {
		return model.Invalid("interval", "must be positive, got %d", r.Interval)
	}
	switch r.Frequency {
	case model.Daily:
	case model.Weekly:
		if len(r.DaysOfWeek) == 0 {
			return model.Invalid("daysOfWeek", "weekly rule needs at least one weekday")
		}
		for _, d := range r.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return model.Invalid("daysOfWeek", "invalid weekday %d", d)
			}
		}
	case model.Monthly:
		if len(r.DaysOfMonth) == 0 {
			return model.Invalid("daysOfMonth", "monthly rule needs at least one day")
		}
		for _, d := range r.DaysOfMonth {
			if d < 1 || d > 31 {
				return model.Invalid("daysOfMonth", "day %d out of range 1..31", d)
			}
		}
	case model.Yearly:
		if r.YearlyCount != 0 && r.YearlyCount < MinYearlyCount {
			return model.Invalid("yearlyCount", "must be at least %d, got %d", MinYearlyCount, r.YearlyCount)
		}
		if r.EndDate == nil && r.YearlyCount == 0 {
			return model.Invalid("yearlyCount", "yearly rule without end date needs a count of at least %d", MinYearlyCount)
		}
	default:
		return model.Invalid("frequency", "unknown frequency %q", r.Frequency)
	}
	return nil
}

// cutoff returns the last instant of end's calendar date in loc.
func cutoff(end time.Time, loc *time.Location) time.Time {
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	return calendar.EndOfDay(day)
}
