package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "studycal/internal/log"
	"studycal/internal/model"
)

const defaultLimit = 5000

var weekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

type options struct {
	from    time.Time
	horizon time.Time
	limit   int
}

// Option tunes a Generate call.
type Option func(*options)

// WithHorizon stops generation before the first occurrence starting at or
// after h.
func WithHorizon(h time.Time) Option {
	return func(o *options) { o.horizon = h }
}

// WithFrom drops occurrences starting before t. Dropped occurrences do not
// count toward the limit; a yearly count still counts from the base.
func WithFrom(t time.Time) Option {
	return func(o *options) { o.from = t }
}

// WithLimit caps the number of occurrences. Non-positive values keep the
// default cap.
func WithLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.limit = n
		}
	}
}

// Generate expands rule from the base interval into concrete occurrences,
// ordered by start. It is a pure function of its inputs and never fails:
// a rule it cannot interpret yields the base occurrence alone.
//
// The result is always finite: it ends at the rule's EndDate (inclusive day),
// its YearlyCount, the horizon, or the safety limit, whichever comes first.
// An open-ended rule without a horizon stops at the limit.
func Generate(baseStart, baseEnd time.Time, rule model.RecurrenceRule, opts ...Option) []model.Occurrence {
	o := options{limit: defaultLimit}
	for _, opt := range opts {
		opt(&o)
	}

	duration := baseEnd.Sub(baseStart)
	var until time.Time
	if rule.EndDate != nil {
		until = cutoff(*rule.EndDate, baseStart.Location())
	}

	within := func(start time.Time) bool {
		if !until.IsZero() && start.After(until) {
			return false
		}
		if !o.horizon.IsZero() && !start.Before(o.horizon) {
			return false
		}
		return true
	}

	r, ok := toRRule(baseStart, rule, until)
	if !ok {
		if !within(baseStart) || baseStart.Before(o.from) {
			return nil
		}
		return []model.Occurrence{{Start: baseStart, End: baseStart.Add(duration)}}
	}

	yearlyCap := 0
	if rule.Frequency == model.Yearly && rule.YearlyCount > 0 {
		yearlyCap = rule.YearlyCount
	}

	out := make([]model.Occurrence, 0)
	next := r.Iterator()
	for seen := 0; len(out) < o.limit; {
		start, ok := next()
		if !ok || !within(start) {
			break
		}
		seen++
		if yearlyCap > 0 && seen > yearlyCap {
			break
		}
		if start.Before(o.from) {
			continue
		}
		out = append(out, model.Occurrence{Start: start, End: start.Add(duration)})
	}
	if len(out) == o.limit {
		appLog.Debug("recurrence: occurrence limit reached", "frequency", rule.Frequency, "limit", o.limit)
	}
	return out
}

// toRRule maps a rule onto rrule-go options. It returns false for rules the
// generator falls back on (unknown frequency, empty day sets).
func toRRule(baseStart time.Time, rule model.RecurrenceRule, until time.Time) (*rrule.RRule, bool) {
	opt := rrule.ROption{
		Dtstart:  baseStart,
		Interval: rule.Step(),
		Wkst:     rrule.MO,
		Until:    until,
	}

	switch rule.Frequency {
	case model.Daily:
		opt.Freq = rrule.DAILY
	case model.Weekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range rule.DaysOfWeek {
			if d >= time.Sunday && d <= time.Saturday {
				opt.Byweekday = append(opt.Byweekday, weekdays[d])
			}
		}
		if len(opt.Byweekday) == 0 {
			return nil, false
		}
	case model.Monthly:
		opt.Freq = rrule.MONTHLY
		// rrule-go skips dates that do not exist (31 Feb); no clamping.
		for _, d := range rule.DaysOfMonth {
			if d >= 1 && d <= 31 {
				opt.Bymonthday = append(opt.Bymonthday, d)
			}
		}
		if len(opt.Bymonthday) == 0 {
			return nil, false
		}
	case model.Yearly:
		opt.Freq = rrule.YEARLY
	default:
		return nil, false
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		appLog.Warn("recurrence: rule rejected by rrule, using base occurrence", err, "frequency", rule.Frequency)
		return nil, false
	}
	return r, true
}
