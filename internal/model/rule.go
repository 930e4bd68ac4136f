package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// RecurrenceRule describes how a base interval repeats.
//
// Rules decoded from storage may be malformed; use the constructors in
// internal/recurrence to build validated ones.
type RecurrenceRule struct {
	Frequency Frequency
	// Interval is the step in units of Frequency. Zero means 1.
	Interval int
	// DaysOfWeek is used only for Weekly.
	DaysOfWeek []time.Weekday
	// DaysOfMonth (1..31) is used only for Monthly.
	DaysOfMonth []int
	// EndDate is an inclusive cutoff day; only its calendar date matters.
	EndDate *time.Time
	// YearlyCount caps the number of Yearly occurrences.
	YearlyCount int
}

// Step returns Interval with the zero value mapped to 1.
func (r RecurrenceRule) Step() int {
	if r.Interval <= 0 {
		return 1
	}
	return r.Interval
}

// Bounded reports whether the rule ends on its own.
func (r RecurrenceRule) Bounded() bool {
	return r.EndDate != nil || (r.Frequency == Yearly && r.YearlyCount > 0)
}

type ruleJSON struct {
	Frequency   Frequency `json:"frequency"`
	Interval    int       `json:"interval,omitempty"`
	DaysOfWeek  []string  `json:"daysOfWeek,omitempty"`
	DaysOfMonth []string  `json:"daysOfMonth,omitempty"`
	EndDate     string    `json:"endDate,omitempty"`
	YearlyCount int       `json:"yearlyCount,omitempty"`
}

var weekdayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func (r RecurrenceRule) MarshalJSON() ([]byte, error) {
	out := ruleJSON{
		Frequency:   r.Frequency,
		Interval:    r.Interval,
		YearlyCount: r.YearlyCount,
	}
	for _, d := range r.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return nil, fmt.Errorf("recurrence: invalid weekday %d", int(d))
		}
		out.DaysOfWeek = append(out.DaysOfWeek, weekdayNames[d])
	}
	for _, d := range r.DaysOfMonth {
		out.DaysOfMonth = append(out.DaysOfMonth, strconv.Itoa(d))
	}
	if r.EndDate != nil {
		out.EndDate = r.EndDate.Format("2006-01-02")
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire form. Unknown weekday or day tokens are
// errors; structural validity (empty day lists etc.) is checked elsewhere.
func (r *RecurrenceRule) UnmarshalJSON(data []byte) error {
	var in ruleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rule := RecurrenceRule{
		Frequency:   Frequency(strings.ToLower(string(in.Frequency))),
		Interval:    in.Interval,
		YearlyCount: in.YearlyCount,
	}
	for _, tok := range in.DaysOfWeek {
		d, ok := parseWeekdayToken(tok)
		if !ok {
			return fmt.Errorf("recurrence: invalid weekday %q", tok)
		}
		rule.DaysOfWeek = append(rule.DaysOfWeek, d)
	}
	for _, tok := range in.DaysOfMonth {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return fmt.Errorf("recurrence: invalid day of month %q", tok)
		}
		rule.DaysOfMonth = append(rule.DaysOfMonth, n)
	}
	if in.EndDate != "" {
		end, err := time.ParseInLocation("2006-01-02", in.EndDate, time.Local)
		if err != nil {
			return fmt.Errorf("recurrence: invalid end date %q", in.EndDate)
		}
		rule.EndDate = &end
	}
	rule.normalizeSets()
	*r = rule
	return nil
}

// normalizeSets sorts and de-duplicates the day sets.
func (r *RecurrenceRule) normalizeSets() {
	sort.Slice(r.DaysOfWeek, func(i, j int) bool { return r.DaysOfWeek[i] < r.DaysOfWeek[j] })
	r.DaysOfWeek = uniq(r.DaysOfWeek)
	sort.Ints(r.DaysOfMonth)
	r.DaysOfMonth = uniq(r.DaysOfMonth)
}

func uniq[T comparable](in []T) []T {
	if len(in) < 2 {
		return in
	}
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func parseWeekdayToken(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		d := time.Weekday(i)
		if s == strings.ToLower(name) || s == strings.ToLower(d.String()) {
			return d, true
		}
	}
	return 0, false
}
