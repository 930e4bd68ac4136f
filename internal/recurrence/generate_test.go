package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/model"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func starts(occ []model.Occurrence) []string {
	out := make([]string, 0, len(occ))
	for _, o := range occ {
		out = append(out, o.Start.Format("2006-01-02 15:04"))
	}
	return out
}

func TestGenerateWeeklyMonWed(t *testing.T) {
	base := at(2025, 1, 6, 8, 0) // Monday
	rule, err := Weekly(1, []time.Weekday{time.Monday, time.Wednesday}, day(2025, 1, 19))
	require.NoError(t, err)

	occ := Generate(base, base.Add(90*time.Minute), rule)
	assert.Equal(t, []string{
		"2025-01-06 08:00",
		"2025-01-08 08:00",
		"2025-01-13 08:00",
		"2025-01-15 08:00",
	}, starts(occ))
}

func TestGenerateWeeklySkipsDaysBeforeBase(t *testing.T) {
	base := at(2025, 1, 8, 10, 0) // Wednesday
	rule, err := Weekly(1, []time.Weekday{time.Monday, time.Wednesday}, day(2025, 1, 14))
	require.NoError(t, err)

	occ := Generate(base, base.Add(time.Hour), rule)
	assert.Equal(t, []string{"2025-01-08 10:00", "2025-01-13 10:00"}, starts(occ))
}

func TestGenerateWeeklyIntervalIsMondayAligned(t *testing.T) {
	// Base on a Friday; the Monday of the base week anchors the 2-week cadence.
	base := at(2025, 1, 10, 9, 0)
	rule, err := Weekly(2, []time.Weekday{time.Monday, time.Friday}, day(2025, 2, 3))
	require.NoError(t, err)

	occ := Generate(base, base.Add(time.Hour), rule)
	assert.Equal(t, []string{
		"2025-01-10 09:00",
		"2025-01-20 09:00",
		"2025-01-24 09:00",
		"2025-02-03 09:00",
	}, starts(occ))
}

func TestGenerateMonthlyOmitsInvalidDates(t *testing.T) {
	base := at(2025, 1, 31, 18, 0)
	rule, err := Monthly(1, []int{31}, day(2025, 5, 31))
	require.NoError(t, err)

	occ := Generate(base, base.Add(time.Hour), rule)
	assert.Equal(t, []string{
		"2025-01-31 18:00",
		"2025-03-31 18:00",
		"2025-05-31 18:00",
	}, starts(occ), "February and April have no 31st and are skipped, not clamped")
}

func TestGenerateMonthlyMultipleDays(t *testing.T) {
	base := at(2025, 1, 10, 7, 30)
	rule, err := Monthly(2, []int{1, 15}, day(2025, 4, 30))
	require.NoError(t, err)

	occ := Generate(base, base.Add(time.Hour), rule)
	assert.Equal(t, []string{
		"2025-01-15 07:30",
		"2025-03-01 07:30",
		"2025-03-15 07:30",
	}, starts(occ))
}

func TestGenerateYearlyCount(t *testing.T) {
	base := at(2025, 3, 14, 12, 0)
	rule, err := Yearly(1, 3, nil)
	require.NoError(t, err)

	occ := Generate(base, base.Add(2*time.Hour), rule)
	assert.Equal(t, []string{
		"2025-03-14 12:00",
		"2026-03-14 12:00",
		"2027-03-14 12:00",
	}, starts(occ))

	rule.Interval = 2
	occ = Generate(base, base.Add(2*time.Hour), rule)
	assert.Equal(t, []string{
		"2025-03-14 12:00",
		"2027-03-14 12:00",
		"2029-03-14 12:00",
	}, starts(occ))
}

func TestYearlyCountBelowTwoRejected(t *testing.T) {
	_, err := Yearly(1, 1, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))

	_, err = Yearly(1, 0, nil)
	assert.Error(t, err)

	// The generator does not validate: a count of 1 still yields one item.
	base := at(2025, 3, 14, 12, 0)
	occ := Generate(base, base.Add(time.Hour), model.RecurrenceRule{Frequency: model.Yearly, YearlyCount: 1})
	assert.Len(t, occ, 1)
}

func TestGenerateDailyIncludesBase(t *testing.T) {
	base := at(2025, 1, 6, 6, 0)
	rule, err := Daily(3, day(2025, 1, 15))
	require.NoError(t, err)

	occ := Generate(base, base.Add(30*time.Minute), rule)
	assert.Equal(t, []string{
		"2025-01-06 06:00",
		"2025-01-09 06:00",
		"2025-01-12 06:00",
		"2025-01-15 06:00",
	}, starts(occ))
}

func TestGenerateEndDateIsInclusiveDay(t *testing.T) {
	base := at(2025, 1, 6, 23, 0)
	rule, err := Daily(1, day(2025, 1, 7))
	require.NoError(t, err)

	occ := Generate(base, base.Add(30*time.Minute), rule)
	assert.Equal(t, []string{"2025-01-06 23:00", "2025-01-07 23:00"}, starts(occ))
}

func TestGenerateEndBeforeBaseIsEmpty(t *testing.T) {
	base := at(2025, 1, 6, 8, 0)
	rule := model.RecurrenceRule{Frequency: model.Daily, EndDate: day(2025, 1, 5)}
	assert.Empty(t, Generate(base, base.Add(time.Hour), rule))

	rule.Frequency = "fortnightly"
	assert.Empty(t, Generate(base, base.Add(time.Hour), rule))

	rule.EndDate = day(2025, 1, 6)
	assert.Len(t, Generate(base, base.Add(time.Hour), rule), 1)
}

func TestGenerateUnknownFrequencyFallsBack(t *testing.T) {
	base := at(2025, 1, 6, 8, 0)
	for _, rule := range []model.RecurrenceRule{
		{Frequency: "hourly"},
		{Frequency: model.Weekly},
		{Frequency: model.Monthly, DaysOfMonth: []int{0, 40}},
	} {
		occ := Generate(base, base.Add(time.Hour), rule)
		require.Len(t, occ, 1, rule.Frequency)
		assert.Equal(t, base, occ[0].Start)
	}
}

func TestGenerateHorizonIsExclusive(t *testing.T) {
	base := at(2025, 1, 6, 8, 0)
	rule := model.RecurrenceRule{Frequency: model.Daily}

	occ := Generate(base, base.Add(time.Hour), rule, WithHorizon(at(2025, 1, 9, 8, 0)))
	assert.Equal(t, []string{"2025-01-06 08:00", "2025-01-07 08:00", "2025-01-08 08:00"}, starts(occ))

	occ = Generate(base, base.Add(time.Hour), rule, WithLimit(10))
	assert.Len(t, occ, 10, "open-ended rules stop at the limit")
}

func TestGenerateFromSkipsPastWithoutSpendingLimit(t *testing.T) {
	base := at(2010, 1, 1, 9, 0)
	rule, err := Daily(1, day(2030, 12, 31))
	require.NoError(t, err)

	// More than the default limit of occurrences lie before the window.
	occ := Generate(base, base.Add(time.Hour), rule,
		WithFrom(at(2026, 10, 18, 9, 0)), WithHorizon(at(2026, 10, 21, 0, 0)))
	assert.Equal(t, []string{
		"2026-10-18 09:00",
		"2026-10-19 09:00",
		"2026-10-20 09:00",
	}, starts(occ))

	occ = Generate(base, base.Add(time.Hour), rule, WithFrom(at(2026, 10, 18, 9, 1)), WithLimit(2))
	assert.Equal(t, []string{"2026-10-19 09:00", "2026-10-20 09:00"}, starts(occ))
}

func TestGenerateFromKeepsYearlyCountFromBase(t *testing.T) {
	base := at(2025, 3, 14, 12, 0)
	rule, err := Yearly(1, 3, nil)
	require.NoError(t, err)

	occ := Generate(base, base.Add(time.Hour), rule, WithFrom(at(2026, 1, 1, 0, 0)))
	assert.Equal(t, []string{"2026-03-14 12:00", "2027-03-14 12:00"}, starts(occ))

	assert.Empty(t, Generate(base, base.Add(time.Hour), rule, WithFrom(at(2028, 1, 1, 0, 0))))
	assert.Empty(t, Generate(base, base.Add(time.Hour), model.RecurrenceRule{Frequency: "hourly"},
		WithFrom(at(2026, 1, 1, 0, 0))))
}

func TestGenerateIsRestartable(t *testing.T) {
	base := at(2025, 1, 6, 8, 0)
	rule, err := Weekly(1, []time.Weekday{time.Tuesday, time.Thursday}, day(2025, 3, 1))
	require.NoError(t, err)

	a := Generate(base, base.Add(time.Hour), rule)
	b := Generate(base, base.Add(time.Hour), rule)
	assert.Equal(t, a, b)
}

func TestGenerateProperties(t *testing.T) {
	base := at(2025, 1, 6, 8, 15)
	end := day(2025, 12, 31)
	cutoff := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	rules := []model.RecurrenceRule{
		{Frequency: model.Daily, Interval: 5, EndDate: end},
		{Frequency: model.Weekly, DaysOfWeek: []time.Weekday{time.Monday, time.Saturday}, EndDate: end},
		{Frequency: model.Monthly, Interval: 1, DaysOfMonth: []int{5, 30, 31}, EndDate: end},
		{Frequency: model.Yearly, YearlyCount: 5, EndDate: end},
	}
	for _, rule := range rules {
		occ := Generate(base, base.Add(95*time.Minute), rule)
		require.NotEmpty(t, occ, rule.Frequency)
		for i, o := range occ {
			assert.Equal(t, 95*time.Minute, o.Duration(), rule.Frequency)
			assert.False(t, o.Start.After(cutoff), rule.Frequency)
			if i > 0 {
				assert.True(t, occ[i-1].Start.Before(o.Start), rule.Frequency)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	base := at(2025, 1, 6, 8, 0)
	weekly := model.RecurrenceRule{Frequency: model.Weekly, DaysOfWeek: []time.Weekday{time.Monday}}

	assert.NoError(t, Validate(weekly, base, base.Add(time.Hour)))
	assert.Error(t, Validate(weekly, base, base), "empty interval")

	weekly.EndDate = day(2025, 1, 5)
	assert.Error(t, Validate(weekly, base, base.Add(time.Hour)), "end before start")

	cases := []model.RecurrenceRule{
		{Frequency: model.Weekly},
		{Frequency: model.Monthly},
		{Frequency: model.Monthly, DaysOfMonth: []int{32}},
		{Frequency: model.Daily, Interval: -2},
		{Frequency: "hourly"},
	}
	for _, r := range cases {
		err := Validate(r, base, base.Add(time.Hour))
		assert.True(t, errors.Is(err, model.ErrValidation), "%+v", r)
	}
}
