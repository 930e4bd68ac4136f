package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateAndClock(t *testing.T) {
	day, err := ParseDate("2025-01-06", time.UTC)
	require.NoError(t, err)
	c, err := ParseClock("08:30")
	require.NoError(t, err)

	got := At(day, c)
	assert.Equal(t, time.Date(2025, 1, 6, 8, 30, 0, 0, time.UTC), got)
	assert.Equal(t, "08:30", ClockOf(got).String())
	assert.Equal(t, 510, c.Minutes())

	_, err = ParseDate("06/01/2025", time.UTC)
	assert.Error(t, err)
	_, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestStartOfWeekIsMonday(t *testing.T) {
	cases := map[string]string{
		"2025-01-06": "2025-01-06", // Monday
		"2025-01-08": "2025-01-06",
		"2025-01-12": "2025-01-06", // Sunday
		"2025-01-13": "2025-01-13",
	}
	for in, want := range cases {
		d, err := ParseDate(in, time.UTC)
		require.NoError(t, err)
		assert.Equal(t, want, FormatDate(StartOfWeek(d.Add(15*time.Hour))), in)
	}
}

func TestSameDayAndBounds(t *testing.T) {
	a := time.Date(2025, 1, 6, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)
	assert.False(t, SameDay(a, b))
	assert.True(t, SameDay(a, StartOfDay(a)))
	assert.True(t, SameDay(a, EndOfDay(a)))
	assert.Equal(t, b, EndOfDay(a).Add(time.Nanosecond))
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 28, DaysIn(2025, time.February))
	assert.Equal(t, 31, DaysIn(2025, time.December))
}

func TestParseWeekday(t *testing.T) {
	for _, s := range []string{"Mon", "mon", "Monday", " MONDAY "} {
		d, err := ParseWeekday(s)
		require.NoError(t, err, s)
		assert.Equal(t, time.Monday, d)
	}
	_, err := ParseWeekday("Funday")
	assert.Error(t, err)
	assert.Equal(t, "Sun", WeekdayToken(time.Sunday))
}

func TestFormatRange(t *testing.T) {
	s := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-06 08:00-09:30", FormatRange(s, s.Add(90*time.Minute)))
	assert.Equal(t, "2025-01-06 08:00 - 2025-01-07 08:00", FormatRange(s, s.AddDate(0, 0, 1)))
}
