package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleUnmarshalWireForm(t *testing.T) {
	var r RecurrenceRule
	err := json.Unmarshal([]byte(`{
		"frequency": "Weekly",
		"interval": 2,
		"daysOfWeek": ["Wed", "Mon", "mon"],
		"endDate": "2025-03-31"
	}`), &r)
	require.NoError(t, err)

	assert.Equal(t, Weekly, r.Frequency)
	assert.Equal(t, 2, r.Step())
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, r.DaysOfWeek)
	require.NotNil(t, r.EndDate)
	assert.Equal(t, "2025-03-31", r.EndDate.Format("2006-01-02"))
	assert.True(t, r.Bounded())

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"frequency":"weekly","interval":2,"daysOfWeek":["Mon","Wed"],"endDate":"2025-03-31"}`, string(out))
}

func TestRuleUnmarshalRejectsBadTokens(t *testing.T) {
	var r RecurrenceRule
	assert.Error(t, json.Unmarshal([]byte(`{"frequency":"weekly","daysOfWeek":["Xyz"]}`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"frequency":"monthly","daysOfMonth":["first"]}`), &r))
	assert.Error(t, json.Unmarshal([]byte(`{"frequency":"daily","endDate":"31/12/2025"}`), &r))
}

func TestRuleMonthDaysAsStrings(t *testing.T) {
	var r RecurrenceRule
	require.NoError(t, json.Unmarshal([]byte(`{"frequency":"monthly","daysOfMonth":["31","1","15"]}`), &r))
	assert.Equal(t, []int{1, 15, 31}, r.DaysOfMonth)
	assert.False(t, r.Bounded())
	assert.Equal(t, 1, r.Step())
}

func TestRuleMarshalRejectsOutOfRangeWeekday(t *testing.T) {
	r := RecurrenceRule{Frequency: Weekly, DaysOfWeek: []time.Weekday{time.Monday, 9}}
	_, err := json.Marshal(r)
	assert.Error(t, err)

	r.DaysOfWeek = []time.Weekday{-1}
	_, err = json.Marshal(r)
	assert.Error(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	v := Invalid("interval", "must be positive, got %d", -1)
	assert.True(t, errors.Is(v, ErrValidation))
	assert.EqualError(t, v, "validation: interval: must be positive, got -1")

	cause := errors.New("disk full")
	ext := External("insert entry", cause)
	assert.True(t, errors.Is(ext, ErrExternal))
	assert.True(t, errors.Is(ext, cause))
	assert.Nil(t, External("noop", nil))

	start := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	c := &ConflictError{
		Candidate: Interval{Start: start.Add(30 * time.Minute)},
		Existing:  Interval{Label: "Algorithms", Start: start, End: start.Add(90 * time.Minute)},
	}
	assert.True(t, errors.Is(c, ErrConflict))
	assert.Contains(t, c.Error(), `"Algorithms" at 2025-01-06 08:00 - 09:30`)
}
