package conflict

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/model"
)

func clock(hh, mm int) time.Time {
	return time.Date(2025, 1, 6, hh, mm, 0, 0, time.UTC)
}

func iv(id, user string, start, end time.Time) model.Interval {
	return model.Interval{ID: id, UserID: user, CourseID: "c-" + id, Label: id, Start: start, End: end}
}

func TestOverlapsHalfOpen(t *testing.T) {
	cases := []struct {
		name       string
		a, b       [2]time.Time
		overlapped bool
	}{
		{"touching", [2]time.Time{clock(10, 0), clock(11, 0)}, [2]time.Time{clock(11, 0), clock(12, 0)}, false},
		{"partial", [2]time.Time{clock(10, 0), clock(11, 0)}, [2]time.Time{clock(10, 30), clock(11, 30)}, true},
		{"contained", [2]time.Time{clock(9, 0), clock(12, 0)}, [2]time.Time{clock(10, 0), clock(10, 15)}, true},
		{"identical", [2]time.Time{clock(9, 0), clock(10, 0)}, [2]time.Time{clock(9, 0), clock(10, 0)}, true},
		{"disjoint", [2]time.Time{clock(7, 0), clock(8, 0)}, [2]time.Time{clock(13, 0), clock(14, 0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.overlapped, Overlaps(tc.a[0], tc.a[1], tc.b[0], tc.b[1]))
			assert.Equal(t, tc.overlapped, Overlaps(tc.b[0], tc.b[1], tc.a[0], tc.a[1]), "symmetric")
		})
	}
}

func TestFindScopes(t *testing.T) {
	existing := []model.Interval{
		iv("late", "u1", clock(10, 45), clock(12, 0)),
		iv("early", "u1", clock(10, 0), clock(11, 0)),
		iv("other-user", "u2", clock(10, 0), clock(11, 0)),
	}
	candidate := iv("new", "u1", clock(10, 30), clock(11, 30))

	got, ok := Find(existing, candidate, Scope{UserID: "u1", SameDay: true})
	require.True(t, ok)
	assert.Equal(t, "early", got.ID, "earliest conflict first")

	all := FindAll(existing, candidate, Scope{UserID: "u1"})
	assert.Len(t, all, 2)

	_, ok = Find(existing, candidate, Scope{UserID: "u3"})
	assert.False(t, ok)

	all = FindAll(existing, candidate, Scope{UserID: "u1", ExcludeCourseID: "c-early"})
	require.Len(t, all, 1)
	assert.Equal(t, "late", all[0].ID)

	all = FindAll(existing, candidate, Scope{UserID: "u1", ExcludeID: "late"})
	require.Len(t, all, 1)
	assert.Equal(t, "early", all[0].ID)
}

func TestSameDayScope(t *testing.T) {
	overnight := iv("overnight", "u1", clock(23, 0), clock(23, 0).Add(3*time.Hour))
	candidate := iv("new", "u1", clock(23, 0).Add(time.Hour), clock(23, 0).Add(2*time.Hour))

	_, ok := Find([]model.Interval{overnight}, candidate, Scope{UserID: "u1", SameDay: true})
	assert.False(t, ok, "different start days are out of scope")

	_, ok = Find([]model.Interval{overnight}, candidate, Scope{UserID: "u1"})
	assert.True(t, ok)
}

func TestCheckReturnsConflictError(t *testing.T) {
	existing := []model.Interval{iv("algo", "u1", clock(8, 0), clock(9, 30))}
	err := Check(existing, iv("exam", "u1", clock(8, 30), clock(10, 0)), Scope{UserID: "u1", SameDay: true})

	var ce *model.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "algo", ce.Existing.ID)
	assert.NoError(t, Check(existing, iv("ok", "u1", clock(9, 30), clock(10, 0)), Scope{}))
}

func TestCrossCheck(t *testing.T) {
	batch := []Candidate{
		{Row: 1, Interval: iv("a1", "u1", clock(8, 0), clock(9, 0))},
		{Row: 1, Interval: iv("a2", "u1", clock(8, 30), clock(9, 30))}, // same row, ignored
		{Row: 2, Interval: iv("b1", "u1", clock(9, 0), clock(10, 0))},
		{Row: 3, Interval: iv("c1", "u1", clock(8, 45), clock(9, 15))},
	}
	pairs := CrossCheck(batch, Scope{SameDay: true})

	var got [][2]string
	for _, p := range pairs {
		got = append(got, [2]string{p.A.ID, p.B.ID})
	}
	assert.ElementsMatch(t, [][2]string{
		{"a1", "c1"},
		{"a2", "b1"},
		{"a2", "c1"},
		{"b1", "c1"},
	}, got)
}
