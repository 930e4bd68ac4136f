// Package conflict detects time overlaps between scheduled intervals.
//
// Intervals are half-open: [start, end). Touching endpoints never conflict.
package conflict

import (
	"sort"
	"time"

	"studycal/internal/calendar"
	"studycal/internal/model"
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Scope narrows which existing intervals a candidate is compared with.
type Scope struct {
	// UserID must match when set.
	UserID string
	// SameDay additionally requires both intervals to start on the same
	// calendar day.
	SameDay bool
	// ExcludeCourseID skips intervals of one course (a suspension is meant
	// to cover its own course's slot).
	ExcludeCourseID string
	// ExcludeID skips a single interval, e.g. the entry being replaced.
	ExcludeID string
}

func (s Scope) admits(existing, candidate model.Interval) bool {
	if s.UserID != "" && existing.UserID != s.UserID {
		return false
	}
	if s.ExcludeCourseID != "" && existing.CourseID == s.ExcludeCourseID {
		return false
	}
	if s.ExcludeID != "" && existing.ID == s.ExcludeID {
		return false
	}
	if s.SameDay && !calendar.SameDay(candidate.Start, existing.Start) {
		return false
	}
	return true
}

// Find returns the earliest-starting interval in existing that conflicts
// with candidate under scope.
func Find(existing []model.Interval, candidate model.Interval, scope Scope) (model.Interval, bool) {
	all := FindAll(existing, candidate, scope)
	if len(all) == 0 {
		return model.Interval{}, false
	}
	return all[0], true
}

// FindAll returns every conflicting interval ordered by start.
func FindAll(existing []model.Interval, candidate model.Interval, scope Scope) []model.Interval {
	var out []model.Interval
	for _, ex := range existing {
		if !scope.admits(ex, candidate) {
			continue
		}
		if Overlaps(ex.Start, ex.End, candidate.Start, candidate.End) {
			out = append(out, ex)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Check wraps Find into a *model.ConflictError.
func Check(existing []model.Interval, candidate model.Interval, scope Scope) error {
	if ex, ok := Find(existing, candidate, scope); ok {
		return &model.ConflictError{Candidate: candidate, Existing: ex}
	}
	return nil
}

// Candidate is one slot of one row in an import batch.
type Candidate struct {
	Row int
	model.Interval
}

// Pair is an overlap between slots from two different rows.
type Pair struct {
	A, B Candidate
}

// CrossCheck compares every slot with every slot of every other row in the
// batch. Slots of the same row are never compared with each other. The
// quadratic scan is fine at import sizes.
func CrossCheck(batch []Candidate, scope Scope) []Pair {
	var out []Pair
	for i := 0; i < len(batch); i++ {
		for j := i + 1; j < len(batch); j++ {
			a, b := batch[i], batch[j]
			if a.Row == b.Row {
				continue
			}
			if !scope.admits(a.Interval, b.Interval) {
				continue
			}
			if Overlaps(a.Start, a.End, b.Start, b.End) {
				out = append(out, Pair{A: a, B: b})
			}
		}
	}
	return out
}
