package model

import "time"

// Occurrence is one concrete instance of a (possibly recurring) interval.
// Duration always equals the base interval's duration.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

func (o Occurrence) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Interval is the conflict detector's view of an already-scheduled entry.
type Interval struct {
	ID       string
	UserID   string
	CourseID string
	// Label names the interval in conflict messages (course name, type).
	Label string
	Start time.Time
	End   time.Time
}

// Course is the parent record every schedule entry hangs off.
// Name is unique per user.
type Course struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Instructor string    `json:"instructor,omitempty"`
	Location   string    `json:"location,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type EntryType string

const (
	EntryTheory     EntryType = "theory"
	EntryPractice   EntryType = "practice"
	EntryExam       EntryType = "exam"
	EntryExtra      EntryType = "extra"
	EntrySuspension EntryType = "suspension"
)

// Recurring reports whether entries of this type repeat weekly between a
// start and an end date.
func (t EntryType) Recurring() bool {
	return t == EntryTheory || t == EntryPractice
}

func (t EntryType) Valid() bool {
	switch t {
	case EntryTheory, EntryPractice, EntryExam, EntryExtra, EntrySuspension:
		return true
	}
	return false
}

type EntryStatus string

const (
	StatusScheduled EntryStatus = "scheduled"
	// StatusCancelled marks a regular slot covered by a suspension.
	StatusCancelled EntryStatus = "cancelled"
	// StatusMakeup marks a slot inserted to replace a suspended one.
	StatusMakeup EntryStatus = "makeup"
)

// ScheduleEntry is a persisted slot. Start < End always holds and
// (UserID, CourseID, Start, End) is unique.
type ScheduleEntry struct {
	ID           string      `json:"id"`
	CourseID     string      `json:"course_id"`
	UserID       string      `json:"user_id"`
	Type         EntryType   `json:"type"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	RecurrenceID string      `json:"recurrence_id,omitempty"`
	Status       EntryStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Blocking reports whether the entry occupies its time for conflict purposes.
func (e ScheduleEntry) Blocking() bool {
	return e.Status != StatusCancelled
}
