package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studycal/internal/calendar"
	"studycal/internal/conflict"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/recurrence"
)

// Store is the row-store surface the orchestrator needs.
type Store interface {
	FindCourseByName(ctx context.Context, userID, name string) (model.Course, error)
	GetCourse(ctx context.Context, id string) (model.Course, error)
	CreateCourse(ctx context.Context, c model.Course) (model.Course, error)
	InsertEntry(ctx context.Context, e model.ScheduleEntry) (model.ScheduleEntry, error)
	EntriesOverlapping(ctx context.Context, userID string, start, end time.Time) ([]model.ScheduleEntry, error)
	EntriesForCourse(ctx context.Context, courseID string) ([]model.ScheduleEntry, error)
	UpdateEntryStatus(ctx context.Context, id string, status model.EntryStatus) error
	SuspendEntry(ctx context.Context, id string) error
	DeleteCourseEntries(ctx context.Context, courseID string, typ model.EntryType) (int, error)
	CreateRecurrence(ctx context.Context, rec model.Recurrence) (model.Recurrence, error)
}

// Service creates schedule entries: it resolves the course, expands the
// request into slots, checks every slot for conflicts and persists the
// accepted ones one at a time.
//
// Persistence is not transactional across slots. When a later slot fails,
// the slots written before it stay and are listed in the Result.
type Service struct {
	store       Store
	loc         *time.Location
	defaultUser string
}

func NewService(store Store, loc *time.Location, defaultUser string) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, loc: loc, defaultUser: defaultUser}
}

type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeConflict Outcome = "conflict"
)

// SlotResult is what happened to one candidate slot.
type SlotResult struct {
	Start    time.Time            `json:"start"`
	End      time.Time            `json:"end"`
	Outcome  Outcome              `json:"outcome"`
	Entry    *model.ScheduleEntry `json:"entry,omitempty"`
	Conflict *model.Interval      `json:"conflict,omitempty"`
}

type Result struct {
	Course model.Course `json:"course"`
	Slots  []SlotResult `json:"slots"`
	// Cancelled lists regular entries a suspension covered.
	Cancelled []string `json:"cancelled,omitempty"`
}

func (r Result) count(o Outcome) int {
	n := 0
	for _, s := range r.Slots {
		if s.Outcome == o {
			n++
		}
	}
	return n
}

func (r Result) Created() int { return r.count(OutcomeCreated) }
func (r Result) Skipped() int { return r.count(OutcomeSkipped) }

// Create validates p and schedules it.
//
// A conflicting slot in a regular (non-suspension) request aborts the
// request with a *model.ConflictError; slots already written stay. Store
// failures are returned as *model.ExternalError.
func (s *Service) Create(ctx context.Context, p CreateParams) (Result, error) {
	pl, err := s.resolve(p)
	if err != nil {
		return Result{}, err
	}
	slots, err := s.slots(pl)
	if err != nil {
		return Result{}, err
	}

	course, err := s.resolveCourse(ctx, pl)
	if err != nil {
		return Result{}, err
	}

	if pl.typ == model.EntrySuspension {
		return s.suspend(ctx, course, pl)
	}
	return s.createSeries(ctx, course, pl, slots)
}

// Replace deletes the course's entries of p.Type and recreates them from p.
// This is how a recurring series is edited.
func (s *Service) Replace(ctx context.Context, courseID string, p CreateParams) (Result, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Result{}, err
		}
		return Result{}, model.External("get course", err)
	}
	p.CourseName = course.Name
	p.UserID = course.UserID

	pl, err := s.resolve(p)
	if err != nil {
		return Result{}, err
	}
	if !pl.typ.Recurring() {
		return Result{}, model.Invalid("type", "only recurring series can be replaced, got %q", pl.typ)
	}
	slots, err := s.slots(pl)
	if err != nil {
		return Result{}, err
	}

	n, err := s.store.DeleteCourseEntries(ctx, course.ID, pl.typ)
	if err != nil {
		return Result{}, model.External("delete series", err)
	}
	appLog.Info("series removed for replacement", "course", course.Name, "type", pl.typ, "deleted", n)

	return s.createSeries(ctx, course, pl, slots)
}

// slots expands a plan into candidate slots. Suspensions expand to their
// cancellation slot only; the make-up slot depends on stored data.
func (s *Service) slots(pl plan) ([]model.Occurrence, error) {
	if !pl.typ.Recurring() {
		return []model.Occurrence{{Start: pl.start, End: pl.end}}, nil
	}
	rule, err := recurrence.Weekly(1, []time.Weekday{pl.start.Weekday()}, pl.until)
	if err != nil {
		return nil, err
	}
	if err := recurrence.Validate(rule, pl.start, pl.end); err != nil {
		return nil, err
	}
	return recurrence.Generate(pl.start, pl.end, rule), nil
}

func (s *Service) resolveCourse(ctx context.Context, pl plan) (model.Course, error) {
	course, err := s.store.FindCourseByName(ctx, pl.userID, pl.courseName)
	if err == nil {
		return course, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.Course{}, model.External("find course", err)
	}
	course, err = s.store.CreateCourse(ctx, model.Course{
		UserID:     pl.userID,
		Name:       pl.courseName,
		Instructor: pl.instructor,
		Location:   pl.location,
	})
	if err != nil {
		return model.Course{}, model.External("create course", err)
	}
	appLog.Info("course created", "course", course.Name, "id", course.ID)
	return course, nil
}

func (s *Service) createSeries(ctx context.Context, course model.Course, pl plan, slots []model.Occurrence) (Result, error) {
	res := Result{Course: course}

	var recurrenceID string
	if pl.typ.Recurring() {
		rule, _ := recurrence.Weekly(1, []time.Weekday{pl.start.Weekday()}, pl.until)
		rec, err := s.store.CreateRecurrence(ctx, model.Recurrence{Rule: rule})
		if err != nil {
			return res, model.External("create recurrence", err)
		}
		recurrenceID = rec.ID
	}

	labels := newLabeler(s.store)
	for _, slot := range slots {
		candidate := model.Interval{UserID: pl.userID, CourseID: course.ID, Label: course.Name, Start: slot.Start, End: slot.End}
		existing, err := s.dayIntervals(ctx, labels, pl.userID, slot.Start)
		if err != nil {
			return res, err
		}
		if ex, ok := conflict.Find(existing, candidate, conflict.Scope{UserID: pl.userID, SameDay: true}); ok {
			res.Slots = append(res.Slots, SlotResult{Start: slot.Start, End: slot.End, Outcome: OutcomeConflict, Conflict: &ex})
			appLog.Info("schedule conflict, aborting",
				"course", course.Name, "slot", calendar.FormatRange(slot.Start, slot.End),
				"existing", ex.Label, "existing_slot", calendar.FormatRange(ex.Start, ex.End),
				"created_before_abort", res.Created())
			return res, &model.ConflictError{Candidate: candidate, Existing: ex}
		}

		entry, err := s.store.InsertEntry(ctx, model.ScheduleEntry{
			CourseID:     course.ID,
			UserID:       pl.userID,
			Type:         pl.typ,
			Start:        slot.Start,
			End:          slot.End,
			RecurrenceID: recurrenceID,
			Status:       model.StatusScheduled,
		})
		if err != nil {
			return res, model.External("insert entry", err)
		}
		res.Slots = append(res.Slots, SlotResult{Start: slot.Start, End: slot.End, Outcome: OutcomeCreated, Entry: &entry})
	}

	appLog.Info("schedule created", "course", course.Name, "type", pl.typ, "slots", res.Created())
	return res, nil
}

// dayIntervals loads the user's blocking entries on day's calendar date.
func (s *Service) dayIntervals(ctx context.Context, labels *labeler, userID string, day time.Time) ([]model.Interval, error) {
	from := calendar.StartOfDay(day)
	entries, err := s.store.EntriesOverlapping(ctx, userID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, model.External("load entries", err)
	}
	out := make([]model.Interval, 0, len(entries))
	for _, e := range entries {
		if !e.Blocking() {
			continue
		}
		out = append(out, model.Interval{
			ID:       e.ID,
			UserID:   e.UserID,
			CourseID: e.CourseID,
			Label:    labels.label(ctx, e),
			Start:    e.Start,
			End:      e.End,
		})
	}
	return out, nil
}

// labeler caches course names for conflict messages.
type labeler struct {
	store Store
	names map[string]string
}

func newLabeler(store Store) *labeler {
	return &labeler{store: store, names: make(map[string]string)}
}

func (l *labeler) label(ctx context.Context, e model.ScheduleEntry) string {
	name, ok := l.names[e.CourseID]
	if !ok {
		name = e.CourseID
		if c, err := l.store.GetCourse(ctx, e.CourseID); err == nil {
			name = c.Name
		}
		l.names[e.CourseID] = name
	}
	return fmt.Sprintf("%s (%s)", name, e.Type)
}
