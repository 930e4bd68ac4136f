package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"studycal/internal/model"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	seq         int
	courses     map[string]model.Course
	entries     map[string]model.ScheduleEntry
	recurrences map[string]model.Recurrence

	// failInsertAfter makes InsertEntry fail once this many entries exist.
	failInsertAfter int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		courses:         make(map[string]model.Course),
		entries:         make(map[string]model.ScheduleEntry),
		recurrences:     make(map[string]model.Recurrence),
		failInsertAfter: -1,
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) FindCourseByName(_ context.Context, userID, name string) (model.Course, error) {
	for _, c := range f.courses {
		if c.UserID == userID && c.Name == name {
			return c, nil
		}
	}
	return model.Course{}, model.ErrNotFound
}

func (f *fakeStore) GetCourse(_ context.Context, id string) (model.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return model.Course{}, model.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) CreateCourse(_ context.Context, c model.Course) (model.Course, error) {
	c.ID = f.nextID("course")
	f.courses[c.ID] = c
	return c, nil
}

func (f *fakeStore) InsertEntry(_ context.Context, e model.ScheduleEntry) (model.ScheduleEntry, error) {
	if f.failInsertAfter >= 0 && len(f.entries) >= f.failInsertAfter {
		return model.ScheduleEntry{}, errors.New("disk full")
	}
	for _, ex := range f.entries {
		if ex.UserID == e.UserID && ex.CourseID == e.CourseID && ex.Start.Equal(e.Start) && ex.End.Equal(e.End) {
			return model.ScheduleEntry{}, errors.New("UNIQUE constraint failed")
		}
	}
	e.ID = f.nextID("entry")
	f.entries[e.ID] = e
	return e, nil
}

func (f *fakeStore) sorted(keep func(model.ScheduleEntry) bool) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, 0)
	for _, e := range f.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (f *fakeStore) EntriesOverlapping(_ context.Context, userID string, start, end time.Time) ([]model.ScheduleEntry, error) {
	return f.sorted(func(e model.ScheduleEntry) bool {
		return e.UserID == userID && e.Start.Before(end) && start.Before(e.End)
	}), nil
}

func (f *fakeStore) EntriesForCourse(_ context.Context, courseID string) ([]model.ScheduleEntry, error) {
	return f.sorted(func(e model.ScheduleEntry) bool { return e.CourseID == courseID }), nil
}

func (f *fakeStore) UpdateEntryStatus(_ context.Context, id string, status model.EntryStatus) error {
	e, ok := f.entries[id]
	if !ok {
		return model.ErrNotFound
	}
	e.Status = status
	f.entries[id] = e
	return nil
}

func (f *fakeStore) SuspendEntry(_ context.Context, id string) error {
	e, ok := f.entries[id]
	if !ok {
		return model.ErrNotFound
	}
	e.Type = model.EntrySuspension
	e.Status = model.StatusCancelled
	f.entries[id] = e
	return nil
}

func (f *fakeStore) DeleteCourseEntries(_ context.Context, courseID string, typ model.EntryType) (int, error) {
	n := 0
	for id, e := range f.entries {
		if e.CourseID == courseID && e.Type == typ {
			delete(f.entries, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateRecurrence(_ context.Context, rec model.Recurrence) (model.Recurrence, error) {
	rec.ID = f.nextID("rec")
	f.recurrences[rec.ID] = rec
	return rec, nil
}

func (f *fakeStore) courseEntries(name string) []model.ScheduleEntry {
	c, err := f.FindCourseByName(context.Background(), "u1", name)
	if err != nil {
		return nil
	}
	out, _ := f.EntriesForCourse(context.Background(), c.ID)
	return out
}
