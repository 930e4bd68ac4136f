package schedule

import (
	"context"

	"studycal/internal/calendar"
	"studycal/internal/conflict"
	appLog "studycal/internal/log"
	"studycal/internal/model"
)

// makeupDays is how far a make-up session is pushed past the last session
// of the suspended weekday and time.
const makeupDays = 7

// suspend records a cancellation slot and auto-schedules a make-up session.
//
// Suspensions are best-effort: a slot that would conflict with another
// course is skipped instead of failing the request.
//
//  1. The cancellation slot may overlap the course's own sessions; those
//     sessions are marked cancelled. A session on exactly the slot is turned
//     into the suspension record itself.
//  2. The make-up slot goes one week after the latest session of the course
//     on the same weekday and time, counting earlier make-ups, so repeated
//     suspensions chain forward instead of piling onto one week.
func (s *Service) suspend(ctx context.Context, course model.Course, pl plan) (Result, error) {
	res := Result{Course: course}
	labels := newLabeler(s.store)

	candidate := model.Interval{UserID: pl.userID, CourseID: course.ID, Label: course.Name, Start: pl.start, End: pl.end}
	existing, err := s.dayIntervals(ctx, labels, pl.userID, pl.start)
	if err != nil {
		return res, err
	}
	if ex, ok := conflict.Find(existing, candidate, conflict.Scope{UserID: pl.userID, SameDay: true, ExcludeCourseID: course.ID}); ok {
		res.Slots = append(res.Slots, SlotResult{Start: pl.start, End: pl.end, Outcome: OutcomeSkipped, Conflict: &ex})
		appLog.Info("suspension skipped: slot conflicts with another course",
			"course", course.Name, "slot", calendar.FormatRange(pl.start, pl.end), "existing", ex.Label)
		return res, nil
	}

	sessions, err := s.store.EntriesForCourse(ctx, course.ID)
	if err != nil {
		return res, model.External("load course entries", err)
	}
	for _, e := range sessions {
		if e.Type == model.EntrySuspension && conflict.Overlaps(e.Start, e.End, pl.start, pl.end) {
			res.Slots = append(res.Slots, SlotResult{Start: pl.start, End: pl.end, Outcome: OutcomeSkipped})
			appLog.Info("suspension skipped: already suspended", "course", course.Name, "slot", calendar.FormatRange(pl.start, pl.end))
			return res, nil
		}
	}

	// A session holding exactly this slot becomes the suspension record;
	// inserting a second row would repeat its (user, course, start, end) key.
	var held *model.ScheduleEntry
	for i, e := range sessions {
		if e.Start.Equal(pl.start) && e.End.Equal(pl.end) {
			held = &sessions[i]
			break
		}
	}

	if held != nil {
		if err := s.store.SuspendEntry(ctx, held.ID); err != nil {
			return res, model.External("suspend entry", err)
		}
		entry := *held
		entry.Type = model.EntrySuspension
		entry.Status = model.StatusCancelled
		res.Slots = append(res.Slots, SlotResult{Start: pl.start, End: pl.end, Outcome: OutcomeCreated, Entry: &entry})
		if held.Status != model.StatusCancelled {
			res.Cancelled = append(res.Cancelled, held.ID)
		}
	} else {
		entry, err := s.store.InsertEntry(ctx, model.ScheduleEntry{
			CourseID: course.ID,
			UserID:   pl.userID,
			Type:     model.EntrySuspension,
			Start:    pl.start,
			End:      pl.end,
			Status:   model.StatusScheduled,
		})
		if err != nil {
			return res, model.External("insert suspension", err)
		}
		res.Slots = append(res.Slots, SlotResult{Start: pl.start, End: pl.end, Outcome: OutcomeCreated, Entry: &entry})
	}

	for _, e := range sessions {
		if e.Status != model.StatusScheduled || e.Type == model.EntrySuspension {
			continue
		}
		if held != nil && e.ID == held.ID {
			continue
		}
		if !conflict.Overlaps(e.Start, e.End, pl.start, pl.end) {
			continue
		}
		if err := s.store.UpdateEntryStatus(ctx, e.ID, model.StatusCancelled); err != nil {
			return res, model.External("cancel entry", err)
		}
		res.Cancelled = append(res.Cancelled, e.ID)
	}

	makeup := s.makeupSlot(sessions, pl)
	if err := s.insertMakeup(ctx, labels, course, pl.userID, makeup, &res); err != nil {
		return res, err
	}
	return res, nil
}

// makeupSlot finds where the make-up session for a suspension goes.
func (s *Service) makeupSlot(sessions []model.ScheduleEntry, pl plan) model.ScheduleEntry {
	latest := model.ScheduleEntry{Type: model.EntryExtra, Start: pl.start, End: pl.end}
	from, to := calendar.ClockOf(pl.start), calendar.ClockOf(pl.end)

	for _, e := range sessions {
		if e.Type == model.EntrySuspension {
			continue
		}
		if !e.Type.Recurring() && e.Status != model.StatusMakeup {
			continue
		}
		if e.Start.Weekday() != pl.start.Weekday() || calendar.ClockOf(e.Start) != from || calendar.ClockOf(e.End) != to {
			continue
		}
		if e.Start.Before(pl.start) {
			continue
		}
		if !e.Start.Before(latest.Start) {
			latest = e
		}
	}

	typ := latest.Type
	if !typ.Recurring() && typ != model.EntryExtra {
		typ = model.EntryExtra
	}
	// Wall-clock arithmetic keeps the time of day across DST changes.
	start := calendar.At(latest.Start.AddDate(0, 0, makeupDays), from)
	return model.ScheduleEntry{
		Type:   typ,
		Start:  start,
		End:    start.Add(pl.end.Sub(pl.start)),
		Status: model.StatusMakeup,
	}
}

func (s *Service) insertMakeup(ctx context.Context, labels *labeler, course model.Course, userID string, slot model.ScheduleEntry, res *Result) error {
	candidate := model.Interval{UserID: userID, CourseID: course.ID, Label: course.Name, Start: slot.Start, End: slot.End}
	existing, err := s.dayIntervals(ctx, labels, userID, slot.Start)
	if err != nil {
		return err
	}
	if ex, ok := conflict.Find(existing, candidate, conflict.Scope{UserID: userID, SameDay: true}); ok {
		res.Slots = append(res.Slots, SlotResult{Start: slot.Start, End: slot.End, Outcome: OutcomeSkipped, Conflict: &ex})
		appLog.Info("make-up skipped: slot is taken",
			"course", course.Name, "slot", calendar.FormatRange(slot.Start, slot.End), "existing", ex.Label)
		return nil
	}

	slot.CourseID = course.ID
	slot.UserID = userID
	entry, err := s.store.InsertEntry(ctx, slot)
	if err != nil {
		return model.External("insert make-up", err)
	}
	res.Slots = append(res.Slots, SlotResult{Start: slot.Start, End: slot.End, Outcome: OutcomeCreated, Entry: &entry})
	appLog.Info("make-up scheduled", "course", course.Name, "slot", calendar.FormatRange(slot.Start, slot.End))
	return nil
}
