package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"studycal/internal/calendar"
	"studycal/internal/conflict"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/schedule"
)

const defaultMaxPerEvent = 5000

// ImportOptions controls how parsed events become import rows.
type ImportOptions struct {
	UserID string
	// Location is the timezone rows are expressed in. Nil means time.Local.
	Location *time.Location
	// Only instances overlapping [RangeStart, RangeEnd) are imported.
	RangeStart time.Time
	RangeEnd   time.Time
	// MaxPerEvent caps the instances taken from one recurring event.
	MaxPerEvent int
}

// Skipped is an instance that could not be turned into a row.
type Skipped struct {
	UID     string    `json:"uid"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	Reason  string    `json:"reason"`
}

type instance struct {
	uid      string
	summary  string
	location string
	start    time.Time
	end      time.Time
	allDay   bool
}

// ToImportRows expands recurring events inside the window, applies EXDATE
// and RECURRENCE-ID overrides, and maps every remaining instance to a
// one-off "extra" row. Rows are numbered from 1 in start order.
//
// All-day and multi-day instances have no HH:mm slot and are skipped.
func ToImportRows(events []ParsedEvent, opts ImportOptions) ([]schedule.ImportRow, []Skipped, error) {
	if !opts.RangeStart.Before(opts.RangeEnd) {
		return nil, nil, errors.New("ics import: range end must be after range start")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxPerEvent <= 0 {
		opts.MaxPerEvent = defaultMaxPerEvent
	}

	bases := make([]ParsedEvent, 0, len(events))
	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	var all []instance
	for _, ev := range bases {
		if ev.Cancelled {
			continue
		}
		all = append(all, expandEvent(ev, overrides[ev.UID], opts)...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].start.Equal(all[j].start) {
			return all[i].uid < all[j].uid
		}
		return all[i].start.Before(all[j].start)
	})

	rows := make([]schedule.ImportRow, 0, len(all))
	var skipped []Skipped
	for _, in := range all {
		start, end := in.start.In(opts.Location), in.end.In(opts.Location)
		reason := ""
		switch {
		case in.allDay:
			reason = "all-day event"
		case !calendar.SameDay(start, end) || !end.After(start):
			reason = "does not fit in one day"
		}
		if reason != "" {
			skipped = append(skipped, Skipped{UID: in.uid, Summary: in.summary, Start: start, Reason: reason})
			continue
		}

		name := in.summary
		if name == "" {
			name = "Untitled"
		}
		rows = append(rows, schedule.ImportRow{
			Row: len(rows) + 1,
			Params: schedule.CreateParams{
				UserID:     opts.UserID,
				CourseName: name,
				Location:   in.location,
				Type:       model.EntryExtra,
				Date:       calendar.FormatDate(start),
				StartTime:  calendar.ClockOf(start).String(),
				EndTime:    calendar.ClockOf(end).String(),
			},
		})
	}

	appLog.Info("ics: import rows built", "events", len(bases), "rows", len(rows), "skipped", len(skipped))
	return rows, skipped, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, opts ImportOptions) []instance {
	dur := ev.End.Sub(ev.Start)
	starts := []time.Time{ev.Start}

	if ev.RawRRule != "" {
		r, err := rrule.StrToRRule(ev.RawRRule)
		if err != nil {
			appLog.Warn("ics: bad RRULE, using first instance only", err, "uid", ev.UID, "rrule", ev.RawRRule)
		} else {
			r.DTStart(ev.Start)
			var set rrule.Set
			set.RRule(r)
			for _, ex := range ev.ExDates {
				set.ExDate(ex.In(ev.Start.Location()))
			}
			loc := ev.Start.Location()
			starts = set.Between(opts.RangeStart.Add(-dur).In(loc), opts.RangeEnd.In(loc), true)
			if len(starts) > opts.MaxPerEvent {
				appLog.Warn("ics: recurring event truncated", errors.New("too many instances"),
					"uid", ev.UID, "cap", opts.MaxPerEvent)
				starts = starts[:opts.MaxPerEvent]
			}
		}
	}

	out := make([]instance, 0, len(starts))
	for _, s := range starts {
		in := instance{
			uid:      ev.UID,
			summary:  ev.Summary,
			location: ev.Location,
			start:    s,
			end:      s.Add(dur),
			allDay:   ev.AllDay,
		}
		if ov, ok := findOverride(overrides, s); ok {
			if ov.Cancelled {
				continue
			}
			in.summary, in.location = ov.Summary, ov.Location
			in.start, in.end, in.allDay = ov.Start, ov.End, ov.AllDay
		}
		if !conflict.Overlaps(in.start, in.end, opts.RangeStart, opts.RangeEnd) {
			continue
		}
		out = append(out, in)
	}
	return out
}

func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.RecurrenceID.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}
