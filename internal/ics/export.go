package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"studycal/internal/model"
)

const productID = "-//studycal//schedule export//EN"

// Export writes entries as an iCalendar feed, one VEVENT per entry.
// courses maps course ids to their records for summaries and locations.
func Export(w io.Writer, entries []model.ScheduleEntry, courses map[string]model.Course) error {
	return exportAt(w, entries, courses, time.Now())
}

func exportAt(w io.Writer, entries []model.ScheduleEntry, courses map[string]model.Course, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Study schedule")

	for _, e := range entries {
		course := courses[e.CourseID]
		name := course.Name
		if name == "" {
			name = e.CourseID
		}

		ev := cal.AddEvent(e.ID)
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(e.Start)
		ev.SetEndAt(e.End)
		ev.SetSummary(fmt.Sprintf("%s (%s)", name, e.Type))
		if course.Location != "" {
			ev.SetLocation(course.Location)
		}
		if course.Instructor != "" {
			ev.SetDescription("Instructor: " + course.Instructor)
		}
		switch e.Status {
		case model.StatusCancelled:
			ev.SetStatus(ical.ObjectStatusCancelled)
		default:
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
