package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studycal/internal/model"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:algo@uni
DTSTAMP:20250101T000000Z
DTSTART:20250106T080000Z
DTEND:20250106T093000Z
SUMMARY:Algorithms
LOCATION:Room 101
RRULE:FREQ=WEEKLY;BYDAY=MO;COUNT=6
EXDATE:20250120T080000Z
END:VEVENT
BEGIN:VEVENT
UID:algo@uni
DTSTAMP:20250101T000000Z
RECURRENCE-ID:20250127T080000Z
DTSTART:20250127T100000Z
DTEND:20250127T113000Z
SUMMARY:Algorithms (moved)
LOCATION:Room 202
END:VEVENT
BEGIN:VEVENT
UID:holiday@uni
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250115
DTEND;VALUE=DATE:20250116
SUMMARY:Holiday
END:VEVENT
BEGIN:VEVENT
UID:exam@uni
DTSTAMP:20250101T000000Z
DTSTART:20250108T090000Z
DTEND:20250108T110000Z
SUMMARY:Physics exam
END:VEVENT
BEGIN:VEVENT
DTSTAMP:20250101T000000Z
DTSTART:20250108T090000Z
SUMMARY:no uid
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseICS(t *testing.T) {
	events, err := ParseICS(crlf(feed))
	require.NoError(t, err)
	require.Len(t, events, 4, "the event without UID is skipped")

	algo := events[0]
	assert.Equal(t, "algo@uni", algo.UID)
	assert.Equal(t, "Room 101", algo.Location)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO;COUNT=6", algo.RawRRule)
	require.Len(t, algo.ExDates, 1)
	assert.True(t, algo.ExDates[0].Equal(time.Date(2025, 1, 20, 8, 0, 0, 0, time.UTC)))

	require.NotNil(t, events[1].RecurrenceID)
	assert.True(t, events[2].AllDay)
	assert.False(t, events[3].AllDay)

	_, err = ParseICS([]byte("  "))
	assert.Error(t, err)
}

func TestToImportRows(t *testing.T) {
	events, err := ParseICS(crlf(feed))
	require.NoError(t, err)

	rows, skipped, err := ToImportRows(events, ImportOptions{
		UserID:     "u1",
		Location:   time.UTC,
		RangeStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var got []string
	for i, r := range rows {
		assert.Equal(t, i+1, r.Row)
		assert.Equal(t, model.EntryExtra, r.Params.Type)
		assert.Equal(t, "u1", r.Params.UserID)
		got = append(got, r.Params.Date+" "+r.Params.StartTime+"-"+r.Params.EndTime+" "+r.Params.CourseName)
	}
	assert.Equal(t, []string{
		"2025-01-06 08:00-09:30 Algorithms",
		"2025-01-08 09:00-11:00 Physics exam",
		"2025-01-13 08:00-09:30 Algorithms",
		"2025-01-27 10:00-11:30 Algorithms (moved)",
	}, got)
	assert.Equal(t, "Room 202", rows[3].Params.Location)

	require.Len(t, skipped, 1)
	assert.Equal(t, "holiday@uni", skipped[0].UID)
}

func TestToImportRowsRejectsEmptyRange(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := ToImportRows(nil, ImportOptions{RangeStart: at, RangeEnd: at})
	assert.Error(t, err)
}

func TestExportRoundTrip(t *testing.T) {
	start := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	entries := []model.ScheduleEntry{
		{ID: "e1", CourseID: "c1", Type: model.EntryTheory, Start: start, End: start.Add(90 * time.Minute), Status: model.StatusScheduled},
		{ID: "e2", CourseID: "c1", Type: model.EntryTheory, Start: start.AddDate(0, 0, 7), End: start.AddDate(0, 0, 7).Add(90 * time.Minute), Status: model.StatusCancelled},
	}
	courses := map[string]model.Course{"c1": {ID: "c1", Name: "Algorithms", Location: "Room 101", Instructor: "Dr. Lee"}}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, entries, courses))
	assert.Contains(t, buf.String(), "PRODID:"+productID)

	events, err := ParseICS(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, events, 2)
	for i, ev := range events {
		assert.Equal(t, entries[i].ID, ev.UID)
		assert.Equal(t, "Algorithms (theory)", ev.Summary)
		assert.Equal(t, "Room 101", ev.Location)
		assert.True(t, ev.Start.Equal(entries[i].Start))
		assert.True(t, ev.End.Equal(entries[i].End))
	}
	assert.False(t, events[0].Cancelled)
	assert.True(t, events[1].Cancelled)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cal.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write(crlf(feed))
	}))
	defer srv.Close()

	f := NewFetcher()
	body, err := f.Fetch(context.Background(), srv.URL+"/cal.ics?token=secret")
	require.NoError(t, err)
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.ics")
	assert.Error(t, err)
	assert.NotContains(t, err.Error(), "missing.ics")
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://cal.example.com/...(redacted)", redactURL("https://cal.example.com/private/abc.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
