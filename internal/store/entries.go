package store

import (
	"context"
	"fmt"
	"time"

	"studycal/internal/model"
)

const entryColumns = `id, course_id, user_id, type, start_ms, end_ms, recurrence_id, status, created_ms`

func (db *DB) scanEntry(row interface{ Scan(...any) error }) (model.ScheduleEntry, error) {
	var e model.ScheduleEntry
	var start, end, created int64
	var typ, status string
	if err := row.Scan(&e.ID, &e.CourseID, &e.UserID, &typ, &start, &end, &e.RecurrenceID, &status, &created); err != nil {
		return model.ScheduleEntry{}, err
	}
	e.Type = model.EntryType(typ)
	e.Status = model.EntryStatus(status)
	e.Start = db.fromMillis(start)
	e.End = db.fromMillis(end)
	e.CreatedAt = db.fromMillis(created)
	return e, nil
}

func (db *DB) queryEntries(ctx context.Context, op, where string, args ...any) ([]model.ScheduleEntry, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM schedule_entries WHERE `+where+` ORDER BY start_ms, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]model.ScheduleEntry, 0)
	for rows.Next() {
		e, err := db.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertEntry persists e. The schema rejects Start >= End and duplicate
// (user, course, start, end) tuples.
func (db *DB) InsertEntry(ctx context.Context, e model.ScheduleEntry) (model.ScheduleEntry, error) {
	if !e.Start.Before(e.End) {
		return model.ScheduleEntry{}, model.Invalid("end", "must be after start")
	}
	e.ID = newID(e.ID)
	if e.Status == "" {
		e.Status = model.StatusScheduled
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = db.now()
	}
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO schedule_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CourseID, e.UserID, string(e.Type), toMillis(e.Start), toMillis(e.End),
		e.RecurrenceID, string(e.Status), toMillis(e.CreatedAt))
	if err != nil {
		return model.ScheduleEntry{}, fmt.Errorf("insert entry: %w", err)
	}
	e.Start = db.fromMillis(toMillis(e.Start))
	e.End = db.fromMillis(toMillis(e.End))
	e.CreatedAt = db.fromMillis(toMillis(e.CreatedAt))
	return e, nil
}

// EntriesOverlapping returns the user's entries intersecting [start, end).
func (db *DB) EntriesOverlapping(ctx context.Context, userID string, start, end time.Time) ([]model.ScheduleEntry, error) {
	return db.queryEntries(ctx, "entries overlapping",
		`user_id = ? AND start_ms < ? AND end_ms > ?`, userID, toMillis(end), toMillis(start))
}

func (db *DB) EntriesForCourse(ctx context.Context, courseID string) ([]model.ScheduleEntry, error) {
	return db.queryEntries(ctx, "entries for course", `course_id = ?`, courseID)
}

func (db *DB) UpdateEntryStatus(ctx context.Context, id string, status model.EntryStatus) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE schedule_entries SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SuspendEntry turns a session into the record of its own suspension: the
// row keeps its slot and becomes a cancelled suspension.
func (db *DB) SuspendEntry(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx,
		`UPDATE schedule_entries SET type = ?, status = ? WHERE id = ?`,
		string(model.EntrySuspension), string(model.StatusCancelled), id)
	if err != nil {
		return fmt.Errorf("suspend entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// DeleteCourseEntries removes the course's entries of the given type and
// returns how many were deleted.
func (db *DB) DeleteCourseEntries(ctx context.Context, courseID string, typ model.EntryType) (int, error) {
	res, err := db.sql.ExecContext(ctx,
		`DELETE FROM schedule_entries WHERE course_id = ? AND type = ?`, courseID, string(typ))
	if err != nil {
		return 0, fmt.Errorf("delete course entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (db *DB) DeleteEntry(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}
