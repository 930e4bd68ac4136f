package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"studycal/internal/model"
)

func (db *DB) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	t.ID = newID(t.ID)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = db.now()
	}
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, start_ms, end_ms, recurrence_id, active, created_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, nullMillis(t.StartAt), nullMillis(t.EndAt),
		t.RecurrenceID, boolInt(t.Active), toMillis(t.CreatedAt))
	if err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (db *DB) GetTask(ctx context.Context, id string) (model.Task, error) {
	tasks, err := db.queryTasks(ctx, `id = ?`, id)
	if err != nil {
		return model.Task{}, err
	}
	if len(tasks) == 0 {
		return model.Task{}, model.ErrNotFound
	}
	return tasks[0], nil
}

// ActiveTasks returns every active task of every user.
func (db *DB) ActiveTasks(ctx context.Context) ([]model.Task, error) {
	return db.queryTasks(ctx, `active = 1`)
}

func (db *DB) SetTaskActive(ctx context.Context, id string, active bool) error {
	res, err := db.sql.ExecContext(ctx, `UPDATE tasks SET active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("set task active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (db *DB) queryTasks(ctx context.Context, where string, args ...any) ([]model.Task, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, user_id, title, start_ms, end_ms, recurrence_id, active, created_ms
		 FROM tasks WHERE `+where+` ORDER BY created_ms, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	out := make([]model.Task, 0)
	for rows.Next() {
		var t model.Task
		var start, end sql.NullInt64
		var active int
		var created int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &start, &end, &t.RecurrenceID, &active, &created); err != nil {
			return nil, fmt.Errorf("query tasks: %w", err)
		}
		t.StartAt = db.fromNullMillis(start)
		t.EndAt = db.fromNullMillis(end)
		t.Active = active != 0
		t.CreatedAt = db.fromMillis(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *DB) CreateReminder(ctx context.Context, r model.Reminder) (model.Reminder, error) {
	r.ID = newID(r.ID)
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO reminders (id, task_id, lead_minutes, active) VALUES (?, ?, ?, ?)`,
		r.ID, r.TaskID, r.LeadMinutes, boolInt(r.Active))
	if err != nil {
		return model.Reminder{}, fmt.Errorf("create reminder: %w", err)
	}
	return r, nil
}

func (db *DB) ActiveReminders(ctx context.Context) ([]model.Reminder, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, task_id, lead_minutes, active FROM reminders WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("active reminders: %w", err)
	}
	defer rows.Close()

	out := make([]model.Reminder, 0)
	for rows.Next() {
		var r model.Reminder
		var active int
		if err := rows.Scan(&r.ID, &r.TaskID, &r.LeadMinutes, &active); err != nil {
			return nil, fmt.Errorf("active reminders: %w", err)
		}
		r.Active = active != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) CreateRecurrence(ctx context.Context, rec model.Recurrence) (model.Recurrence, error) {
	rec.ID = newID(rec.ID)
	raw, err := json.Marshal(rec.Rule)
	if err != nil {
		return model.Recurrence{}, fmt.Errorf("encode rule: %w", err)
	}
	if _, err := db.sql.ExecContext(ctx,
		`INSERT INTO recurrences (id, rule) VALUES (?, ?)`, rec.ID, string(raw)); err != nil {
		return model.Recurrence{}, fmt.Errorf("create recurrence: %w", err)
	}
	return rec, nil
}

func (db *DB) GetRecurrence(ctx context.Context, id string) (model.Recurrence, error) {
	var raw string
	err := db.sql.QueryRowContext(ctx, `SELECT rule FROM recurrences WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Recurrence{}, model.ErrNotFound
	}
	if err != nil {
		return model.Recurrence{}, fmt.Errorf("get recurrence: %w", err)
	}
	rec := model.Recurrence{ID: id}
	if err := json.Unmarshal([]byte(raw), &rec.Rule); err != nil {
		return model.Recurrence{}, fmt.Errorf("decode rule %s: %w", id, err)
	}
	return rec, nil
}

// Recurrences returns every stored rule. Rows that no longer decode are
// skipped so one bad row cannot block a reschedule.
func (db *DB) Recurrences(ctx context.Context) ([]model.Recurrence, error) {
	rows, err := db.sql.QueryContext(ctx, `SELECT id, rule FROM recurrences ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("recurrences: %w", err)
	}
	defer rows.Close()

	out := make([]model.Recurrence, 0)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("recurrences: %w", err)
		}
		rec := model.Recurrence{ID: id}
		if err := json.Unmarshal([]byte(raw), &rec.Rule); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
