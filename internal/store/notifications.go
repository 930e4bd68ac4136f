package store

import (
	"context"
	"fmt"

	"studycal/internal/model"
)

// DeleteAllNotifications truncates the scheduled-notification table.
func (db *DB) DeleteAllNotifications(ctx context.Context) error {
	if _, err := db.sql.ExecContext(ctx, `DELETE FROM scheduled_notifications`); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}

// InsertNotifications bulk-inserts rows in one transaction.
func (db *DB) InsertNotifications(ctx context.Context, rows []model.ScheduledNotification) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scheduled_notifications (id, task_id, reminder_id, recurrence_id,
			occurrence_start_ms, occurrence_end_ms, trigger_ms, external_id, lead_minutes, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	defer stmt.Close()

	for _, n := range rows {
		status := n.Status
		if status == "" {
			status = model.NotificationScheduled
		}
		if _, err := stmt.ExecContext(ctx, newID(n.ID), n.TaskID, n.ReminderID, n.RecurrenceID,
			toMillis(n.OccurrenceStart), toMillis(n.OccurrenceEnd), toMillis(n.TriggerAt),
			n.ExternalID, n.LeadMinutes, string(status)); err != nil {
			return fmt.Errorf("insert notification %s: %w", n.ID, err)
		}
	}
	return tx.Commit()
}

// ListNotifications returns all rows ordered by trigger time.
func (db *DB) ListNotifications(ctx context.Context) ([]model.ScheduledNotification, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT id, task_id, reminder_id, recurrence_id, occurrence_start_ms, occurrence_end_ms,
			trigger_ms, external_id, lead_minutes, status
		 FROM scheduled_notifications ORDER BY trigger_ms, id`)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]model.ScheduledNotification, 0)
	for rows.Next() {
		var n model.ScheduledNotification
		var start, end, trigger int64
		var status string
		if err := rows.Scan(&n.ID, &n.TaskID, &n.ReminderID, &n.RecurrenceID,
			&start, &end, &trigger, &n.ExternalID, &n.LeadMinutes, &status); err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		n.OccurrenceStart = db.fromMillis(start)
		n.OccurrenceEnd = db.fromMillis(end)
		n.TriggerAt = db.fromMillis(trigger)
		n.Status = model.NotificationStatus(status)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (db *DB) SetNotificationStatus(ctx context.Context, id string, status model.NotificationStatus) error {
	res, err := db.sql.ExecContext(ctx,
		`UPDATE scheduled_notifications SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("set notification status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}
