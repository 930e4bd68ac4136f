package model

import "time"

// Task is a to-do or event the user wants reminders for.
type Task struct {
	ID      string     `json:"id"`
	UserID  string     `json:"user_id"`
	Title   string     `json:"title"`
	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`
	// RecurrenceID references a Recurrence row; empty for one-off tasks.
	RecurrenceID string    `json:"recurrence_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Reminder fires LeadMinutes before each occurrence of its task.
type Reminder struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	LeadMinutes int    `json:"lead_minutes"`
	Active      bool   `json:"active"`
}

func (r Reminder) Lead() time.Duration {
	return time.Duration(r.LeadMinutes) * time.Minute
}

// Recurrence is the persisted form of a rule.
type Recurrence struct {
	ID   string         `json:"id"`
	Rule RecurrenceRule `json:"rule"`
}

type NotificationStatus string

const (
	NotificationScheduled NotificationStatus = "scheduled"
	NotificationFired     NotificationStatus = "fired"
	NotificationCancelled NotificationStatus = "cancelled"
)

// ScheduledNotification is one registered trigger. The table holding these
// is replaced wholesale on every reschedule pass.
type ScheduledNotification struct {
	ID              string             `json:"id"`
	TaskID          string             `json:"task_id"`
	ReminderID      string             `json:"reminder_id"`
	RecurrenceID    string             `json:"recurrence_id,omitempty"`
	OccurrenceStart time.Time          `json:"occurrence_start"`
	OccurrenceEnd   time.Time          `json:"occurrence_end"`
	TriggerAt       time.Time          `json:"trigger_at"`
	ExternalID      string             `json:"external_id"`
	LeadMinutes     int                `json:"lead_minutes"`
	Status          NotificationStatus `json:"status"`
}
