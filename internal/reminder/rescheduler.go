package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"studycal/internal/calendar"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/notify"
)

// ErrRescheduleInProgress is returned when a reschedule is requested while
// another one is still running.
var ErrRescheduleInProgress = errors.New("reschedule already in progress")

// Store is what the rescheduler reads and replaces.
type Store interface {
	ActiveTasks(ctx context.Context) ([]model.Task, error)
	ActiveReminders(ctx context.Context) ([]model.Reminder, error)
	Recurrences(ctx context.Context) ([]model.Recurrence, error)
	DeleteAllNotifications(ctx context.Context) error
	InsertNotifications(ctx context.Context, rows []model.ScheduledNotification) error
	SetNotificationStatus(ctx context.Context, id string, status model.NotificationStatus) error
}

// Rescheduler rebuilds every scheduled notification from scratch: cancel
// all, delete all, load, compute, register, persist. Runs never overlap.
type Rescheduler struct {
	store    Store
	notifier notify.Service
	horizon  time.Duration
	policy   Policy

	running sync.Mutex
}

type Option func(*Rescheduler)

func WithHorizon(h time.Duration) Option {
	return func(r *Rescheduler) {
		if h > 0 {
			r.horizon = h
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(r *Rescheduler) {
		if p != "" {
			r.policy = p
		}
	}
}

func NewRescheduler(store Store, notifier notify.Service, opts ...Option) *Rescheduler {
	r := &Rescheduler{
		store:    store,
		notifier: notifier,
		horizon:  DefaultHorizon,
		policy:   FirstOnly,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Summary reports one reschedule pass.
type Summary struct {
	Computed  int           `json:"computed"`
	Scheduled int           `json:"scheduled"`
	Failed    int           `json:"failed"`
	Took      time.Duration `json:"took"`
}

// Reschedule replaces every registered notification with a fresh set
// computed at now. A notification that fails to register is logged and
// left out; everything else still goes through. Failures of the initial
// cancel/delete and of loading or persisting are returned.
func (r *Rescheduler) Reschedule(ctx context.Context, now time.Time) (Summary, error) {
	if !r.running.TryLock() {
		return Summary{}, ErrRescheduleInProgress
	}
	defer r.running.Unlock()

	began := time.Now()
	var sum Summary

	if err := r.notifier.CancelAll(ctx); err != nil {
		return sum, model.External("cancel notifications", err)
	}
	if err := r.store.DeleteAllNotifications(ctx); err != nil {
		return sum, model.External("delete notifications", err)
	}

	tasks, err := r.store.ActiveTasks(ctx)
	if err != nil {
		return sum, model.External("load tasks", err)
	}
	reminders, err := r.store.ActiveReminders(ctx)
	if err != nil {
		return sum, model.External("load reminders", err)
	}
	recs, err := r.store.Recurrences(ctx)
	if err != nil {
		return sum, model.External("load recurrences", err)
	}

	planned := Rebuild(Input{
		Now:         now,
		Horizon:     r.horizon,
		Tasks:       tasks,
		Reminders:   reminders,
		Recurrences: recs,
		OpenEnded:   r.policy,
	})
	sum.Computed = len(planned)

	titles := make(map[string]string, len(tasks))
	for _, t := range tasks {
		titles[t.ID] = t.Title
	}

	registered := make([]model.ScheduledNotification, 0, len(planned))
	for _, n := range planned {
		extID, err := r.notifier.Schedule(ctx, n.TriggerAt, payloadFor(n, titles[n.TaskID]))
		if err != nil {
			sum.Failed++
			appLog.Warn("notification not registered", err,
				"task", n.TaskID, "reminder", n.ReminderID, "trigger", n.TriggerAt)
			continue
		}
		n.ExternalID = extID
		registered = append(registered, n)
	}

	if err := r.store.InsertNotifications(ctx, registered); err != nil {
		return sum, model.External("persist notifications", err)
	}
	sum.Scheduled = len(registered)
	sum.Took = time.Since(began)

	appLog.Info("reschedule finished",
		"computed", sum.Computed, "scheduled", sum.Scheduled, "failed", sum.Failed, "took", sum.Took)
	return sum, nil
}

// MarkFired records that the notification with id went out.
func (r *Rescheduler) MarkFired(ctx context.Context, id string) error {
	if err := r.store.SetNotificationStatus(ctx, id, model.NotificationFired); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return model.External("mark notification fired", err)
	}
	return nil
}

func payloadFor(n model.ScheduledNotification, title string) notify.Payload {
	if title == "" {
		title = "Reminder"
	}
	body := fmt.Sprintf("starts %s %s", calendar.FormatDate(n.OccurrenceStart), calendar.ClockOf(n.OccurrenceStart))
	if n.LeadMinutes > 0 {
		body += fmt.Sprintf(" (in %d min)", n.LeadMinutes)
	}
	return notify.Payload{Key: n.ID, Title: title, Body: body}
}
