package reminder

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/recurrence"
)

// DefaultHorizon is how far ahead triggers are registered.
const DefaultHorizon = 30 * 24 * time.Hour

// Policy decides how reminders on never-ending recurrences are expanded.
type Policy string

const (
	// FirstOnly schedules only the base occurrence of an open-ended series.
	FirstOnly Policy = "first_only"
	// Expand schedules every occurrence inside the horizon.
	Expand Policy = "expand"
)

// notificationSpace namespaces the name-based notification ids.
var notificationSpace = uuid.MustParse("6f1c1d8e-3b7a-5c43-9e0f-2a9d4b7c1e55")

// NotificationID is the stable id of the trigger for one reminder and one
// occurrence. Rebuilding from the same data yields the same ids.
func NotificationID(reminderID string, occurrenceStart time.Time) string {
	name := reminderID + "@" + strconv.FormatInt(occurrenceStart.UnixMilli(), 10)
	return uuid.NewSHA1(notificationSpace, []byte(name)).String()
}

// Input is everything a rebuild looks at.
type Input struct {
	Now         time.Time
	Horizon     time.Duration
	Tasks       []model.Task
	Reminders   []model.Reminder
	Recurrences []model.Recurrence
	OpenEnded   Policy
}

// Rebuild computes the complete replacement set of scheduled notifications.
// It is pure: the same input always yields the same rows in the same order
// (trigger time, then id). Only triggers strictly inside (Now, Now+Horizon)
// are kept.
func Rebuild(in Input) []model.ScheduledNotification {
	horizon := in.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	windowEnd := in.Now.Add(horizon)

	tasks := make(map[string]model.Task, len(in.Tasks))
	for _, t := range in.Tasks {
		tasks[t.ID] = t
	}
	rules := make(map[string]model.RecurrenceRule, len(in.Recurrences))
	for _, r := range in.Recurrences {
		rules[r.ID] = r.Rule
	}

	seen := make(map[string]bool)
	out := make([]model.ScheduledNotification, 0)
	for _, rem := range in.Reminders {
		if !rem.Active {
			continue
		}
		task, ok := tasks[rem.TaskID]
		if !ok || !task.Active || task.StartAt == nil {
			continue
		}

		lead := rem.Lead()
		for _, occ := range occurrences(task, rules, in.OpenEnded, in.Now.Add(lead), windowEnd.Add(lead)) {
			trigger := occ.Start.Add(-lead)
			if !trigger.After(in.Now) || !trigger.Before(windowEnd) {
				continue
			}
			id := NotificationID(rem.ID, occ.Start)
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, model.ScheduledNotification{
				ID:              id,
				TaskID:          task.ID,
				ReminderID:      rem.ID,
				RecurrenceID:    task.RecurrenceID,
				OccurrenceStart: occ.Start,
				OccurrenceEnd:   occ.End,
				TriggerAt:       trigger,
				LeadMinutes:     rem.LeadMinutes,
				Status:          model.NotificationScheduled,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggerAt.Equal(out[j].TriggerAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].TriggerAt.Before(out[j].TriggerAt)
	})
	return out
}

// occurrences lists the task occurrences starting in [from, horizon) that
// may need a reminder. A single base occurrence is returned as is.
func occurrences(task model.Task, rules map[string]model.RecurrenceRule, policy Policy, from, horizon time.Time) []model.Occurrence {
	start := *task.StartAt
	end := start
	if task.EndAt != nil && task.EndAt.After(start) {
		end = *task.EndAt
	}
	base := []model.Occurrence{{Start: start, End: end}}

	if task.RecurrenceID == "" {
		return base
	}
	rule, ok := rules[task.RecurrenceID]
	if !ok {
		appLog.Debug("reminder: recurrence missing, using base occurrence", "task", task.ID, "recurrence", task.RecurrenceID)
		return base
	}
	if !rule.Bounded() && policy != Expand {
		return base
	}
	return recurrence.Generate(start, end, rule, recurrence.WithFrom(from), recurrence.WithHorizon(horizon))
}
