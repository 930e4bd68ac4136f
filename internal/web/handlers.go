package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"studycal/internal/calendar"
	"studycal/internal/ics"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/recurrence"
	"studycal/internal/schedule"
)

const (
	maxJSONBody = 1 << 20
	maxICSBody  = 10 << 20
)

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/schedules", s.handleCreateSchedule)
	s.mux.HandleFunc("GET /api/schedules", s.handleListSchedules)
	s.mux.HandleFunc("PUT /api/courses/{id}/series", s.handleReplaceSeries)
	s.mux.HandleFunc("DELETE /api/courses/{id}", s.handleDeleteCourse)

	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("POST /api/import/ics", s.handleImportICS)
	s.mux.HandleFunc("GET /calendar.ics", s.handleExportICS)

	s.mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	s.mux.HandleFunc("POST /api/reminders", s.handleCreateReminder)
	s.mux.HandleFunc("POST /api/reschedule", s.handleReschedule)
	s.mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, model.Invalid("body", "%v", err)
	}
	return body, nil
}

// POST /api/schedules
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxJSONBody)
	if err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	p, err := schedule.ParseCreateParams(body)
	if err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	res, err := s.sched.Create(r.Context(), p)
	if err != nil {
		writeFailure(w, r, err, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// PUT /api/courses/{id}/series
func (s *Server) handleReplaceSeries(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxJSONBody)
	if err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	p, err := schedule.ParseCreateParams(body)
	if err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	res, err := s.sched.Replace(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeFailure(w, r, err, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/schedules?from=2025-01-06&to=2025-01-12
//   - from: first day (default: Monday of the current week)
//   - to:   last day, inclusive (default: from + 6 days)
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.dayRange(r)
	if err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	entries, err := s.store.EntriesOverlapping(r.Context(), s.userID(r), from, to)
	if err != nil {
		writeFailure(w, r, model.External("list entries", err), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":    calendar.FormatDate(from),
		"to":      calendar.FormatDate(to.AddDate(0, 0, -1)),
		"entries": entries,
	})
}

// DELETE /api/courses/{id}
func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteCourse(r.Context(), id); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			err = model.External("delete course", err)
		}
		writeFailure(w, r, err, nil)
		return
	}
	appLog.Info("course deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/import[?dry_run=1]
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, maxJSONBody)
	if err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	rows, err := schedule.ParseImportRows(body)
	if err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	s.runImport(w, r, rows, nil)
}

// POST /api/import/ics?from=&to=[&dry_run=1][&url=...]
//
// The calendar is the request body, or is downloaded from url when given.
func (s *Server) handleImportICS(w http.ResponseWriter, r *http.Request) {
	var body []byte
	var err error
	if u := r.URL.Query().Get("url"); u != "" {
		if s.fetcher == nil {
			writeError(w, http.StatusNotImplemented, "feed download is disabled")
			return
		}
		body, err = s.fetcher.Fetch(r.Context(), u)
		if err != nil {
			writeFailure(w, r, model.External("fetch calendar", err), nil)
			return
		}
	} else {
		body, err = readBody(w, r, maxICSBody)
		if err != nil {
			writeFailure(w, r, err, nil)
			return
		}
	}

	events, err := ics.ParseICS(body)
	if err != nil {
		writeFailure(w, r, model.Invalid("body", "%v", err), nil)
		return
	}
	from, to, err := s.dayRange(r)
	if err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	rows, skipped, err := ics.ToImportRows(events, ics.ImportOptions{
		UserID:     s.userID(r),
		Location:   s.loc,
		RangeStart: from,
		RangeEnd:   to,
	})
	if err != nil {
		writeFailure(w, r, model.Invalid("range", "%v", err), nil)
		return
	}
	s.runImport(w, r, rows, skipped)
}

func (s *Server) runImport(w http.ResponseWriter, r *http.Request, rows []schedule.ImportRow, skipped []ics.Skipped) {
	var (
		report schedule.ImportReport
		err    error
	)
	if isTrue(r.URL.Query().Get("dry_run")) {
		report, err = s.sched.ValidateImport(r.Context(), s.userID(r), rows)
	} else {
		report, err = s.sched.Import(r.Context(), s.userID(r), rows)
	}
	if err != nil {
		writeFailure(w, r, err, report)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report, "skipped": skipped})
}

// GET /calendar.ics?from=&to=
func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.dayRange(r)
	if err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	if r.URL.Query().Get("from") == "" && r.URL.Query().Get("to") == "" {
		// Feed subscribers get a whole term by default.
		from = from.AddDate(0, 0, -28)
		to = from.AddDate(0, 0, 26*7)
	}

	userID := s.userID(r)
	entries, err := s.store.EntriesOverlapping(r.Context(), userID, from, to)
	if err != nil {
		writeFailure(w, r, model.External("list entries", err), nil)
		return
	}
	list, err := s.store.ListCourses(r.Context(), userID)
	if err != nil {
		writeFailure(w, r, model.External("list courses", err), nil)
		return
	}
	courses := make(map[string]model.Course, len(list))
	for _, c := range list {
		courses[c.ID] = c
	}

	var buf bytes.Buffer
	if err := ics.Export(&buf, entries, courses); err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="calendar.ics"`)
	_, _ = w.Write(buf.Bytes())
}

type taskRequest struct {
	UserID     string                `json:"user_id,omitempty"`
	Title      string                `json:"title"`
	StartAt    *time.Time            `json:"start_at,omitempty"`
	EndAt      *time.Time            `json:"end_at,omitempty"`
	Recurrence *model.RecurrenceRule `json:"recurrence,omitempty"`
	// Reminders are lead times in minutes created with the task.
	Reminders []int `json:"reminders,omitempty"`
}

// POST /api/tasks
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeFailure(w, r, model.Invalid("title", "required"), nil)
		return
	}
	if req.EndAt != nil && (req.StartAt == nil || !req.EndAt.After(*req.StartAt)) {
		writeFailure(w, r, model.Invalid("end_at", "must be after start_at"), nil)
		return
	}
	for _, lead := range req.Reminders {
		if lead < 0 {
			writeFailure(w, r, model.Invalid("reminders", "lead time %d is negative", lead), nil)
			return
		}
	}

	ctx := r.Context()
	task := model.Task{UserID: req.UserID, Title: req.Title, StartAt: req.StartAt, EndAt: req.EndAt, Active: true}
	if task.UserID == "" {
		task.UserID = s.userID(r)
	}

	if req.Recurrence != nil {
		if req.StartAt == nil {
			writeFailure(w, r, model.Invalid("recurrence", "needs start_at"), nil)
			return
		}
		end := *req.StartAt
		if req.EndAt != nil {
			end = *req.EndAt
		}
		if !end.After(*req.StartAt) {
			end = req.StartAt.Add(time.Minute)
		}
		if err := recurrence.Validate(*req.Recurrence, *req.StartAt, end); err != nil {
			writeFailure(w, r, err, nil)
			return
		}
		rec, err := s.store.CreateRecurrence(ctx, model.Recurrence{Rule: *req.Recurrence})
		if err != nil {
			writeFailure(w, r, model.External("create recurrence", err), nil)
			return
		}
		task.RecurrenceID = rec.ID
	}

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		writeFailure(w, r, model.External("create task", err), nil)
		return
	}
	reminders := make([]model.Reminder, 0, len(req.Reminders))
	for _, lead := range req.Reminders {
		rem, err := s.store.CreateReminder(ctx, model.Reminder{TaskID: created.ID, LeadMinutes: lead, Active: true})
		if err != nil {
			writeFailure(w, r, model.External("create reminder", err), created)
			return
		}
		reminders = append(reminders, rem)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"task":       created,
		"reminders":  reminders,
		"reschedule": s.rescheduleAfterChange(r),
	})
}

type reminderRequest struct {
	TaskID      string `json:"task_id"`
	LeadMinutes int    `json:"lead_minutes"`
}

// POST /api/reminders
func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err, nil)
		return
	}
	if req.LeadMinutes < 0 {
		writeFailure(w, r, model.Invalid("lead_minutes", "must not be negative"), nil)
		return
	}
	if _, err := s.store.GetTask(r.Context(), req.TaskID); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			err = model.External("get task", err)
		}
		writeFailure(w, r, err, nil)
		return
	}
	rem, err := s.store.CreateReminder(r.Context(), model.Reminder{TaskID: req.TaskID, LeadMinutes: req.LeadMinutes, Active: true})
	if err != nil {
		writeFailure(w, r, model.External("create reminder", err), nil)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"reminder":   rem,
		"reschedule": s.rescheduleAfterChange(r),
	})
}

// rescheduleAfterChange runs a reschedule pass after a task or reminder
// changed. Its failure does not fail the mutation; the periodic pass will
// pick the change up.
func (s *Server) rescheduleAfterChange(r *http.Request) any {
	sum, err := s.resched.Reschedule(context.WithoutCancel(r.Context()), s.now())
	if err != nil {
		appLog.Warn("reschedule after change failed", err)
		return map[string]string{"error": err.Error()}
	}
	return sum
}

// POST /api/reschedule
func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	// A pass runs to completion once started; a client hanging up must not
	// leave the notifier and the table half rebuilt.
	sum, err := s.resched.Reschedule(context.WithoutCancel(r.Context()), s.now())
	if err != nil {
		writeFailure(w, r, err, sum)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/notifications
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListNotifications(r.Context())
	if err != nil {
		writeFailure(w, r, model.External("list notifications", err), nil)
		return
	}
	status := model.NotificationStatus(r.URL.Query().Get("status"))
	if status != "" {
		kept := list[:0]
		for _, n := range list {
			if n.Status == status {
				kept = append(kept, n)
			}
		}
		list = kept
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].TriggerAt.Before(list[j].TriggerAt) })
	writeJSON(w, http.StatusOK, list)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.Invalid("body", "%v", err)
	}
	return nil
}

// dayRange reads ?from= and ?to= (yyyy-MM-dd, to inclusive) into a
// half-open instant range.
func (s *Server) dayRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from := calendar.StartOfWeek(s.now().In(s.loc))
	if v := q.Get("from"); v != "" {
		d, err := calendar.ParseDate(v, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, model.Invalid("from", "%v", err)
		}
		from = d
	}
	to := from.AddDate(0, 0, 7)
	if v := q.Get("to"); v != "" {
		d, err := calendar.ParseDate(v, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, model.Invalid("to", "%v", err)
		}
		to = d.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, model.Invalid("to", "is before from")
	}
	return from, to, nil
}

func (s *Server) userID(r *http.Request) string {
	if u := strings.TrimSpace(r.URL.Query().Get("user")); u != "" {
		return u
	}
	return s.cfg.UserID
}

func isTrue(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}
