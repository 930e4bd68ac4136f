package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"studycal/internal/config"
	appLog "studycal/internal/log"
	"studycal/internal/model"
	"studycal/internal/reminder"
	"studycal/internal/schedule"
)

// Store is the read/write surface the API uses directly.
type Store interface {
	EntriesOverlapping(ctx context.Context, userID string, start, end time.Time) ([]model.ScheduleEntry, error)
	ListCourses(ctx context.Context, userID string) ([]model.Course, error)
	DeleteCourse(ctx context.Context, id string) error
	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	GetTask(ctx context.Context, id string) (model.Task, error)
	CreateReminder(ctx context.Context, r model.Reminder) (model.Reminder, error)
	CreateRecurrence(ctx context.Context, rec model.Recurrence) (model.Recurrence, error)
	ListNotifications(ctx context.Context) ([]model.ScheduledNotification, error)
}

// Scheduler creates and imports schedule entries.
type Scheduler interface {
	Create(ctx context.Context, p schedule.CreateParams) (schedule.Result, error)
	Replace(ctx context.Context, courseID string, p schedule.CreateParams) (schedule.Result, error)
	ValidateImport(ctx context.Context, userID string, rows []schedule.ImportRow) (schedule.ImportReport, error)
	Import(ctx context.Context, userID string, rows []schedule.ImportRow) (schedule.ImportReport, error)
}

// Rescheduler rebuilds registered notifications.
type Rescheduler interface {
	Reschedule(ctx context.Context, now time.Time) (reminder.Summary, error)
}

// Fetcher downloads an iCalendar feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Server exposes the schedule, import, export and reminder APIs.
type Server struct {
	cfg     *config.Config
	loc     *time.Location
	store   Store
	sched   Scheduler
	resched Rescheduler
	fetcher Fetcher
	now     func() time.Time
	mux     *http.ServeMux
}

type Deps struct {
	Store       Store
	Scheduler   Scheduler
	Rescheduler Rescheduler
	Fetcher     Fetcher
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewServer(cfg *config.Config, loc *time.Location, d Deps) *Server {
	if loc == nil {
		loc = time.Local
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Server{
		cfg:     cfg,
		loc:     loc,
		store:   d.Store,
		sched:   d.Scheduler,
		resched: d.Rescheduler,
		fetcher: d.Fetcher,
		now:     d.Now,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped with basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than lock everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="studycal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errResp struct {
	Error  string `json:"error"`
	Result any    `json:"result,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}

// writeFailure maps domain errors onto HTTP statuses. result, if non-nil,
// is included so callers see what was written before the failure.
func writeFailure(w http.ResponseWriter, r *http.Request, err error, result any) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, status, errResp{Error: err.Error(), Result: result})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict), errors.Is(err, reminder.ErrRescheduleInProgress):
		return http.StatusConflict
	case errors.Is(err, model.ErrExternal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
