// Package store is the SQLite-backed row store for courses, schedule entries,
// tasks, reminders, recurrences and scheduled notifications.
//
// Instants are stored as Unix milliseconds and returned in the store's
// wall-clock location.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	appLog "studycal/internal/log"
)

// DB wraps a single-connection SQLite handle.
type DB struct {
	sql *sql.DB
	loc *time.Location
	now func() time.Time
}

// Option configures Open.
type Option func(*DB)

// WithLocation sets the location instants are returned in. Default time.Local.
func WithLocation(loc *time.Location) Option {
	return func(db *DB) {
		if loc != nil {
			db.loc = loc
		}
	}
}

// WithClock overrides the clock used for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("store: database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection: the app has a single caller context, and SQLite
	// pragmas are per connection.
	conn.SetMaxOpenConns(1)

	db := &DB{sql: conn, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	appLog.Info("store opened", "path", path)
	return db, nil
}

func (db *DB) Close() error {
	return db.sql.Close()
}

var schema = []string{
	`PRAGMA foreign_keys = ON`,
	`PRAGMA journal_mode = WAL`,
	`CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		instructor TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		created_ms INTEGER NOT NULL,
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS recurrences (
		id TEXT PRIMARY KEY,
		rule TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_entries (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		start_ms INTEGER NOT NULL,
		end_ms INTEGER NOT NULL,
		recurrence_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_ms INTEGER NOT NULL,
		CHECK (start_ms < end_ms),
		UNIQUE (user_id, course_id, start_ms, end_ms)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_user_start ON schedule_entries (user_id, start_ms)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		start_ms INTEGER,
		end_ms INTEGER,
		recurrence_id TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_ms INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		lead_minutes INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS scheduled_notifications (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		reminder_id TEXT NOT NULL,
		recurrence_id TEXT NOT NULL DEFAULT '',
		occurrence_start_ms INTEGER NOT NULL,
		occurrence_end_ms INTEGER NOT NULL,
		trigger_ms INTEGER NOT NULL,
		external_id TEXT NOT NULL,
		lead_minutes INTEGER NOT NULL,
		status TEXT NOT NULL
	)`,
}

func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func (db *DB) fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(db.loc)
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func (db *DB) fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := db.fromMillis(v.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
