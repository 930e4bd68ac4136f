package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studycal/internal/model"
)

const courseColumns = `id, user_id, name, instructor, location, created_ms`

func (db *DB) scanCourse(row interface{ Scan(...any) error }) (model.Course, error) {
	var c model.Course
	var created int64
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Instructor, &c.Location, &created); err != nil {
		return model.Course{}, err
	}
	c.CreatedAt = db.fromMillis(created)
	return c, nil
}

// FindCourseByName returns model.ErrNotFound when the user has no course
// with that name.
func (db *DB) FindCourseByName(ctx context.Context, userID, name string) (model.Course, error) {
	row := db.sql.QueryRowContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE user_id = ? AND name = ?`, userID, name)
	c, err := db.scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Course{}, model.ErrNotFound
	}
	if err != nil {
		return model.Course{}, fmt.Errorf("find course: %w", err)
	}
	return c, nil
}

func (db *DB) GetCourse(ctx context.Context, id string) (model.Course, error) {
	row := db.sql.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	c, err := db.scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Course{}, model.ErrNotFound
	}
	if err != nil {
		return model.Course{}, fmt.Errorf("get course: %w", err)
	}
	return c, nil
}

func (db *DB) CreateCourse(ctx context.Context, c model.Course) (model.Course, error) {
	c.ID = newID(c.ID)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = db.now()
	}
	_, err := db.sql.ExecContext(ctx,
		`INSERT INTO courses (`+courseColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Instructor, c.Location, toMillis(c.CreatedAt))
	if err != nil {
		return model.Course{}, fmt.Errorf("create course: %w", err)
	}
	c.CreatedAt = db.fromMillis(toMillis(c.CreatedAt))
	return c, nil
}

func (db *DB) ListCourses(ctx context.Context, userID string) ([]model.Course, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	out := make([]model.Course, 0)
	for rows.Next() {
		c, err := db.scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("list courses: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCourse removes the course and, by cascade, all of its entries.
func (db *DB) DeleteCourse(ctx context.Context, id string) error {
	res, err := db.sql.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}
