package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("schedule conflict")
	ErrExternal   = errors.New("external failure")
	ErrNotFound   = errors.New("not found")
)

// ValidationError reports malformed input. Nothing is persisted when one is
// returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError names the existing interval a candidate slot overlaps.
type ConflictError struct {
	Candidate Interval
	Existing  Interval
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s overlaps %q at %s - %s",
		e.Candidate.Start.Format("2006-01-02 15:04"),
		e.Existing.Label,
		e.Existing.Start.Format("2006-01-02 15:04"),
		e.Existing.End.Format("15:04"),
	)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ExternalError wraps a store or notification-service failure.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

func (e *ExternalError) Is(target error) bool {
	return target == ErrExternal
}

// External wraps err as an *ExternalError, passing nil through.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Op: op, Err: err}
}
