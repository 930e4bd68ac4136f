package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"studycal/internal/calendar"
	"studycal/internal/model"
)

// CreateParams is the normalized creation request. Voice, PDF and AI import
// front-ends must produce exactly this shape.
type CreateParams struct {
	UserID     string          `json:"user_id,omitempty"`
	CourseName string          `json:"course_name"`
	Instructor string          `json:"instructor,omitempty"`
	Location   string          `json:"location,omitempty"`
	Type       model.EntryType `json:"type"`
	// StartDate and EndDate (yyyy-MM-dd, inclusive) bound recurring types.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	// Date (yyyy-MM-dd) is the day of a one-off or suspension.
	Date string `json:"date,omitempty"`
	// StartTime and EndTime are HH:mm.
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ParseError reports a payload that could not be decoded into CreateParams.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse schedule params: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes parse failures count as validation failures.
func (e *ParseError) Is(target error) bool {
	return target == model.ErrValidation
}

// ParseCreateParams strictly decodes one JSON object. Unknown fields and
// trailing data are rejected rather than ignored.
func ParseCreateParams(data []byte) (CreateParams, error) {
	var p CreateParams
	if err := strictDecode(data, &p); err != nil {
		return CreateParams{}, &ParseError{Err: err}
	}
	return p, nil
}

// ParseImportRows decodes a JSON array of CreateParams, numbering rows from 1.
func ParseImportRows(data []byte) ([]ImportRow, error) {
	var list []CreateParams
	if err := strictDecode(data, &list); err != nil {
		return nil, &ParseError{Err: err}
	}
	rows := make([]ImportRow, 0, len(list))
	for i, p := range list {
		rows = append(rows, ImportRow{Row: i + 1, Params: p})
	}
	return rows, nil
}

func strictDecode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

// plan is a validated CreateParams resolved to instants.
type plan struct {
	userID     string
	courseName string
	instructor string
	location   string
	typ        model.EntryType

	// first slot of the request
	start time.Time
	end   time.Time
	// last day of a recurring series
	until *time.Time
}

func (s *Service) resolve(p CreateParams) (plan, error) {
	pl := plan{
		userID:     strings.TrimSpace(p.UserID),
		courseName: strings.TrimSpace(p.CourseName),
		instructor: strings.TrimSpace(p.Instructor),
		location:   strings.TrimSpace(p.Location),
		typ:        model.EntryType(strings.ToLower(strings.TrimSpace(string(p.Type)))),
	}
	if pl.userID == "" {
		pl.userID = s.defaultUser
	}
	if pl.courseName == "" {
		return plan{}, model.Invalid("course_name", "required")
	}
	if !pl.typ.Valid() {
		return plan{}, model.Invalid("type", "unknown schedule type %q", p.Type)
	}

	from, err := calendar.ParseClock(p.StartTime)
	if err != nil {
		return plan{}, model.Invalid("start_time", "%v", err)
	}
	to, err := calendar.ParseClock(p.EndTime)
	if err != nil {
		return plan{}, model.Invalid("end_time", "%v", err)
	}
	if to.Minutes() <= from.Minutes() {
		return plan{}, model.Invalid("end_time", "%s is not after %s", to, from)
	}

	var first time.Time
	if pl.typ.Recurring() {
		first, err = calendar.ParseDate(p.StartDate, s.loc)
		if err != nil {
			return plan{}, model.Invalid("start_date", "%v", err)
		}
		last, err := calendar.ParseDate(p.EndDate, s.loc)
		if err != nil {
			return plan{}, model.Invalid("end_date", "%v", err)
		}
		if last.Before(first) {
			return plan{}, model.Invalid("end_date", "%s is before start date %s", p.EndDate, p.StartDate)
		}
		pl.until = &last
	} else {
		first, err = calendar.ParseDate(p.Date, s.loc)
		if err != nil {
			return plan{}, model.Invalid("date", "%v", err)
		}
	}

	pl.start = calendar.At(first, from)
	pl.end = calendar.At(first, to)
	return pl, nil
}
