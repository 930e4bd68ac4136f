package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"studycal/internal/calendar"
	"studycal/internal/conflict"
	appLog "studycal/internal/log"
	"studycal/internal/model"
)

// ImportRow is one normalized row of a bulk import (spreadsheet, iCalendar).
type ImportRow struct {
	Row    int          `json:"row"`
	Params CreateParams `json:"params"`
}

// Issue explains why a row was not imported.
type Issue struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	// OtherRow is set when the row overlaps another row of the same batch.
	OtherRow int `json:"other_row,omitempty"`
}

// ImportReport summarizes a validated (and possibly committed) batch.
type ImportReport struct {
	Rows     int      `json:"rows"`
	Valid    []int    `json:"valid"`
	Issues   []Issue  `json:"issues"`
	Imported []int    `json:"imported,omitempty"`
	Results  []Result `json:"results,omitempty"`
}

// HasIssues reports whether row has at least one issue.
func (r ImportReport) HasIssues(row int) bool {
	for _, is := range r.Issues {
		if is.Row == row {
			return true
		}
	}
	return false
}

// ValidateImport checks every row without writing anything. Each slot of
// each row is checked against the stored schedule and against every slot
// of every other row in the batch.
func (s *Service) ValidateImport(ctx context.Context, userID string, rows []ImportRow) (ImportReport, error) {
	report := ImportReport{Rows: len(rows), Valid: []int{}, Issues: []Issue{}}
	labels := newLabeler(s.store)
	var batch []conflict.Candidate

	for _, row := range rows {
		p := row.Params
		if p.UserID == "" {
			p.UserID = userID
		}
		pl, err := s.resolve(p)
		if err == nil && pl.typ == model.EntrySuspension {
			err = model.Invalid("type", "suspensions cannot be imported")
		}
		var slots []model.Occurrence
		if err == nil {
			slots, err = s.slots(pl)
		}
		if err != nil {
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				return report, err
			}
			report.Issues = append(report.Issues, Issue{Row: row.Row, Field: ve.Field, Message: ve.Reason})
			continue
		}

		for _, slot := range slots {
			candidate := model.Interval{UserID: pl.userID, Label: pl.courseName, Start: slot.Start, End: slot.End}
			existing, err := s.dayIntervals(ctx, labels, pl.userID, slot.Start)
			if err != nil {
				return report, err
			}
			if ex, ok := conflict.Find(existing, candidate, conflict.Scope{UserID: pl.userID, SameDay: true}); ok {
				report.Issues = append(report.Issues, Issue{
					Row:     row.Row,
					Message: fmt.Sprintf("%s overlaps %s at %s", calendar.FormatRange(slot.Start, slot.End), ex.Label, calendar.FormatRange(ex.Start, ex.End)),
				})
			}
			batch = append(batch, conflict.Candidate{Row: row.Row, Interval: candidate})
		}
	}

	for _, pair := range conflict.CrossCheck(batch, conflict.Scope{SameDay: true}) {
		msg := fmt.Sprintf("%s overlaps row %d (%s) at %s",
			calendar.FormatRange(pair.A.Start, pair.A.End), pair.B.Row, pair.B.Label, calendar.FormatRange(pair.B.Start, pair.B.End))
		report.Issues = append(report.Issues, Issue{Row: pair.A.Row, Message: msg, OtherRow: pair.B.Row})
		msg = fmt.Sprintf("%s overlaps row %d (%s) at %s",
			calendar.FormatRange(pair.B.Start, pair.B.End), pair.A.Row, pair.A.Label, calendar.FormatRange(pair.A.Start, pair.A.End))
		report.Issues = append(report.Issues, Issue{Row: pair.B.Row, Message: msg, OtherRow: pair.A.Row})
	}

	sort.SliceStable(report.Issues, func(i, j int) bool { return report.Issues[i].Row < report.Issues[j].Row })
	for _, row := range rows {
		if !report.HasIssues(row.Row) {
			report.Valid = append(report.Valid, row.Row)
		}
	}
	return report, nil
}

// Import validates the batch and creates every row without issues. Rows
// are created one by one; a row failing at creation time is reported as an
// issue and does not stop the remaining rows.
func (s *Service) Import(ctx context.Context, userID string, rows []ImportRow) (ImportReport, error) {
	report, err := s.ValidateImport(ctx, userID, rows)
	if err != nil {
		return report, err
	}

	valid := make(map[int]bool, len(report.Valid))
	for _, n := range report.Valid {
		valid[n] = true
	}

	for _, row := range rows {
		if !valid[row.Row] {
			continue
		}
		p := row.Params
		if p.UserID == "" {
			p.UserID = userID
		}
		res, err := s.Create(ctx, p)
		if err != nil {
			appLog.Warn("import row failed", err, "row", row.Row)
			report.Issues = append(report.Issues, Issue{Row: row.Row, Message: err.Error()})
			if res.Created() > 0 {
				report.Results = append(report.Results, res)
			}
			continue
		}
		report.Imported = append(report.Imported, row.Row)
		report.Results = append(report.Results, res)
	}

	appLog.Info("import finished", "rows", report.Rows, "imported", len(report.Imported), "issues", len(report.Issues))
	return report, nil
}
