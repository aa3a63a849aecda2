// internal/app/system/csvutil/projects.go
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// ErrTooManyRows is returned when a file has more than MaxRows data rows.
var ErrTooManyRows = fmt.Errorf("csv has more than %d rows", MaxRows)

// ProjectCSVRow is a normalized row produced by PreScanProjectsCSV.
type ProjectCSVRow struct {
	Line        int
	Title       string
	Description string
	Category    string
	MaxTeams    int // 0 when the column is absent or blank
}

// RowError describes one rejected row.
type RowError struct {
	Line   int    `json:"line"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	if e.Title == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("line %d (%q): %s", e.Line, e.Title, e.Reason)
}

// PreScanProjectsCSV reads title, description, category[, max_teams]
// rows. A header row is skipped when its first cell reads "title". It
// returns valid rows and per-row problems; err is set only when the file
// itself cannot be read. Nothing is written anywhere.
func PreScanProjectsCSV(r io.Reader) (rows []ProjectCSVRow, rowErrs []RowError, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	seen := make(map[string]int)
	first := true
	for {
		rec, rerr := reader.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			var pe *csv.ParseError
			if errors.As(rerr, &pe) {
				rowErrs = append(rowErrs, RowError{Line: pe.Line, Reason: pe.Err.Error()})
				continue
			}
			return nil, nil, rerr
		}
		line, _ := reader.FieldPos(0)
		if first && len(rec) > 0 {
			first = false
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			if strings.EqualFold(strings.TrimSpace(rec[0]), "title") {
				continue
			}
		}

		row := ProjectCSVRow{Line: line}
		cell := func(i int) string {
			if i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		row.Title, row.Description, row.Category = cell(0), cell(1), cell(2)
		if row.Title == "" && row.Description == "" && row.Category == "" && cell(3) == "" {
			continue
		}
		if len(rows)+len(rowErrs) >= MaxRows {
			return nil, nil, ErrTooManyRows
		}

		reason := ""
		switch {
		case row.Title == "":
			reason = "missing title"
		case len(row.Title) > MaxTitleLen:
			reason = fmt.Sprintf("title longer than %d characters", MaxTitleLen)
		case len(row.Description) > MaxDescriptionLen:
			reason = fmt.Sprintf("description longer than %d characters", MaxDescriptionLen)
		case row.Category == "":
			reason = "missing category"
		}
		if reason == "" && cell(3) != "" {
			n, perr := strconv.Atoi(cell(3))
			if perr != nil || n < 1 {
				reason = "max_teams must be a whole number of at least 1"
			} else {
				row.MaxTeams = n
			}
		}
		if reason == "" {
			key := text.Fold(row.Title)
			if first, dup := seen[key]; dup {
				reason = fmt.Sprintf("duplicate of line %d", first)
			} else {
				seen[key] = line
			}
		}

		if reason != "" {
			rowErrs = append(rowErrs, RowError{Line: line, Title: row.Title, Reason: reason})
			continue
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}
