// Package tabular reads and writes worksheets in spreadsheet workbooks.
// Google Sheets is the production backend; local xlsx files and an
// in-memory store serve development and tests.
package tabular

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrWorkbookNotFound is returned (wrapped) when a workbook does not exist.
var ErrWorkbookNotFound = eris.New("tabular: workbook not found")

// ErrWorksheetNotFound is returned (wrapped) when a worksheet does not exist.
var ErrWorksheetNotFound = eris.New("tabular: worksheet not found")

// Store opens workbooks by title.
type Store interface {
	Open(ctx context.Context, workbook string) (Workbook, error)
}

// Workbook is a named collection of worksheets.
type Workbook interface {
	Title() string
	Worksheet(ctx context.Context, name string) (Worksheet, error)
	AddWorksheet(ctx context.Context, name string, rows, cols int) (Worksheet, error)
}

// Worksheet is a single grid of cells.
type Worksheet interface {
	Title() string
	Records(ctx context.Context) (*RecordSet, error)
	Clear(ctx context.Context) error
	Write(ctx context.Context, t Table) error
}

// RecordSet is a worksheet read as a header row plus keyed rows.
type RecordSet struct {
	Header []string
	Rows   []map[string]any
}

// HasColumn reports whether the header contains name.
func (rs *RecordSet) HasColumn(name string) bool {
	for _, h := range rs.Header {
		if h == name {
			return true
		}
	}
	return false
}

// Table is a header plus rows, written starting at A1.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Grid returns the table as a cell grid, header first.
func (t Table) Grid() [][]any {
	grid := make([][]any, 0, len(t.Rows)+1)
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	grid = append(grid, header)
	return append(grid, t.Rows...)
}

// Size returns the number of rows (header included) and columns the table spans.
func (t Table) Size() (rows, cols int) {
	cols = len(t.Columns)
	for _, r := range t.Rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return len(t.Rows) + 1, cols
}

// GetOrCreate returns the named worksheet, adding it with the given size
// when it does not exist yet.
func GetOrCreate(ctx context.Context, wb Workbook, name string, rows, cols int) (Worksheet, bool, error) {
	ws, err := wb.Worksheet(ctx, name)
	if err == nil {
		return ws, false, nil
	}
	if !eris.Is(err, ErrWorksheetNotFound) {
		return nil, false, err
	}
	ws, err = wb.AddWorksheet(ctx, name, rows, cols)
	if err != nil {
		return nil, false, eris.Wrapf(err, "tabular: add worksheet %q", name)
	}
	return ws, true, nil
}

// recordsFromGrid turns a raw cell grid into records keyed by the first row.
// Empty header cells are skipped, short rows are padded with "" and trailing
// empty rows are dropped.
func recordsFromGrid(grid [][]any) (*RecordSet, error) {
	rs := &RecordSet{}
	if len(grid) == 0 {
		return rs, nil
	}

	type col struct {
		idx  int
		name string
	}
	var cols []col
	seen := make(map[string]bool)
	for i, cell := range grid[0] {
		name := strings.TrimSpace(cellString(cell))
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, eris.Errorf("tabular: duplicate header %q", name)
		}
		seen[name] = true
		cols = append(cols, col{idx: i, name: name})
		rs.Header = append(rs.Header, name)
	}

	body := grid[1:]
	for len(body) > 0 && rowEmpty(body[len(body)-1]) {
		body = body[:len(body)-1]
	}

	rs.Rows = make([]map[string]any, 0, len(body))
	for _, row := range body {
		rec := make(map[string]any, len(cols))
		for _, c := range cols {
			if c.idx < len(row) && row[c.idx] != nil {
				rec[c.name] = row[c.idx]
			} else {
				rec[c.name] = ""
			}
		}
		rs.Rows = append(rs.Rows, rec)
	}
	return rs, nil
}

func rowEmpty(row []any) bool {
	for _, c := range row {
		if strings.TrimSpace(cellString(c)) != "" {
			return false
		}
	}
	return true
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
