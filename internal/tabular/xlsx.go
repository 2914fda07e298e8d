package tabular

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXStore is a Store over a directory of <workbook>.xlsx files. Every
// mutation is saved to disk immediately.
type XLSXStore struct {
	Dir string
	// CreateMissing creates absent workbooks instead of failing.
	CreateMissing bool
}

// NewXLSXStore returns a store rooted at dir.
func NewXLSXStore(dir string, createMissing bool) *XLSXStore {
	return &XLSXStore{Dir: dir, CreateMissing: createMissing}
}

func (s *XLSXStore) path(workbook string) string {
	return filepath.Join(s.Dir, workbook+".xlsx")
}

// Open loads the workbook file.
func (s *XLSXStore) Open(_ context.Context, workbook string) (Workbook, error) {
	path := s.path(workbook)
	f, err := xlsx.OpenFile(path)
	switch {
	case err == nil:
	case os.IsNotExist(err) && s.CreateMissing:
		f = xlsx.NewFile()
	case os.IsNotExist(err):
		return nil, eris.Wrapf(ErrWorkbookNotFound, "%q at %s", workbook, path)
	default:
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}
	return &xlsxWorkbook{file: f, path: path, title: workbook}, nil
}

type xlsxWorkbook struct {
	mu    sync.Mutex
	file  *xlsx.File
	path  string
	title string
}

func (w *xlsxWorkbook) Title() string { return w.title }

func (w *xlsxWorkbook) Worksheet(_ context.Context, name string) (Worksheet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sheet, ok := w.file.Sheet[name]
	if !ok {
		return nil, eris.Wrapf(ErrWorksheetNotFound, "%q in %q", name, w.title)
	}
	return &xlsxWorksheet{wb: w, sheet: sheet}, nil
}

// AddWorksheet adds an empty sheet. xlsx files have no fixed grid, so the
// requested size is not preallocated.
func (w *xlsxWorkbook) AddWorksheet(_ context.Context, name string, _, _ int) (Worksheet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sheet, err := w.file.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: add sheet %q", name)
	}
	if err := w.save(); err != nil {
		return nil, err
	}
	return &xlsxWorksheet{wb: w, sheet: sheet}, nil
}

func (w *xlsxWorkbook) save() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return eris.Wrapf(err, "xlsx: create dir for %s", w.path)
	}
	if err := w.file.Save(w.path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", w.path)
	}
	return nil
}

type xlsxWorksheet struct {
	wb    *xlsxWorkbook
	sheet *xlsx.Sheet
}

func (s *xlsxWorksheet) Title() string { return s.sheet.Name }

func (s *xlsxWorksheet) Records(_ context.Context) (*RecordSet, error) {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	grid := make([][]any, 0, len(s.sheet.Rows))
	for _, row := range s.sheet.Rows {
		grid = append(grid, rowToValues(row))
	}
	return recordsFromGrid(grid)
}

func (s *xlsxWorksheet) Clear(_ context.Context) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	s.sheet.Rows = nil
	s.sheet.MaxRow = 0
	s.sheet.MaxCol = 0
	return s.wb.save()
}

func (s *xlsxWorksheet) Write(_ context.Context, t Table) error {
	s.wb.mu.Lock()
	defer s.wb.mu.Unlock()

	for r, values := range t.Grid() {
		for c, v := range values {
			setCell(s.sheet.Cell(r, c), v)
		}
	}
	return s.wb.save()
}

// rowToValues keeps numbers and booleans typed so they read back the way
// Sheets returns unformatted values.
func rowToValues(row *xlsx.Row) []any {
	cells := make([]any, len(row.Cells))
	for j, cell := range row.Cells {
		switch cell.Type() {
		case xlsx.CellTypeNumeric:
			if f, err := cell.Float(); err == nil {
				cells[j] = f
				continue
			}
			cells[j] = cell.String()
		case xlsx.CellTypeBool:
			cells[j] = cell.Bool()
		default:
			cells[j] = cell.String()
		}
	}
	return cells
}

func setCell(cell *xlsx.Cell, v any) {
	switch t := v.(type) {
	case nil:
		cell.SetString("")
	case string:
		cell.SetString(t)
	case bool:
		cell.SetBool(t)
	case int:
		cell.SetInt(t)
	case int64:
		cell.SetInt64(t)
	case float64:
		cell.SetFloat(t)
	default:
		cell.SetValue(t)
	}
}
