package tabular

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu        sync.Mutex
	workbooks map[string]*memWorkbook
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{workbooks: make(map[string]*memWorkbook)}
}

// AddWorkbook creates an empty workbook if it does not exist.
func (m *MemoryStore) AddWorkbook(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workbook(name)
}

// Put replaces a worksheet's cells, creating the workbook and sheet as needed.
func (m *MemoryStore) Put(workbook, sheet string, grid [][]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wb := m.workbook(workbook)
	ws := wb.sheet(sheet, 0, 0)
	ws.grid = copyGrid(grid)
}

// Grid returns a copy of a worksheet's cells.
func (m *MemoryStore) Grid(workbook, sheet string) ([][]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wb, ok := m.workbooks[workbook]
	if !ok {
		return nil, false
	}
	ws, ok := wb.sheets[sheet]
	if !ok {
		return nil, false
	}
	return copyGrid(ws.grid), true
}

// Size returns the allocated grid size of a worksheet.
func (m *MemoryStore) Size(workbook, sheet string) (rows, cols int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wb, found := m.workbooks[workbook]
	if !found {
		return 0, 0, false
	}
	ws, found := wb.sheets[sheet]
	if !found {
		return 0, 0, false
	}
	return ws.rows, ws.cols, true
}

// Worksheets lists a workbook's sheet titles in creation order.
func (m *MemoryStore) Worksheets(workbook string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	wb, ok := m.workbooks[workbook]
	if !ok {
		return nil
	}
	return append([]string(nil), wb.order...)
}

// Open returns the named workbook.
func (m *MemoryStore) Open(_ context.Context, workbook string) (Workbook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wb, ok := m.workbooks[workbook]
	if !ok {
		return nil, eris.Wrapf(ErrWorkbookNotFound, "%q", workbook)
	}
	return &memWorkbookHandle{store: m, wb: wb}, nil
}

// workbook must be called with mu held.
func (m *MemoryStore) workbook(name string) *memWorkbook {
	wb, ok := m.workbooks[name]
	if !ok {
		wb = &memWorkbook{title: name, sheets: make(map[string]*memSheet)}
		m.workbooks[name] = wb
	}
	return wb
}

type memWorkbook struct {
	title  string
	sheets map[string]*memSheet
	order  []string
}

func (w *memWorkbook) sheet(name string, rows, cols int) *memSheet {
	ws, ok := w.sheets[name]
	if !ok {
		ws = &memSheet{title: name, rows: rows, cols: cols}
		w.sheets[name] = ws
		w.order = append(w.order, name)
	}
	return ws
}

type memSheet struct {
	title      string
	rows, cols int
	grid       [][]any
}

type memWorkbookHandle struct {
	store *MemoryStore
	wb    *memWorkbook
}

func (h *memWorkbookHandle) Title() string { return h.wb.title }

func (h *memWorkbookHandle) Worksheet(_ context.Context, name string) (Worksheet, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	ws, ok := h.wb.sheets[name]
	if !ok {
		return nil, eris.Wrapf(ErrWorksheetNotFound, "%q in %q", name, h.wb.title)
	}
	return &memWorksheetHandle{store: h.store, ws: ws}, nil
}

func (h *memWorkbookHandle) AddWorksheet(_ context.Context, name string, rows, cols int) (Worksheet, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	if _, exists := h.wb.sheets[name]; exists {
		return nil, eris.Errorf("tabular: worksheet %q already exists in %q", name, h.wb.title)
	}
	return &memWorksheetHandle{store: h.store, ws: h.wb.sheet(name, rows, cols)}, nil
}

type memWorksheetHandle struct {
	store *MemoryStore
	ws    *memSheet
}

func (h *memWorksheetHandle) Title() string { return h.ws.title }

func (h *memWorksheetHandle) Records(_ context.Context) (*RecordSet, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return recordsFromGrid(h.ws.grid)
}

func (h *memWorksheetHandle) Clear(_ context.Context) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.ws.grid = nil
	return nil
}

func (h *memWorksheetHandle) Write(_ context.Context, t Table) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	rows, cols := t.Size()
	h.ws.rows = max(h.ws.rows, rows)
	h.ws.cols = max(h.ws.cols, cols)

	grid := t.Grid()
	for r, values := range grid {
		for len(h.ws.grid) <= r {
			h.ws.grid = append(h.ws.grid, nil)
		}
		row := h.ws.grid[r]
		for len(row) < len(values) {
			row = append(row, nil)
		}
		copy(row, values)
		h.ws.grid[r] = row
	}
	return nil
}

func copyGrid(grid [][]any) [][]any {
	if grid == nil {
		return nil
	}
	out := make([][]any, len(grid))
	for i, row := range grid {
		out[i] = append([]any(nil), row...)
	}
	return out
}
