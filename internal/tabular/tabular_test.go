package tabular

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsFromGrid(t *testing.T) {
	grid := [][]any{
		{"store locator", "", "Region", "Experience Center"},
		{"https://a", "ignored", "North", 1.0},
		{"https://b", nil, "South"},
		{"", "", "", ""},
		{},
	}

	rs, err := recordsFromGrid(grid)
	require.NoError(t, err)
	assert.Equal(t, []string{"store locator", "Region", "Experience Center"}, rs.Header)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "https://a", rs.Rows[0]["store locator"])
	assert.Equal(t, 1.0, rs.Rows[0]["Experience Center"])
	assert.Equal(t, "", rs.Rows[1]["Experience Center"])
	assert.NotContains(t, rs.Rows[0], "")
}

func TestRecordsFromGrid_KeepsInnerEmptyRows(t *testing.T) {
	rs, err := recordsFromGrid([][]any{{"A"}, {""}, {"x"}})
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 2)
}

func TestRecordsFromGrid_Empty(t *testing.T) {
	rs, err := recordsFromGrid(nil)
	require.NoError(t, err)
	assert.Empty(t, rs.Header)
	assert.Empty(t, rs.Rows)
}

func TestRecordsFromGrid_DuplicateHeader(t *testing.T) {
	_, err := recordsFromGrid([][]any{{"A", "A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate header")
}

func TestTable_GridAndSize(t *testing.T) {
	tbl := Table{
		Columns: []string{"Segment", "Total Reviews"},
		Rows:    [][]any{{"North", 10}, {"South", 5, "extra"}},
	}

	grid := tbl.Grid()
	require.Len(t, grid, 3)
	assert.Equal(t, []any{"Segment", "Total Reviews"}, grid[0])
	assert.Equal(t, []any{"North", 10}, grid[1])

	rows, cols := tbl.Size()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.AddWorkbook("out")

	wb, err := m.Open(ctx, "out")
	require.NoError(t, err)

	ws, created, err := GetOrCreate(ctx, wb, "KPI_Data_2025-01-31", 100, 20)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "KPI_Data_2025-01-31", ws.Title())

	rows, cols, ok := m.Size("out", "KPI_Data_2025-01-31")
	require.True(t, ok)
	assert.Equal(t, 100, rows)
	assert.Equal(t, 20, cols)

	_, created, err = GetOrCreate(ctx, wb, "KPI_Data_2025-01-31", 100, 20)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{"KPI_Data_2025-01-31"}, m.Worksheets("out"))
}

func TestMemoryStore_OpenMissing(t *testing.T) {
	_, err := NewMemoryStore().Open(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrWorkbookNotFound))
}

func TestMemoryStore_WorksheetMissing(t *testing.T) {
	m := NewMemoryStore()
	m.AddWorkbook("in")
	wb, err := m.Open(context.Background(), "in")
	require.NoError(t, err)

	_, err = wb.Worksheet(context.Background(), "store_data")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrWorksheetNotFound))
}

func TestMemoryStore_WriteWithoutClearOverlays(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.Put("wb", "s", [][]any{{"A"}, {"1"}, {"2"}})

	wb, err := m.Open(ctx, "wb")
	require.NoError(t, err)
	ws, err := wb.Worksheet(ctx, "s")
	require.NoError(t, err)

	require.NoError(t, ws.Write(ctx, Table{Columns: []string{"A"}, Rows: [][]any{{"x"}}}))
	grid, _ := m.Grid("wb", "s")
	assert.Len(t, grid, 3)

	require.NoError(t, ws.Clear(ctx))
	require.NoError(t, ws.Write(ctx, Table{Columns: []string{"A"}, Rows: [][]any{{"x"}}}))
	grid, _ = m.Grid("wb", "s")
	assert.Equal(t, [][]any{{"A"}, {"x"}}, grid)
}
