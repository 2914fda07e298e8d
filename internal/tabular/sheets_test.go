package tabular

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakefit-analytics/gmb-pipeline/pkg/sheets"
)

type fakeSheets struct {
	ids     map[string]string
	sheets  []sheets.Sheet
	values  map[string][][]any
	cleared []string
	updated map[string][][]any
	resized []sheets.GridProperties
	added   []string
	findErr error
}

func (f *fakeSheets) FindSpreadsheet(_ context.Context, title string) (string, error) {
	if f.findErr != nil {
		return "", f.findErr
	}
	id, ok := f.ids[title]
	if !ok {
		return "", eris.Wrapf(sheets.ErrSpreadsheetNotFound, "%q", title)
	}
	return id, nil
}

func (f *fakeSheets) GetSpreadsheet(_ context.Context, id string) (*sheets.Spreadsheet, error) {
	return &sheets.Spreadsheet{SpreadsheetID: id, Sheets: f.sheets}, nil
}

func (f *fakeSheets) GetValues(_ context.Context, _, rng string) (*sheets.ValueRange, error) {
	return &sheets.ValueRange{Range: rng, Values: f.values[rng]}, nil
}

func (f *fakeSheets) UpdateValues(_ context.Context, _, rng string, values [][]any) error {
	if f.updated == nil {
		f.updated = make(map[string][][]any)
	}
	f.updated[rng] = values
	return nil
}

func (f *fakeSheets) ClearValues(_ context.Context, _, rng string) error {
	f.cleared = append(f.cleared, rng)
	return nil
}

func (f *fakeSheets) AddSheet(_ context.Context, _, title string, rows, cols int) (*sheets.SheetProperties, error) {
	f.added = append(f.added, title)
	return &sheets.SheetProperties{
		SheetID:        int64(len(f.added) + 100),
		Title:          title,
		GridProperties: sheets.GridProperties{RowCount: rows, ColumnCount: cols},
	}, nil
}

func (f *fakeSheets) ResizeSheet(_ context.Context, _ string, _ int64, rows, cols int) error {
	f.resized = append(f.resized, sheets.GridProperties{RowCount: rows, ColumnCount: cols})
	return nil
}

func TestSheetsStore_Records(t *testing.T) {
	fake := &fakeSheets{
		ids: map[string]string{"Wakefit_GMB_Pipeline_Input": "in-1"},
		sheets: []sheets.Sheet{{Properties: sheets.SheetProperties{
			SheetID: 1, Title: "store_data",
			GridProperties: sheets.GridProperties{RowCount: 1000, ColumnCount: 26},
		}}},
		values: map[string][][]any{
			"'store_data'": {{"store locator", "Experience Center", "Region"}, {"ChIJa", 1.0, "East"}},
		},
	}
	ctx := context.Background()

	wb, err := NewSheetsStore(fake).Open(ctx, "Wakefit_GMB_Pipeline_Input")
	require.NoError(t, err)
	ws, err := wb.Worksheet(ctx, "store_data")
	require.NoError(t, err)

	rs, err := ws.Records(ctx)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "East", rs.Rows[0]["Region"])
}

func TestSheetsStore_OpenMissing(t *testing.T) {
	_, err := NewSheetsStore(&fakeSheets{}).Open(context.Background(), "Wakefit_GMB_Pipeline_Input")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrWorkbookNotFound))
}

func TestSheetsStore_OpenAPIErrorIsNotMissing(t *testing.T) {
	fake := &fakeSheets{findErr: eris.New("sheets: search for \"in\": googleapi: Error 403: denied")}
	_, err := NewSheetsStore(fake).Open(context.Background(), "in")
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrWorkbookNotFound))
	assert.Contains(t, err.Error(), "403")
}

func TestNewSheetsStoreFromJSON_BadCredentials(t *testing.T) {
	_, err := NewSheetsStoreFromJSON(context.Background(), []byte("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account")
}

func TestSheetsStore_CreateClearWrite(t *testing.T) {
	fake := &fakeSheets{ids: map[string]string{"out": "out-1"}}
	ctx := context.Background()

	wb, err := NewSheetsStore(fake).Open(ctx, "out")
	require.NoError(t, err)

	ws, created, err := GetOrCreate(ctx, wb, "KPI_Data_2025-01-31", 100, 20)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{"KPI_Data_2025-01-31"}, fake.added)

	require.NoError(t, ws.Clear(ctx))
	require.NoError(t, ws.Write(ctx, Table{Columns: []string{"Segment"}, Rows: [][]any{{"North"}}}))

	assert.Equal(t, []string{"'KPI_Data_2025-01-31'"}, fake.cleared)
	assert.Equal(t, [][]any{{"Segment"}, {"North"}}, fake.updated["'KPI_Data_2025-01-31'!A1"])
	assert.Empty(t, fake.resized)

	// Second lookup reuses the sheet added above.
	_, created, err = GetOrCreate(ctx, wb, "KPI_Data_2025-01-31", 100, 20)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSheetsStore_WriteGrowsGrid(t *testing.T) {
	fake := &fakeSheets{
		ids: map[string]string{"out": "out-1"},
		sheets: []sheets.Sheet{{Properties: sheets.SheetProperties{
			SheetID: 5, Title: "small",
			GridProperties: sheets.GridProperties{RowCount: 2, ColumnCount: 30},
		}}},
	}
	ctx := context.Background()

	wb, err := NewSheetsStore(fake).Open(ctx, "out")
	require.NoError(t, err)
	ws, err := wb.Worksheet(ctx, "small")
	require.NoError(t, err)

	tbl := Table{Columns: []string{"A"}, Rows: [][]any{{1}, {2}, {3}}}
	require.NoError(t, ws.Write(ctx, tbl))
	require.Len(t, fake.resized, 1)
	assert.Equal(t, sheets.GridProperties{RowCount: 4, ColumnCount: 30}, fake.resized[0])

	// Already large enough now.
	require.NoError(t, ws.Write(ctx, tbl))
	assert.Len(t, fake.resized, 1)
}
