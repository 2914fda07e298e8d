package tabular

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/wakefit-analytics/gmb-pipeline/pkg/sheets"
)

// SheetsStore is a Store backed by Google Sheets.
type SheetsStore struct {
	client sheets.Client
}

// NewSheetsStore wraps an existing Sheets client.
func NewSheetsStore(client sheets.Client) *SheetsStore {
	return &SheetsStore{client: client}
}

// NewSheetsStoreFromJSON authenticates with a service-account key and
// returns a Store over the Sheets and Drive APIs.
func NewSheetsStoreFromJSON(ctx context.Context, serviceAccountJSON []byte, opts ...option.ClientOption) (*SheetsStore, error) {
	conf, err := google.JWTConfigFromJSON(serviceAccountJSON, sheets.Scopes...)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: parse service account credentials")
	}
	opts = append([]option.ClientOption{option.WithTokenSource(conf.TokenSource(ctx))}, opts...)
	client, err := sheets.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: sheets client")
	}
	return NewSheetsStore(client), nil
}

// Open finds the spreadsheet by title and loads its worksheet list.
func (s *SheetsStore) Open(ctx context.Context, workbook string) (Workbook, error) {
	id, err := s.client.FindSpreadsheet(ctx, workbook)
	if err != nil {
		if eris.Is(err, sheets.ErrSpreadsheetNotFound) {
			return nil, eris.Wrapf(ErrWorkbookNotFound, "%q", workbook)
		}
		return nil, eris.Wrapf(err, "tabular: open workbook %q", workbook)
	}

	ss, err := s.client.GetSpreadsheet(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: load workbook %q", workbook)
	}

	wb := &sheetsWorkbook{
		client: s.client,
		id:     id,
		title:  workbook,
		sheets: make(map[string]*sheetsWorksheet, len(ss.Sheets)),
	}
	for _, sh := range ss.Sheets {
		wb.sheets[sh.Properties.Title] = &sheetsWorksheet{wb: wb, props: sh.Properties}
	}
	zap.L().Debug("tabular: opened workbook",
		zap.String("workbook", workbook),
		zap.String("spreadsheet_id", id),
		zap.Int("worksheets", len(ss.Sheets)),
	)
	return wb, nil
}

type sheetsWorkbook struct {
	client sheets.Client
	id     string
	title  string
	sheets map[string]*sheetsWorksheet
}

func (w *sheetsWorkbook) Title() string { return w.title }

func (w *sheetsWorkbook) Worksheet(_ context.Context, name string) (Worksheet, error) {
	ws, ok := w.sheets[name]
	if !ok {
		return nil, eris.Wrapf(ErrWorksheetNotFound, "%q in %q", name, w.title)
	}
	return ws, nil
}

func (w *sheetsWorkbook) AddWorksheet(ctx context.Context, name string, rows, cols int) (Worksheet, error) {
	props, err := w.client.AddSheet(ctx, w.id, name, rows, cols)
	if err != nil {
		return nil, err
	}
	ws := &sheetsWorksheet{wb: w, props: *props}
	w.sheets[name] = ws
	return ws, nil
}

type sheetsWorksheet struct {
	wb    *sheetsWorkbook
	props sheets.SheetProperties
}

func (s *sheetsWorksheet) Title() string { return s.props.Title }

func (s *sheetsWorksheet) Records(ctx context.Context) (*RecordSet, error) {
	vr, err := s.wb.client.GetValues(ctx, s.wb.id, sheets.QuoteRange(s.props.Title))
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: read %q", s.props.Title)
	}
	return recordsFromGrid(vr.Values)
}

func (s *sheetsWorksheet) Clear(ctx context.Context) error {
	if err := s.wb.client.ClearValues(ctx, s.wb.id, sheets.QuoteRange(s.props.Title)); err != nil {
		return eris.Wrapf(err, "tabular: clear %q", s.props.Title)
	}
	return nil
}

// Write grows the grid when the table exceeds it, then writes from A1.
func (s *sheetsWorksheet) Write(ctx context.Context, t Table) error {
	rows, cols := t.Size()
	grid := s.props.GridProperties
	if rows > grid.RowCount || cols > grid.ColumnCount {
		rows, cols = max(rows, grid.RowCount), max(cols, grid.ColumnCount)
		if err := s.wb.client.ResizeSheet(ctx, s.wb.id, s.props.SheetID, rows, cols); err != nil {
			return eris.Wrapf(err, "tabular: resize %q", s.props.Title)
		}
		s.props.GridProperties = sheets.GridProperties{RowCount: rows, ColumnCount: cols}
	}

	if err := s.wb.client.UpdateValues(ctx, s.wb.id, sheets.QuoteRange(s.props.Title)+"!A1", t.Grid()); err != nil {
		return eris.Wrapf(err, "tabular: write %q", s.props.Title)
	}
	return nil
}
