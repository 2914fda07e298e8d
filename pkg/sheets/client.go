// Package sheets adapts the Google Sheets v4 and Drive v3 APIs to what the
// pipeline needs: find a spreadsheet by title, read and write cell values,
// add and resize worksheets.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// Scopes are the OAuth scopes required by this client.
var Scopes = []string{
	sheetsapi.SpreadsheetsScope,
	drive.DriveScope,
}

// ErrSpreadsheetNotFound is returned when no spreadsheet has the requested title.
var ErrSpreadsheetNotFound = eris.New("sheets: spreadsheet not found")

// Client performs Google Sheets operations.
type Client interface {
	FindSpreadsheet(ctx context.Context, title string) (string, error)
	GetSpreadsheet(ctx context.Context, spreadsheetID string) (*Spreadsheet, error)
	GetValues(ctx context.Context, spreadsheetID, rng string) (*ValueRange, error)
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error
	ClearValues(ctx context.Context, spreadsheetID, rng string) error
	AddSheet(ctx context.Context, spreadsheetID, title string, rows, cols int) (*SheetProperties, error)
	ResizeSheet(ctx context.Context, spreadsheetID string, sheetID int64, rows, cols int) error
}

// Spreadsheet is the subset of spreadsheet metadata the pipeline reads.
type Spreadsheet struct {
	SpreadsheetID string
	Title         string
	Sheets        []Sheet
}

// Sheet wraps a worksheet's properties.
type Sheet struct {
	Properties SheetProperties
}

// SheetProperties describes one worksheet.
type SheetProperties struct {
	SheetID        int64
	Title          string
	Index          int
	GridProperties GridProperties
}

// GridProperties holds a worksheet's allocated size.
type GridProperties struct {
	RowCount    int
	ColumnCount int
}

// ValueRange is a block of cell values.
type ValueRange struct {
	Range  string
	Values [][]any
}

type apiClient struct {
	sheets *sheetsapi.Service
	drive  *drive.Service
}

// NewClient creates the Sheets and Drive services with the same options,
// typically option.WithTokenSource.
func NewClient(ctx context.Context, opts ...option.ClientOption) (Client, error) {
	ss, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create sheets service")
	}
	ds, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create drive service")
	}
	return NewFromServices(ss, ds), nil
}

// NewFromServices wraps already configured services.
func NewFromServices(ss *sheetsapi.Service, ds *drive.Service) Client {
	return &apiClient{sheets: ss, drive: ds}
}

// QuoteRange quotes a worksheet title for use in A1 notation.
func QuoteRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func (c *apiClient) FindSpreadsheet(ctx context.Context, title string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(title, "'", `\'`), spreadsheetMimeType)

	list, err := c.drive.Files.List().
		Q(q).
		Fields("files(id,name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", eris.Wrapf(err, "sheets: search for %q", title)
	}
	if len(list.Files) == 0 {
		return "", eris.Wrapf(ErrSpreadsheetNotFound, "%q", title)
	}
	return list.Files[0].Id, nil
}

func (c *apiClient) GetSpreadsheet(ctx context.Context, spreadsheetID string) (*Spreadsheet, error) {
	ss, err := c.sheets.Spreadsheets.Get(spreadsheetID).
		Fields("spreadsheetId,properties.title,sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, eris.Wrapf(err, "sheets: get spreadsheet %s", spreadsheetID)
	}

	out := &Spreadsheet{SpreadsheetID: ss.SpreadsheetId, Sheets: make([]Sheet, 0, len(ss.Sheets))}
	if ss.Properties != nil {
		out.Title = ss.Properties.Title
	}
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		out.Sheets = append(out.Sheets, Sheet{Properties: fromAPIProperties(sh.Properties)})
	}
	return out, nil
}

func (c *apiClient) GetValues(ctx context.Context, spreadsheetID, rng string) (*ValueRange, error) {
	vr, err := c.sheets.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, eris.Wrapf(err, "sheets: get values %s", rng)
	}

	values := make([][]any, len(vr.Values))
	for i, row := range vr.Values {
		values[i] = row
	}
	return &ValueRange{Range: vr.Range, Values: values}, nil
}

func (c *apiClient) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	body := &sheetsapi.ValueRange{Range: rng, MajorDimension: "ROWS", Values: make([][]interface{}, len(values))}
	for i, row := range values {
		body.Values[i] = row
	}

	_, err := c.sheets.Spreadsheets.Values.Update(spreadsheetID, rng, body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return eris.Wrapf(err, "sheets: update values %s", rng)
	}
	return nil
}

func (c *apiClient) ClearValues(ctx context.Context, spreadsheetID, rng string) error {
	_, err := c.sheets.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheetsapi.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return eris.Wrapf(err, "sheets: clear values %s", rng)
	}
	return nil
}

func (c *apiClient) AddSheet(ctx context.Context, spreadsheetID, title string, rows, cols int) (*SheetProperties, error) {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{Requests: []*sheetsapi.Request{{
		AddSheet: &sheetsapi.AddSheetRequest{Properties: &sheetsapi.SheetProperties{
			Title: title,
			GridProperties: &sheetsapi.GridProperties{
				RowCount:    int64(rows),
				ColumnCount: int64(cols),
			},
		}},
	}}}

	resp, err := c.sheets.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrapf(err, "sheets: add sheet %q", title)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return nil, eris.Errorf("sheets: add sheet %q: empty reply", title)
	}
	props := fromAPIProperties(resp.Replies[0].AddSheet.Properties)
	return &props, nil
}

func (c *apiClient) ResizeSheet(ctx context.Context, spreadsheetID string, sheetID int64, rows, cols int) error {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{Requests: []*sheetsapi.Request{{
		UpdateSheetProperties: &sheetsapi.UpdateSheetPropertiesRequest{
			Properties: &sheetsapi.SheetProperties{
				SheetId: sheetID,
				GridProperties: &sheetsapi.GridProperties{
					RowCount:    int64(rows),
					ColumnCount: int64(cols),
				},
				// The first worksheet has id 0, which omitempty would drop.
				ForceSendFields: []string{"SheetId"},
			},
			Fields: "gridProperties(rowCount,columnCount)",
		},
	}}}

	if _, err := c.sheets.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return eris.Wrapf(err, "sheets: resize sheet %d", sheetID)
	}
	return nil
}

func fromAPIProperties(p *sheetsapi.SheetProperties) SheetProperties {
	out := SheetProperties{SheetID: p.SheetId, Title: p.Title, Index: int(p.Index)}
	if p.GridProperties != nil {
		out.GridProperties = GridProperties{
			RowCount:    int(p.GridProperties.RowCount),
			ColumnCount: int(p.GridProperties.ColumnCount),
		}
	}
	return out
}
