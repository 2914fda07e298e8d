package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	ss, err := sheetsapi.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	ds, err := drive.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/drive/v3/"))
	require.NoError(t, err)
	return NewFromServices(ss, ds)
}

func TestQuoteRange(t *testing.T) {
	assert.Equal(t, "'store_data'", QuoteRange("store_data"))
	assert.Equal(t, "'it''s'", QuoteRange("it's"))
}

func TestFindSpreadsheet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drive/v3/files", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "name = 'Wakefit_GMB_Pipeline_Input'")
		assert.Equal(t, "true", r.URL.Query().Get("supportsAllDrives"))
		w.Write([]byte(`{"files":[{"id":"abc123","name":"Wakefit_GMB_Pipeline_Input"}]}`)) //nolint:errcheck
	})

	id, err := c.FindSpreadsheet(context.Background(), "Wakefit_GMB_Pipeline_Input")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

func TestFindSpreadsheet_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"files":[]}`)) //nolint:errcheck
	})

	_, err := c.FindSpreadsheet(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSpreadsheetNotFound))
}

func TestGetSpreadsheet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/spreadsheets/ss1", r.URL.Path)
		w.Write([]byte(`{"spreadsheetId":"ss1","properties":{"title":"Wakefit_GMB_Pipeline_Output"},"sheets":[{"properties":{"sheetId":7,"title":"store_data","gridProperties":{"rowCount":1000,"columnCount":26}}}]}`)) //nolint:errcheck
	})

	ss, err := c.GetSpreadsheet(context.Background(), "ss1")
	require.NoError(t, err)
	assert.Equal(t, "Wakefit_GMB_Pipeline_Output", ss.Title)
	require.Len(t, ss.Sheets, 1)
	assert.Equal(t, int64(7), ss.Sheets[0].Properties.SheetID)
	assert.Equal(t, "store_data", ss.Sheets[0].Properties.Title)
	assert.Equal(t, 1000, ss.Sheets[0].Properties.GridProperties.RowCount)
}

func TestGetValues(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/spreadsheets/ss1/values/'store_data'", r.URL.Path)
		assert.Equal(t, "UNFORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
		w.Write([]byte(`{"range":"store_data!A1:C2","values":[["store locator","Region"],["https://x",  "North"]]}`)) //nolint:errcheck
	})

	vr, err := c.GetValues(context.Background(), "ss1", QuoteRange("store_data"))
	require.NoError(t, err)
	require.Len(t, vr.Values, 2)
	assert.Equal(t, "store locator", vr.Values[0][0])
	assert.Equal(t, "North", vr.Values[1][1])
}

func TestUpdateValues(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		var vr sheetsapi.ValueRange
		require.NoError(t, json.NewDecoder(r.Body).Decode(&vr))
		assert.Equal(t, "ROWS", vr.MajorDimension)
		require.Len(t, vr.Values, 2)
		assert.Equal(t, "Segment", vr.Values[0][0])
		w.Write([]byte(`{}`)) //nolint:errcheck
	})

	err := c.UpdateValues(context.Background(), "ss1", "'KPI'!A1", [][]any{{"Segment"}, {"North"}})
	require.NoError(t, err)
}

func TestClearValues(t *testing.T) {
	var called bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v4/spreadsheets/ss1/values/'KPI':clear", r.URL.Path)
		w.Write([]byte(`{}`)) //nolint:errcheck
	})

	require.NoError(t, c.ClearValues(context.Background(), "ss1", "'KPI'"))
	assert.True(t, called)
}

func TestAddSheet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/spreadsheets/ss1:batchUpdate", r.URL.Path)
		var req sheetsapi.BatchUpdateSpreadsheetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 1)
		require.NotNil(t, req.Requests[0].AddSheet)
		assert.Equal(t, "KPI_Data_2025-01-31", req.Requests[0].AddSheet.Properties.Title)
		assert.Equal(t, int64(100), req.Requests[0].AddSheet.Properties.GridProperties.RowCount)
		w.Write([]byte(`{"replies":[{"addSheet":{"properties":{"sheetId":42,"title":"KPI_Data_2025-01-31","gridProperties":{"rowCount":100,"columnCount":20}}}}]}`)) //nolint:errcheck
	})

	props, err := c.AddSheet(context.Background(), "ss1", "KPI_Data_2025-01-31", 100, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(42), props.SheetID)
	assert.Equal(t, 20, props.GridProperties.ColumnCount)
}

func TestAddSheet_EmptyReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"replies":[]}`)) //nolint:errcheck
	})

	_, err := c.AddSheet(context.Background(), "ss1", "KPI", 10, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty reply")
}

func TestResizeSheet_FirstSheetSendsID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw struct {
			Requests []struct {
				UpdateSheetProperties struct {
					Properties map[string]any `json:"properties"`
					Fields     string         `json:"fields"`
				} `json:"updateSheetProperties"`
			} `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		require.Len(t, raw.Requests, 1)
		p := raw.Requests[0].UpdateSheetProperties
		assert.Contains(t, p.Properties, "sheetId")
		assert.EqualValues(t, 0, p.Properties["sheetId"])
		assert.Equal(t, "gridProperties(rowCount,columnCount)", p.Fields)
		w.Write([]byte(`{}`)) //nolint:errcheck
	})

	require.NoError(t, c.ResizeSheet(context.Background(), "ss1", 0, 2000, 30))
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`)) //nolint:errcheck
	})

	_, err := c.GetSpreadsheet(context.Background(), "ss1")
	require.Error(t, err)
	var apiErr *googleapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Code)
}
