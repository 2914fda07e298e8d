// Package output writes the dated store and KPI worksheets.
package output

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
	"github.com/wakefit-analytics/gmb-pipeline/internal/tabular"
)

// Settings controls where and how results are written.
type Settings struct {
	Workbook    string `yaml:"workbook" mapstructure:"workbook"`
	StorePrefix string `yaml:"store_prefix" mapstructure:"store_prefix"`
	KPIPrefix   string `yaml:"kpi_prefix" mapstructure:"kpi_prefix"`
	StoreRows   int    `yaml:"store_rows" mapstructure:"store_rows"`
	StoreCols   int    `yaml:"store_cols" mapstructure:"store_cols"`
	KPIRows     int    `yaml:"kpi_rows" mapstructure:"kpi_rows"`
	KPICols     int    `yaml:"kpi_cols" mapstructure:"kpi_cols"`
}

// DefaultSettings returns the production workbook layout.
func DefaultSettings() Settings {
	return Settings{
		Workbook:    "Wakefit_GMB_Pipeline_Output",
		StorePrefix: "Store_Data_",
		KPIPrefix:   "KPI_Data_",
		StoreRows:   1000,
		StoreCols:   30,
		KPIRows:     100,
		KPICols:     20,
	}
}

// WorksheetName returns prefix followed by the snapshot date.
func WorksheetName(prefix string, snapshot model.Snapshot) string {
	return prefix + snapshot.Date()
}

// BuildSnapshot assembles the run output.
func BuildSnapshot(now time.Time, merged []model.MergedRecord, kpis []model.KPIRow) model.Snapshot {
	return model.Snapshot{
		Timestamp:         now,
		StoreLevelData:    merged,
		AggregatedKPIData: kpis,
	}
}

// StoreTable renders the store-level rows. Columns follow the first record's
// layout; business status is never included.
func StoreTable(records []model.MergedRecord) tabular.Table {
	var cols []string
	if len(records) > 0 {
		cols = records[0].OutputColumns()
	} else {
		cols = []string{model.OriginalURLColumn, model.TotalReviewsColumn, model.VisibleRatingColumn}
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = cellValue(r.Value(c))
		}
		rows = append(rows, row)
	}
	return tabular.Table{Columns: cols, Rows: rows}
}

// KPITable renders the aggregated KPI rows.
func KPITable(rows []model.KPIRow) tabular.Table {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Cells())
	}
	return tabular.Table{Columns: append([]string(nil), model.KPIColumns...), Rows: out}
}

func cellValue(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// Writer writes snapshots to an output workbook.
type Writer struct {
	store    tabular.Store
	settings Settings
}

// NewWriter returns a Writer. Zero size settings fall back to the defaults.
func NewWriter(store tabular.Store, settings Settings) *Writer {
	def := DefaultSettings()
	if settings.Workbook == "" {
		settings.Workbook = def.Workbook
	}
	if settings.StorePrefix == "" {
		settings.StorePrefix = def.StorePrefix
	}
	if settings.KPIPrefix == "" {
		settings.KPIPrefix = def.KPIPrefix
	}
	if settings.StoreRows <= 0 {
		settings.StoreRows = def.StoreRows
	}
	if settings.StoreCols <= 0 {
		settings.StoreCols = def.StoreCols
	}
	if settings.KPIRows <= 0 {
		settings.KPIRows = def.KPIRows
	}
	if settings.KPICols <= 0 {
		settings.KPICols = def.KPICols
	}
	return &Writer{store: store, settings: settings}
}

// Write replaces the contents of the snapshot date's store and KPI
// worksheets, creating them when absent. Rerunning on the same date
// overwrites rather than appends.
func (w *Writer) Write(ctx context.Context, snapshot model.Snapshot) ([]string, error) {
	wb, err := w.store.Open(ctx, w.settings.Workbook)
	if err != nil {
		return nil, eris.Wrapf(err, "output: open workbook %q", w.settings.Workbook)
	}

	targets := []struct {
		name       string
		rows, cols int
		table      tabular.Table
	}{
		{
			name:  WorksheetName(w.settings.StorePrefix, snapshot),
			rows:  w.settings.StoreRows,
			cols:  w.settings.StoreCols,
			table: StoreTable(snapshot.StoreLevelData),
		},
		{
			name:  WorksheetName(w.settings.KPIPrefix, snapshot),
			rows:  w.settings.KPIRows,
			cols:  w.settings.KPICols,
			table: KPITable(snapshot.AggregatedKPIData),
		},
	}

	written := make([]string, 0, len(targets))
	for _, t := range targets {
		rows, cols := t.table.Size()
		ws, created, err := tabular.GetOrCreate(ctx, wb, t.name, max(t.rows, rows), max(t.cols, cols))
		if err != nil {
			return written, eris.Wrapf(err, "output: worksheet %q", t.name)
		}
		if err := ws.Clear(ctx); err != nil {
			return written, eris.Wrapf(err, "output: clear %q", t.name)
		}
		if err := ws.Write(ctx, t.table); err != nil {
			return written, eris.Wrapf(err, "output: write %q", t.name)
		}
		zap.L().Info("output: worksheet written",
			zap.String("workbook", w.settings.Workbook),
			zap.String("worksheet", t.name),
			zap.Bool("created", created),
			zap.Int("rows", len(t.table.Rows)),
		)
		written = append(written, t.name)
	}
	return written, nil
}
