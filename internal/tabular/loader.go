package tabular

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
)

// ErrMalformedInput marks an input worksheet missing a required column.
var ErrMalformedInput = eris.New("tabular: malformed input schema")

// Columns names the input columns the pipeline depends on.
type Columns struct {
	URL              string `yaml:"url" mapstructure:"url"`
	ExperienceCenter string `yaml:"experience_center" mapstructure:"experience_center"`
	Region           string `yaml:"region" mapstructure:"region"`
}

// DefaultColumns returns the column names used by the production input sheet.
func DefaultColumns() Columns {
	return Columns{
		URL:              "store locator",
		ExperienceCenter: "Experience Center",
		Region:           "Region",
	}
}

// LoadStores converts input records to stores. The URL column is renamed to
// model.OriginalURLColumn in each store's pass-through values.
func LoadStores(rs *RecordSet, cols Columns) ([]model.StoreInput, error) {
	for _, name := range []string{cols.URL, cols.ExperienceCenter, cols.Region} {
		if !rs.HasColumn(name) {
			return nil, eris.Wrapf(ErrMalformedInput, "missing column %q", name)
		}
	}

	columns := make([]string, len(rs.Header))
	for i, h := range rs.Header {
		if h == cols.URL {
			h = model.OriginalURLColumn
		}
		columns[i] = h
	}

	stores := make([]model.StoreInput, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		values := make(map[string]any, len(row))
		for k, v := range row {
			if k == cols.URL {
				k = model.OriginalURLColumn
			}
			values[k] = v
		}
		stores = append(stores, model.StoreInput{
			URL:              strings.TrimSpace(cellString(row[cols.URL])),
			ExperienceCenter: parseFlag(row[cols.ExperienceCenter]),
			Region:           model.NormalizeRegion(cellString(row[cols.Region])),
			Columns:          columns,
			Values:           values,
		})
	}
	return stores, nil
}

// parseFlag reads an integral 0/1-style cell. Blank or fractional values
// yield model.ExperienceCenterUnknown.
func parseFlag(v any) int {
	var f float64
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		f = t
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		s := strings.TrimSpace(cellString(t))
		if s == "" {
			return model.ExperienceCenterUnknown
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.ExperienceCenterUnknown
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return model.ExperienceCenterUnknown
	}
	return int(f)
}
