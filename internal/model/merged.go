package model

import (
	"bytes"
	"encoding/json"
)

// MergedRecord is a store row joined with its enrichment data. TotalReviews
// and VisibleRating are always numeric; missing values are zero.
type MergedRecord struct {
	Store          StoreInput
	TotalReviews   int
	VisibleRating  float64
	BusinessStatus string
}

const (
	TotalReviewsColumn  = "Total Reviews"
	VisibleRatingColumn = "Visible Rating"
)

// Closed reports whether the store is permanently closed.
func (m MergedRecord) Closed() bool {
	return m.BusinessStatus == BusinessStatusPermanentlyClosed
}

// OutputColumns returns the store-level column order: input columns followed
// by the two enrichment columns. Business status is never part of the output.
func (m MergedRecord) OutputColumns() []string {
	cols := make([]string, 0, len(m.Store.Columns)+2)
	for _, c := range m.Store.Columns {
		if c == TotalReviewsColumn || c == VisibleRatingColumn {
			continue
		}
		cols = append(cols, c)
	}
	return append(cols, TotalReviewsColumn, VisibleRatingColumn)
}

// Value returns the cell value for an output column.
func (m MergedRecord) Value(column string) any {
	switch column {
	case TotalReviewsColumn:
		return m.TotalReviews
	case VisibleRatingColumn:
		return m.VisibleRating
	case OriginalURLColumn:
		if v, ok := m.Store.Values[column]; ok {
			return v
		}
		return m.Store.URL
	}
	return m.Store.Values[column]
}

// MarshalJSON writes the record as an object whose keys follow sheet order.
func (m MergedRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range m.OutputColumns() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.Value(col))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
