// Package kpi computes segment-level rating and review aggregates.
package kpi

import "github.com/wakefit-analytics/gmb-pipeline/internal/model"

// Rating bucket boundaries. A rating belongs to exactly one bucket:
// [TopRating, ∞), [GoodRating, TopRating) or (-∞, GoodRating).
const (
	TopRating  = 4.9
	GoodRating = 4.0
)

// FilterOpen drops permanently closed stores.
func FilterOpen(records []model.MergedRecord) []model.MergedRecord {
	open := make([]model.MergedRecord, 0, len(records))
	for _, r := range records {
		if !r.Closed() {
			open = append(open, r)
		}
	}
	return open
}

// Aggregate computes one KPI row per segment over records. Callers pass
// records that already exclude closed stores (see FilterOpen).
func Aggregate(records []model.MergedRecord, segments []Segment, snapshotDate string) []model.KPIRow {
	rows := make([]model.KPIRow, 0, len(segments))
	for _, seg := range segments {
		row := model.KPIRow{Segment: seg.Name, SnapshotDate: snapshotDate}

		var weighted float64
		for _, r := range records {
			if !seg.Match(r) {
				continue
			}
			row.StoreCount++
			row.TotalReviews += r.TotalReviews
			weighted += r.VisibleRating * float64(r.TotalReviews)

			switch {
			case r.VisibleRating >= TopRating:
				row.Rating49Plus++
			case r.VisibleRating >= GoodRating:
				row.Rating4To49++
			default:
				row.RatingBelow4++
			}
		}

		if row.TotalReviews > 0 {
			row.VisibleRating = weighted / float64(row.TotalReviews)
		}
		rows = append(rows, row)
	}
	return rows
}
