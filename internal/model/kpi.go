package model

// KPIRow is the aggregate for one segment in one run.
type KPIRow struct {
	Segment       string  `json:"Segment"`
	TotalReviews  int     `json:"Total Reviews"`
	VisibleRating float64 `json:"Visible Rating"`
	StoreCount    int     `json:"No. of Stores"`
	Rating49Plus  int     `json:"≥4.9 Rating"`
	Rating4To49   int     `json:">4 Rating"`
	RatingBelow4  int     `json:"<4 Rating"`
	SnapshotDate  string  `json:"Snapshot date"`
}

// KPIColumns is the KPI worksheet header.
var KPIColumns = []string{
	"Segment",
	"Total Reviews",
	"Visible Rating",
	"No. of Stores",
	"≥4.9 Rating",
	">4 Rating",
	"<4 Rating",
	"Snapshot date",
}

// Cells returns the row in KPIColumns order.
func (k KPIRow) Cells() []any {
	return []any{
		k.Segment,
		k.TotalReviews,
		k.VisibleRating,
		k.StoreCount,
		k.Rating49Plus,
		k.Rating4To49,
		k.RatingBelow4,
		k.SnapshotDate,
	}
}
