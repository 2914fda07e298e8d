// Package merge joins enrichment results onto the input store rows.
package merge

import (
	"math"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
)

// Merge left-joins results onto stores by original URL. Every store yields
// exactly one record, in input order; results whose URL matches no store are
// dropped. When several results share a URL the first one wins. Missing or
// non-numeric review counts and ratings become zero.
func Merge(stores []model.StoreInput, results []model.EnrichmentResult) []model.MergedRecord {
	byURL := make(map[string]model.EnrichmentResult, len(results))
	for _, r := range results {
		if _, seen := byURL[r.OriginalURL]; !seen {
			byURL[r.OriginalURL] = r
		}
	}

	merged := make([]model.MergedRecord, 0, len(stores))
	for _, s := range stores {
		rec := model.MergedRecord{Store: s}
		if s.URL != "" {
			if r, ok := byURL[s.URL]; ok {
				rec.TotalReviews = reviews(r.TotalReviews)
				rec.VisibleRating = rating(r.Rating)
				if r.BusinessStatus != nil {
					rec.BusinessStatus = *r.BusinessStatus
				}
			}
		}
		merged = append(merged, rec)
	}
	return merged
}

func reviews(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

func rating(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}
