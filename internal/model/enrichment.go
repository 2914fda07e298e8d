package model

// BusinessStatusPermanentlyClosed is the places status of a shut store.
const BusinessStatusPermanentlyClosed = "PERMANENTLY_CLOSED"

// EnrichmentResult is the outcome of one places lookup. Either Error is nil
// and the data fields are set, or Error is set and every data field is nil.
type EnrichmentResult struct {
	OriginalURL    string   `json:"Original URL"`
	TotalReviews   *int     `json:"Total Reviews"`
	Rating         *float64 `json:"Rating"`
	BusinessStatus *string  `json:"Api Business Status"`
	Error          *string  `json:"Error"`
}

// NewEnrichmentSuccess builds a populated result.
func NewEnrichmentSuccess(url string, totalReviews int, rating float64, status string) EnrichmentResult {
	return EnrichmentResult{
		OriginalURL:    url,
		TotalReviews:   &totalReviews,
		Rating:         &rating,
		BusinessStatus: &status,
	}
}

// NewEnrichmentError builds an error result with all data fields nil.
func NewEnrichmentError(url, msg string) EnrichmentResult {
	return EnrichmentResult{OriginalURL: url, Error: &msg}
}

// Failed reports whether the lookup produced an error marker.
func (r EnrichmentResult) Failed() bool {
	return r.Error != nil
}
