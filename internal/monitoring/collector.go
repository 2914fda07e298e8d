package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
	"github.com/wakefit-analytics/gmb-pipeline/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Runs within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`

	// Latest completed run, regardless of window.
	LatestSnapshotDate string    `json:"latest_snapshot_date,omitempty"`
	LatestStores       int       `json:"latest_stores"`
	LatestErrors       int       `json:"latest_errors"`
	LatestErrorRate    float64   `json:"latest_error_rate"`
	LastSuccessAt      time.Time `json:"last_success_at"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the subset of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from run history.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: 1000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	// Runs arrive newest first.
	for _, r := range runs {
		if r.Status == model.RunStatusComplete && snap.LastSuccessAt.IsZero() {
			snap.LastSuccessAt = r.UpdatedAt
			snap.LatestSnapshotDate = r.SnapshotDate
			if r.Result != nil {
				snap.LatestStores = r.Result.Stores
				snap.LatestErrors = r.Result.EnrichmentErrors
				if r.Result.Stores > 0 {
					snap.LatestErrorRate = float64(r.Result.EnrichmentErrors) / float64(r.Result.Stores)
				}
			}
		}

		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	return snap, nil
}
