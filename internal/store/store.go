// Package store persists pipeline run history.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
)

// ErrNotFound is returned (wrapped) when a run or phase does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	SnapshotDate string          `json:"snapshot_date,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store records pipeline runs and their phases.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, snapshotDate string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// KPI history
	SaveKPIs(ctx context.Context, runID string, rows []model.KPIRow) error
	ListKPIs(ctx context.Context, runID string) ([]model.KPIRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// kpiColumns is the column list of the run_kpis table in insert order.
var kpiColumns = []string{
	"run_id", "position", "segment", "snapshot_date", "total_reviews",
	"visible_rating", "store_count", "rating_49_plus", "rating_4_to_49", "rating_below_4",
}

// kpiValues flattens rows for insertion, keeping their order in position.
func kpiValues(runID string, rows []model.KPIRow) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = []any{
			runID, i, r.Segment, r.SnapshotDate, r.TotalReviews,
			r.VisibleRating, r.StoreCount, r.Rating49Plus, r.Rating4To49, r.RatingBelow4,
		}
	}
	return out
}
