package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run represents a single execution of the KPI pipeline.
type Run struct {
	ID           string     `json:"id"`
	SnapshotDate string     `json:"snapshot_date"`
	Status       RunStatus  `json:"status"`
	Result       *RunResult `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RunResult holds the final counters of a completed run.
type RunResult struct {
	Stores           int           `json:"stores"`
	Enriched         int           `json:"enriched"`
	EnrichmentErrors int           `json:"enrichment_errors"`
	Closed           int           `json:"closed"`
	Segments         int           `json:"segments"`
	Worksheets       []string      `json:"worksheets"`
	Archive          []string      `json:"archive,omitempty"`
	Phases           []PhaseResult `json:"phases"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunOutcome is what a successful pipeline run hands back to its caller.
type RunOutcome struct {
	RunID    string    `json:"run_id,omitempty"`
	Snapshot Snapshot  `json:"snapshot"`
	Result   RunResult `json:"result"`
}
