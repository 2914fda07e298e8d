package model

import "time"

// SnapshotDateLayout formats the run date used in worksheet names.
const SnapshotDateLayout = "2006-01-02"

// Snapshot is the full output of one run.
type Snapshot struct {
	Timestamp         time.Time      `json:"snapshot_timestamp"`
	StoreLevelData    []MergedRecord `json:"store_level_data"`
	AggregatedKPIData []KPIRow       `json:"aggregated_kpi_data"`
}

// Date returns the snapshot's calendar date as YYYY-MM-DD.
func (s Snapshot) Date() string {
	return s.Timestamp.Format(SnapshotDateLayout)
}
