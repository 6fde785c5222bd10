package domain

import "time"

// Collection names. The processed ones are the dashboard's read source.
const (
	RawCountry       = "raw_worldbank_country"
	RawUniversities  = "raw_hipolabs"
	RawIndicator     = "raw_worldbank"
	ProcCountry      = "processed_worldbank_country"
	ProcUniversities = "processed_hipolabs"
	ProcIndicator    = "processed_worldbank"
)

// ProcessedCollections lists every processed collection in a stable order.
var ProcessedCollections = []string{ProcCountry, ProcUniversities, ProcIndicator}

// IngestResult is what an ingest task reports for observability.
type IngestResult struct {
	Source     string `json:"source"`
	Collection string `json:"collection"`
	Records    int    `json:"records"`
}

// TransformResult is what a transform task reports.
type TransformResult struct {
	Collection string `json:"collection"`
	Processed  int    `json:"processed_records"`
}

// LoadResult carries per-collection document counts after indexing.
type LoadResult struct {
	Counts map[string]int64 `json:"counts"`
}

// ReplicationResult reports rows written per collection into Postgres.
type ReplicationResult struct {
	Rows map[string]int `json:"rows"`
}

// TaskReport is the runner's view of one task execution.
type TaskReport struct {
	Task     string        `json:"task"`
	Status   TaskStatus    `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Result   any           `json:"result,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// TaskStatus is the terminal state of a task within a run.
type TaskStatus string

const (
	StatusSuccess        TaskStatus = "success"
	StatusFailed         TaskStatus = "failed"
	StatusUpstreamFailed TaskStatus = "upstream_failed"
)
