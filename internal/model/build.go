package model

import "time"

// BuildStatus is the lifecycle state of a dataset build.
type BuildStatus string

const (
	BuildStatusQueued   BuildStatus = "queued"
	BuildStatusRunning  BuildStatus = "running"
	BuildStatusComplete BuildStatus = "complete"
	BuildStatusFailed   BuildStatus = "failed"
)

// PhaseStatus is the lifecycle state of one build phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// Build is one run of the dataset pipeline. ReferenceDate pins the age
// calculation so re-running a build reproduces its scores.
type Build struct {
	ID            string       `json:"id"`
	Status        BuildStatus  `json:"status"`
	ReferenceDate string       `json:"reference_date"`
	Result        *BuildResult `json:"result,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// BuildResult summarizes a finished build.
type BuildResult struct {
	Domains       int            `json:"domains"`
	OverlapCount  int            `json:"overlap_count"`
	ByCategory    map[string]int `json:"by_category,omitempty"`
	EnrichedRanks int            `json:"enriched_ranks,omitempty"`
	EnrichedAges  int            `json:"enriched_ages,omitempty"`
	Flagged       int            `json:"flagged,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// BuildPhase is one stage of a build (ingest, merge, enrich steps, score,
// write).
type BuildPhase struct {
	ID        string      `json:"id"`
	BuildID   string      `json:"build_id"`
	Name      string      `json:"name"`
	Status    PhaseStatus `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time   `json:"started_at"`
}

// PhaseResult records a phase outcome.
type PhaseResult struct {
	Status    PhaseStatus `json:"status"`
	Processed int         `json:"processed,omitempty"`
	Errors    int         `json:"errors,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}
