package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// RejectedSampleCap bounds how many per-row rejections a job retains. The
// first RejectedSampleCap rejections are kept verbatim; later ones only bump
// the counter.
const RejectedSampleCap = 100

// RejectedRow records one rejected input row by its ordinal position in the
// file (first data row is 1).
type RejectedRow struct {
	Line   int64  `json:"line"`
	Reason string `json:"reason"`
}

// ImportJob is the progress ledger entry for one submitted catalog file.
// Counters only ever grow, and a terminal status is never left.
type ImportJob struct {
	ID uuid.UUID

	Status    JobStatus
	SpoolPath string
	Reason    string

	TotalRows       *int64
	ProcessedRows   int64
	CreatedCount    int64
	UpdatedCount    int64
	RejectedCount   int64
	RejectedSamples []RejectedRow

	CancelRequested bool

	ClaimedAt  *time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
}
