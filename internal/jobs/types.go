// Package jobs runs statement ingestion in the background. Callers publish
// an IngestStatementJob and poll its status through a JobStore.
package jobs

import (
	"context"
	"time"
)

type JobType string

const JobTypeIngestStatement JobType = "ingest_statement"

// JobStatus moves pending -> running -> completed | failed. A failed attempt
// that may succeed later goes through retrying and back to pending.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// IngestStatementJob ingests one uploaded statement document. Document is
// held only until the job reaches a final state and is never serialised.
type IngestStatementJob struct {
	JobID       string `json:"job_id"`
	BusinessID  string `json:"business_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Document    []byte `json:"-"`
	RequestedBy string `json:"requested_by,omitempty"`

	// Outcome of a completed ingestion.
	StatementID  string `json:"statement_id,omitempty"`
	RowsAccepted int    `json:"rows_accepted,omitempty"`
	RowsDropped  int    `json:"rows_dropped,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error and ErrorKind describe the last failed attempt. ErrorKind is
	// an apperr kind such as "upstream" or "extraction".
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is what a JobHandler receives.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *IngestStatementJob) GetID() string        { return j.JobID }
func (j *IngestStatementJob) GetType() JobType     { return JobTypeIngestStatement }
func (j *IngestStatementJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	PublishIngestStatement(ctx context.Context, job *IngestStatementJob) error
	Close() error
}

// Consumer runs a JobHandler for each queued job. Stop waits for in-flight
// jobs.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes one job. The returned error decides whether the
// queue retries it.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for status polling.
type JobStore interface {
	SaveJob(ctx context.Context, job *IngestStatementJob) error
	GetJob(ctx context.Context, jobID string) (*IngestStatementJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestStatementJob, error)
}

// JobFilter narrows ListJobs. Zero values match everything; a zero Limit
// means no limit.
type JobFilter struct {
	BusinessID string
	Status     JobStatus
	Limit      int
	Offset     int
}
