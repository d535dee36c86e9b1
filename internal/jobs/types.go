// Package jobs defines the evaluation job model and the queue abstractions
// the worker consumes. The engine itself is synchronous; jobs exist so the
// surrounding ingestion pipeline can hand transactions off asynchronously.
package jobs

import (
	"context"
	"time"

	"github.com/finpath/goalengine/internal/model"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeEvaluateTransaction runs the rule engine over one transaction.
	JobTypeEvaluateTransaction JobType = "evaluate_transaction"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// EvaluateTransactionJob carries one transaction event through the queue.
type EvaluateTransactionJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Transaction is the immutable snapshot handed to the engine.
	Transaction model.TransactionView `json:"transaction"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *EvaluateTransactionJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *EvaluateTransactionJob) GetType() JobType {
	return JobTypeEvaluateTransaction
}

// GetStatus implements the Job interface.
func (j *EvaluateTransactionJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues evaluation jobs. The abstraction allows swapping the
// in-memory queue for Cloud Tasks or Pub/Sub in multi-instance deployments.
type Publisher interface {
	PublishEvaluateTransaction(ctx context.Context, job *EvaluateTransactionJob) error
	Close() error
}

// Consumer drains evaluation jobs into a handler.
type Consumer interface {
	// Start begins consuming jobs; the handler is called per job.
	Start(ctx context.Context, handler JobHandler) error
	// Stop stops consuming and waits for in-flight jobs.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the job failed and
// eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state so execution is observable.
type JobStore interface {
	SaveJob(ctx context.Context, job *EvaluateTransactionJob) error
	GetJob(ctx context.Context, jobID string) (*EvaluateTransactionJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*EvaluateTransactionJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by the transaction's user.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results; zero means no limit.
	Limit int
}
