// Package queue provides the durable at-least-once job queue driving the
// batch pipeline. Jobs live in a database table; workers claim them with
// row locks, so the queue survives restarts and multiple workers can run
// against the same store.
package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage identifies a pipeline stage.
type Stage string

const (
	StagePopulate      Stage = "billing.populate-charge-versions"
	StageProcess       Stage = "billing.process-charge-version-year"
	StagePrepare       Stage = "billing.prepare-transactions"
	StageCreateCharge  Stage = "billing.create-charge"
	StageRefreshTotals Stage = "billing.refresh-totals"
)

// JobStatus is the lifecycle status of a queued job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusDead       JobStatus = "dead"
)

// Default retry behaviour.
const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
)

// Job is one durable unit of pipeline work. The id is deterministic from
// the payload, so re-enqueueing the same work is a no-op at the store
// level and at most one job per unit ever exists.
type Job struct {
	ID      string
	Stage   Stage
	BatchID uuid.UUID

	// UnitID scopes per-unit stages: the charge version year for
	// process jobs, the transaction for create-charge jobs. Nil for
	// batch-scoped stages.
	UnitID *uuid.UUID

	Status      JobStatus
	RetryCount  int
	MaxRetries  int
	LastError   string
	NextRetryAt *time.Time
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName maps the job entity to its table.
func (Job) TableName() string {
	return "billing_jobs"
}

// NewBatchJob creates a pending batch-scoped job.
func NewBatchJob(stage Stage, batchID uuid.UUID) *Job {
	now := time.Now()
	return &Job{
		ID:         fmt.Sprintf("%s.%s", stage, batchID),
		Stage:      stage,
		BatchID:    batchID,
		Status:     JobStatusPending,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewUnitJob creates a pending per-unit job.
func NewUnitJob(stage Stage, batchID, unitID uuid.UUID) *Job {
	job := NewBatchJob(stage, batchID)
	job.ID = fmt.Sprintf("%s.%s.%s", stage, batchID, unitID)
	job.UnitID = &unitID
	return job
}

// CanRetry returns true if the job can be retried.
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkProcessing marks the job as claimed by a worker.
func (j *Job) MarkProcessing() error {
	if j.Status != JobStatusPending && j.Status != JobStatusFailed {
		return errors.New("can only mark pending or failed jobs as processing")
	}
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
	return nil
}

// MarkCompleted marks the job as done.
func (j *Job) MarkCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkFailed records a failure and schedules the next retry, or moves the
// job to dead once the retry budget is exhausted.
func (j *Job) MarkFailed(errMsg string) {
	j.RetryCount++
	j.LastError = errMsg
	j.UpdatedAt = time.Now()

	if j.RetryCount >= j.MaxRetries {
		j.Status = JobStatusDead
	} else {
		j.Status = JobStatusFailed
		// Exponential backoff: 1s, 2s, 4s, 8s, ...
		backoff := DefaultBaseBackoff * time.Duration(1<<uint(j.RetryCount-1))
		nextRetry := time.Now().Add(backoff)
		j.NextRetryAt = &nextRetry
	}
}

// IsDead returns true once the job has exhausted its retries.
func (j *Job) IsDead() bool {
	return j.Status == JobStatusDead
}
