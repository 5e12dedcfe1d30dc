package queue

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository persists pipeline jobs.
type JobRepository interface {
	// Enqueue inserts jobs, silently skipping ids that already exist so
	// redelivery and double-scheduling dedupe at the store level.
	Enqueue(ctx context.Context, jobs ...*Job) error

	// FindRunnable returns pending jobs plus failed jobs whose retry
	// time has passed, oldest first.
	FindRunnable(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// MarkProcessing atomically claims the given jobs and returns the
	// ones this worker won.
	MarkProcessing(ctx context.Context, ids []string) ([]*Job, error)

	Update(ctx context.Context, job *Job) error

	// RequeueStale returns processing jobs last touched before the cutoff
	// to pending. Jobs a crashed worker claimed and never finished become
	// runnable again instead of blocking their batch forever.
	RequeueStale(ctx context.Context, before time.Time) (int64, error)

	// DeleteOlderThan removes completed jobs processed before the cutoff.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// GormJobRepository implements JobRepository using GORM.
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a GORM-based job repository.
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

func (r *GormJobRepository) Enqueue(ctx context.Context, jobs ...*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(jobs).Error
}

func (r *GormJobRepository) FindRunnable(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	var jobs []*Job
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_retry_at <= ?)", JobStatusPending, JobStatusFailed, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *GormJobRepository) MarkProcessing(ctx context.Context, ids []string) ([]*Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var jobs []*Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Options:  "SKIP LOCKED",
			}).
			Where("id IN ? AND status IN ?", ids, []JobStatus{JobStatusPending, JobStatusFailed}).
			Find(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}

		claimed := make([]string, len(jobs))
		for i, j := range jobs {
			claimed[i] = j.ID
		}
		now := time.Now()
		if err := tx.Model(&Job{}).
			Where("id IN ?", claimed).
			Updates(map[string]interface{}{
				"status":     JobStatusProcessing,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		for _, j := range jobs {
			j.Status = JobStatusProcessing
			j.UpdatedAt = now
		}
		return nil
	})
	return jobs, err
}

func (r *GormJobRepository) Update(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *GormJobRepository) RequeueStale(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&Job{}).
		Where("status = ? AND updated_at < ?", JobStatusProcessing, before).
		Updates(map[string]interface{}{
			"status":     JobStatusPending,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *GormJobRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", JobStatusCompleted, before).
		Delete(&Job{})
	return result.RowsAffected, result.Error
}

var _ JobRepository = (*GormJobRepository)(nil)
