package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeJobRepository is an in-memory JobRepository for worker tests.
type fakeJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func newFakeJobRepository() *fakeJobRepository {
	return &fakeJobRepository{jobs: make(map[string]*Job)}
}

func (r *fakeJobRepository) Enqueue(ctx context.Context, jobs ...*Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		if _, exists := r.jobs[j.ID]; exists {
			continue
		}
		copied := *j
		r.jobs[j.ID] = &copied
	}
	return nil
}

func (r *fakeJobRepository) FindRunnable(ctx context.Context, now time.Time, limit int) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Job
	for _, j := range r.jobs {
		if len(out) >= limit {
			break
		}
		if j.Status == JobStatusPending {
			out = append(out, j)
		} else if j.Status == JobStatusFailed && j.NextRetryAt != nil && !j.NextRetryAt.After(now) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (r *fakeJobRepository) MarkProcessing(ctx context.Context, ids []string) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*Job
	for _, id := range ids {
		j, ok := r.jobs[id]
		if !ok || (j.Status != JobStatusPending && j.Status != JobStatusFailed) {
			continue
		}
		j.Status = JobStatusProcessing
		claimed = append(claimed, j)
	}
	return claimed, nil
}

func (r *fakeJobRepository) Update(ctx context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeJobRepository) RequeueStale(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var requeued int64
	for _, j := range r.jobs {
		if j.Status == JobStatusProcessing && j.UpdatedAt.Before(before) {
			j.Status = JobStatusPending
			j.UpdatedAt = time.Now()
			requeued++
		}
	}
	return requeued, nil
}

func (r *fakeJobRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeJobRepository) get(id string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

type recordingHandler struct {
	mu        sync.Mutex
	handled   []string
	exhausted []string
	err       error
}

func (h *recordingHandler) Handle(ctx context.Context, job *Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, job.ID)
	return h.err
}

func (h *recordingHandler) OnExhausted(ctx context.Context, job *Job, lastErr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exhausted = append(h.exhausted, job.ID)
}

func (h *recordingHandler) handledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestWorker(t *testing.T) {
	ctx := context.Background()

	t.Run("processes a pending job to completion", func(t *testing.T) {
		repo := newFakeJobRepository()
		handler := &recordingHandler{}
		worker := NewWorker(repo, WorkerConfig{BatchSize: 10, PollInterval: time.Second}, zap.NewNop())
		worker.Register(StagePopulate, handler)

		job := NewBatchJob(StagePopulate, uuid.New())
		require.NoError(t, repo.Enqueue(ctx, job))

		worker.poll(ctx)

		assert.Equal(t, 1, handler.handledCount())
		assert.Equal(t, JobStatusCompleted, repo.get(job.ID).Status)
	})

	t.Run("enqueue deduplicates by deterministic id", func(t *testing.T) {
		repo := newFakeJobRepository()
		batchID := uuid.New()
		require.NoError(t, repo.Enqueue(ctx, NewBatchJob(StagePopulate, batchID)))
		require.NoError(t, repo.Enqueue(ctx, NewBatchJob(StagePopulate, batchID)))

		runnable, err := repo.FindRunnable(ctx, time.Now(), 10)
		require.NoError(t, err)
		assert.Len(t, runnable, 1)
	})

	t.Run("failing job is scheduled for retry, not dead", func(t *testing.T) {
		repo := newFakeJobRepository()
		handler := &recordingHandler{err: errors.New("ledger unavailable")}
		worker := NewWorker(repo, WorkerConfig{BatchSize: 10, PollInterval: time.Second}, zap.NewNop())
		worker.Register(StageRefreshTotals, handler)

		job := NewBatchJob(StageRefreshTotals, uuid.New())
		require.NoError(t, repo.Enqueue(ctx, job))

		worker.poll(ctx)

		stored := repo.get(job.ID)
		assert.Equal(t, JobStatusFailed, stored.Status)
		assert.Equal(t, 1, stored.RetryCount)
		assert.NotNil(t, stored.NextRetryAt)
		assert.Empty(t, handler.exhausted)
	})

	t.Run("exhausted job notifies the handler once dead", func(t *testing.T) {
		repo := newFakeJobRepository()
		handler := &recordingHandler{err: errors.New("ledger unavailable")}
		worker := NewWorker(repo, WorkerConfig{BatchSize: 10, PollInterval: time.Second}, zap.NewNop())
		worker.Register(StageRefreshTotals, handler)

		job := NewBatchJob(StageRefreshTotals, uuid.New())
		job.MaxRetries = 1
		require.NoError(t, repo.Enqueue(ctx, job))

		worker.poll(ctx)

		stored := repo.get(job.ID)
		assert.True(t, stored.IsDead())
		assert.Equal(t, []string{job.ID}, handler.exhausted)
	})

	t.Run("job orphaned in processing is requeued and run", func(t *testing.T) {
		repo := newFakeJobRepository()
		handler := &recordingHandler{}
		worker := NewWorker(repo, WorkerConfig{BatchSize: 10, PollInterval: time.Second, StaleAfter: time.Minute}, zap.NewNop())
		worker.Register(StageProcess, handler)

		// A worker died mid-job: the row is stuck in processing with a
		// stale touch time.
		unitID := uuid.New()
		job := NewUnitJob(StageProcess, uuid.New(), unitID)
		require.NoError(t, repo.Enqueue(ctx, job))
		stored := repo.get(job.ID)
		stored.Status = JobStatusProcessing
		stored.UpdatedAt = time.Now().Add(-2 * time.Minute)

		worker.poll(ctx)

		assert.Equal(t, 1, handler.handledCount())
		assert.Equal(t, JobStatusCompleted, repo.get(job.ID).Status)
	})

	t.Run("recently claimed job is left with its worker", func(t *testing.T) {
		repo := newFakeJobRepository()
		handler := &recordingHandler{}
		worker := NewWorker(repo, WorkerConfig{BatchSize: 10, PollInterval: time.Second, StaleAfter: time.Minute}, zap.NewNop())
		worker.Register(StageProcess, handler)

		job := NewUnitJob(StageProcess, uuid.New(), uuid.New())
		require.NoError(t, repo.Enqueue(ctx, job))
		stored := repo.get(job.ID)
		stored.Status = JobStatusProcessing
		stored.UpdatedAt = time.Now()

		worker.poll(ctx)

		assert.Equal(t, 0, handler.handledCount())
		assert.Equal(t, JobStatusProcessing, repo.get(job.ID).Status)
	})

	t.Run("unregistered stage fails the job", func(t *testing.T) {
		repo := newFakeJobRepository()
		worker := NewWorker(repo, WorkerConfig{BatchSize: 10, PollInterval: time.Second}, zap.NewNop())

		job := NewBatchJob(StagePrepare, uuid.New())
		require.NoError(t, repo.Enqueue(ctx, job))

		worker.poll(ctx)

		stored := repo.get(job.ID)
		assert.Equal(t, JobStatusFailed, stored.Status)
		assert.Contains(t, stored.LastError, "no handler registered")
	})
}
