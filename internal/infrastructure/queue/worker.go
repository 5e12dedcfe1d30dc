package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wrls/billing/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Handler executes the work of one stage. A returned error is retried
// with backoff until the job's retry budget is exhausted.
type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

// ExhaustionHandler is implemented by handlers that need to act when a
// job dies, typically to move the owning batch to error.
type ExhaustionHandler interface {
	OnExhausted(ctx context.Context, job *Job, lastErr string)
}

// WorkerConfig holds configuration for the queue worker.
type WorkerConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration

	// StaleAfter is how long a job may sit in processing before it is
	// treated as orphaned by a dead worker and requeued. Must comfortably
	// exceed the longest handler run. Zero disables reclaiming.
	StaleAfter time.Duration

	// Concurrency caps simultaneous executions per stage. Stages absent
	// from the map run sequentially.
	Concurrency map[Stage]int
}

// DefaultWorkerConfig returns default configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  1 * time.Hour,
		StaleAfter:       15 * time.Minute,
		Concurrency: map[Stage]int{
			StageProcess:      8,
			StageCreateCharge: 4,
		},
	}
}

// Worker polls the job table and dispatches claimed jobs to the
// registered stage handlers.
type Worker struct {
	repo     JobRepository
	handlers map[Stage]Handler
	limiters map[Stage]chan struct{}
	config   WorkerConfig
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a queue worker.
func NewWorker(repo JobRepository, config WorkerConfig, logger *zap.Logger) *Worker {
	limiters := make(map[Stage]chan struct{}, len(config.Concurrency))
	for stage, n := range config.Concurrency {
		if n > 0 {
			limiters[stage] = make(chan struct{}, n)
		}
	}
	return &Worker{
		repo:     repo,
		handlers: make(map[Stage]Handler),
		limiters: limiters,
		config:   config,
		logger:   logger,
	}
}

// Register binds a handler to a stage. Must be called before Start.
func (w *Worker) Register(stage Stage, handler Handler) {
	w.handlers[stage] = handler
}

// Start starts the polling loops.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.pollLoop(ctx)

	if w.config.CleanupEnabled {
		w.wg.Add(1)
		go w.cleanupLoop(ctx)
	}

	w.logger.Info("queue worker started",
		zap.Int("batch_size", w.config.BatchSize),
		zap.Duration("poll_interval", w.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the worker, waiting for in-flight jobs.
func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("queue worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	w.reclaimStale(ctx)

	runnable, err := w.repo.FindRunnable(ctx, time.Now(), w.config.BatchSize)
	if err != nil {
		w.logger.Error("failed to find runnable jobs", zap.Error(err))
		return
	}
	if len(runnable) == 0 {
		return
	}

	ids := make([]string, len(runnable))
	for i, j := range runnable {
		ids[i] = j.ID
	}
	claimed, err := w.repo.MarkProcessing(ctx, ids)
	if err != nil {
		w.logger.Error("failed to claim jobs", zap.Error(err))
		return
	}

	for _, job := range claimed {
		w.dispatch(ctx, job)
	}
}

// reclaimStale returns jobs orphaned by a dead worker to the pending
// pool so their batch can make progress again.
func (w *Worker) reclaimStale(ctx context.Context) {
	if w.config.StaleAfter <= 0 {
		return
	}
	cutoff := time.Now().Add(-w.config.StaleAfter)
	requeued, err := w.repo.RequeueStale(ctx, cutoff)
	if err != nil {
		w.logger.Error("failed to requeue stale jobs", zap.Error(err))
		return
	}
	if requeued > 0 {
		w.logger.Warn("requeued jobs orphaned in processing",
			zap.Int64("requeued", requeued),
			zap.Time("cutoff", cutoff),
		)
	}
}

// dispatch runs the job, on its stage's semaphore if one is configured.
func (w *Worker) dispatch(ctx context.Context, job *Job) {
	limiter, limited := w.limiters[job.Stage]
	if !limited {
		w.runJob(ctx, job)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case limiter <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-limiter }()
		w.runJob(ctx, job)
	}()
}

func (w *Worker) runJob(ctx context.Context, job *Job) {
	handler, ok := w.handlers[job.Stage]
	if !ok {
		w.failJob(ctx, job, fmt.Sprintf("no handler registered for stage %s", job.Stage))
		return
	}

	start := time.Now()
	err := handler.Handle(ctx, job)
	if err != nil {
		metrics.RecordJob(string(job.Stage), metrics.ResultRetry, time.Since(start))
		w.logger.Warn("job failed",
			zap.String("job_id", job.ID),
			zap.String("stage", string(job.Stage)),
			zap.Int("retry_count", job.RetryCount),
			zap.Error(err),
		)
		w.failJob(ctx, job, err.Error())
		return
	}

	job.MarkCompleted()
	if err := w.repo.Update(ctx, job); err != nil {
		w.logger.Error("failed to mark job completed",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.RecordJob(string(job.Stage), metrics.ResultSuccess, time.Since(start))
	w.logger.Debug("job completed",
		zap.String("job_id", job.ID),
		zap.String("stage", string(job.Stage)),
	)
}

// failJob records the failure and, once the retry budget is exhausted,
// gives the handler its one chance to act on the dead job.
func (w *Worker) failJob(ctx context.Context, job *Job, errMsg string) {
	job.MarkFailed(errMsg)
	if err := w.repo.Update(ctx, job); err != nil {
		w.logger.Error("failed to update failed job",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if !job.IsDead() {
		return
	}

	metrics.RecordJob(string(job.Stage), metrics.ResultDead, 0)
	w.logger.Error("job moved to dead letter",
		zap.String("job_id", job.ID),
		zap.String("stage", string(job.Stage)),
		zap.String("last_error", job.LastError),
	)
	if handler, ok := w.handlers[job.Stage].(ExhaustionHandler); ok {
		handler.OnExhausted(ctx, job, job.LastError)
	}
}

func (w *Worker) cleanupLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-w.config.CleanupRetention)
	deleted, err := w.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Error("failed to clean up old jobs", zap.Error(err))
		return
	}
	if deleted > 0 {
		w.logger.Info("cleaned up completed jobs",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
