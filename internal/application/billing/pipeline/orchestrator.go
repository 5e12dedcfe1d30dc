// Package pipeline wires the five billing stages onto the durable job
// queue: populate, process, prepare, create-charge and refresh-totals.
// Stage n+1 for a batch never starts before every stage-n job reports a
// terminal status; the gates read persisted entity counts, not in-memory
// state, so they hold across worker restarts.
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	appbilling "github.com/wrls/billing/internal/application/billing"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/infrastructure/metrics"
	"github.com/wrls/billing/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// refreshMaxRetries is larger than the default because a deferred ledger
// summary retries through the same budget as real failures.
const refreshMaxRetries = 10

// Orchestrator owns the stage handlers and schedules the entry stage.
type Orchestrator struct {
	jobs    queue.JobRepository
	batches billing.BatchRepository
	logger  *zap.Logger

	populate     *PopulateHandler
	process      *ProcessHandler
	prepare      *PrepareHandler
	createCharge *CreateChargeHandler
	refresh      *RefreshHandler
}

// NewOrchestrator builds the stage handlers around the application
// services.
func NewOrchestrator(
	jobs queue.JobRepository,
	batches billing.BatchRepository,
	years billing.ChargeVersionYearRepository,
	transactions billing.TransactionRepository,
	populator *appbilling.Populator,
	processor *appbilling.ChargeProcessor,
	supplementary *appbilling.SupplementaryService,
	refresher *appbilling.RefreshService,
	gateway billing.ChargeModuleGateway,
	logger *zap.Logger,
) *Orchestrator {
	o := &Orchestrator{
		jobs:    jobs,
		batches: batches,
		logger:  logger,
	}
	o.populate = &PopulateHandler{jobs: jobs, batches: batches, populator: populator, logger: logger}
	o.process = &ProcessHandler{jobs: jobs, batches: batches, years: years, processor: processor, logger: logger}
	o.prepare = &PrepareHandler{jobs: jobs, batches: batches, transactions: transactions, supplementary: supplementary, logger: logger}
	o.createCharge = &CreateChargeHandler{jobs: jobs, batches: batches, transactions: transactions, gateway: gateway, logger: logger}
	o.refresh = &RefreshHandler{batches: batches, refresher: refresher, logger: logger}
	return o
}

// Register binds every stage handler onto the worker.
func (o *Orchestrator) Register(worker *queue.Worker) {
	worker.Register(queue.StagePopulate, o.populate)
	worker.Register(queue.StageProcess, o.process)
	worker.Register(queue.StagePrepare, o.prepare)
	worker.Register(queue.StageCreateCharge, o.createCharge)
	worker.Register(queue.StageRefreshTotals, o.refresh)
}

// SchedulePopulate enqueues the entry stage for a batch.
func (o *Orchestrator) SchedulePopulate(ctx context.Context, batchID uuid.UUID) error {
	return o.jobs.Enqueue(ctx, queue.NewBatchJob(queue.StagePopulate, batchID))
}

var _ appbilling.PipelineScheduler = (*Orchestrator)(nil)

// failBatch moves a batch to error with the stage's code. Terminal
// batches are left alone so a late dead letter cannot clobber a result;
// the conditional update extends that guarantee to batches that turn
// terminal between the read and the write.
func failBatch(ctx context.Context, batches billing.BatchRepository, batchID uuid.UUID, code billing.BatchErrorCode, logger *zap.Logger) {
	batch, err := batches.FindByID(ctx, batchID)
	if err != nil {
		logger.Error("failed to load batch for error transition",
			zap.String("batch_id", batchID.String()), zap.Error(err))
		return
	}
	if batch.Status.IsTerminal() {
		return
	}
	from := batch.Status
	if err := batch.MarkError(code); err != nil {
		logger.Error("failed to mark batch errored",
			zap.String("batch_id", batchID.String()), zap.Error(err))
		return
	}
	if err := batches.Update(ctx, batch, from); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			logger.Warn("batch already moved on, keeping stored status",
				zap.String("batch_id", batchID.String()),
				zap.String("error_code", string(code)))
			return
		}
		logger.Error("failed to persist batch error",
			zap.String("batch_id", batchID.String()), zap.Error(err))
	}
}

// finishBatch persists a terminal transition out of processing. Losing
// the conditional update means another worker finished or failed the
// batch first; that result stands and this job completes quietly.
func finishBatch(ctx context.Context, batches billing.BatchRepository, batch *billing.Batch, logger *zap.Logger) error {
	if err := batches.Update(ctx, batch, billing.BatchStatusProcessing); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			logger.Warn("batch already moved on, keeping stored status",
				zap.String("batch_id", batch.ID.String()),
				zap.String("attempted", string(batch.Status)))
			return nil
		}
		return err
	}
	metrics.RecordBatchFinished(string(batch.Type), string(batch.Status))
	return nil
}
