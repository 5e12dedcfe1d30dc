package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// PipelineScheduler enqueues the first pipeline stage for a batch. The
// job pipeline implements it; the service only needs the entry point.
type PipelineScheduler interface {
	SchedulePopulate(ctx context.Context, batchID uuid.UUID) error
}

// CreateBatchInput carries the request to start a billing run.
type CreateBatchInput struct {
	Region    billing.Region
	Type      billing.BatchType
	Season    billing.Season
	StartYear int
	EndYear   int
}

// BatchSummary is a batch with its aggregate child-entity counts.
type BatchSummary struct {
	Batch        *billing.Batch
	UnitCounts   map[billing.ChargeVersionYearStatus]int64
	TxCounts     map[billing.TransactionStatus]int64
	InvoiceCount int
}

// BatchService drives the batch lifecycle: creation, approval, sending
// and deletion. Everything between creation and approval runs through the
// job pipeline.
type BatchService struct {
	batches      billing.BatchRepository
	years        billing.ChargeVersionYearRepository
	invoices     billing.InvoiceRepository
	transactions billing.TransactionRepository
	gateway      billing.ChargeModuleGateway
	scheduler    PipelineScheduler
	logger       *zap.Logger
}

// NewBatchService creates a BatchService.
func NewBatchService(
	batches billing.BatchRepository,
	years billing.ChargeVersionYearRepository,
	invoices billing.InvoiceRepository,
	transactions billing.TransactionRepository,
	gateway billing.ChargeModuleGateway,
	scheduler PipelineScheduler,
	logger *zap.Logger,
) *BatchService {
	return &BatchService{
		batches:      batches,
		years:        years,
		invoices:     invoices,
		transactions: transactions,
		gateway:      gateway,
		scheduler:    scheduler,
		logger:       logger,
	}
}

// Create starts a billing run: opens the ledger bill run, persists the
// batch in processing status and schedules the populate stage. A region
// with a run still in flight is rejected.
func (s *BatchService) Create(ctx context.Context, input CreateBatchInput) (*billing.Batch, error) {
	live, err := s.batches.FindLiveByRegion(ctx, input.Region.ID)
	if err != nil {
		return nil, fmt.Errorf("check live batches for region %s: %w", input.Region.ID, err)
	}
	if len(live) > 0 {
		return nil, fmt.Errorf("region %s already has batch %s in progress: %w", input.Region.ID, live[0].ID, shared.ErrAlreadyExists)
	}

	batch, err := billing.NewBatch(input.Region, input.Type, input.Season,
		valueobject.NewFinancialYear(input.StartYear), valueobject.NewFinancialYear(input.EndYear))
	if err != nil {
		return nil, err
	}

	billRunID, err := s.gateway.CreateBillRun(ctx, input.Region.Code)
	if err != nil {
		return nil, fmt.Errorf("create ledger bill run: %w", err)
	}
	batch.ExternalID = billRunID

	if err := s.batches.Save(ctx, batch); err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}
	if err := s.scheduler.SchedulePopulate(ctx, batch.ID); err != nil {
		return nil, fmt.Errorf("schedule populate for batch %s: %w", batch.ID, err)
	}

	s.logger.Info("Created batch",
		zap.String("batch_id", batch.ID.String()),
		zap.String("region", input.Region.Code),
		zap.String("type", string(input.Type)),
		zap.String("bill_run_id", billRunID))
	return batch, nil
}

// Get returns the batch with its aggregate counts.
func (s *BatchService) Get(ctx context.Context, id uuid.UUID) (*BatchSummary, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	unitCounts, err := s.years.CountByStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count units: %w", err)
	}
	txCounts, err := s.transactions.CountByStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	invoices, err := s.invoices.FindByBatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	return &BatchSummary{
		Batch:        batch,
		UnitCounts:   unitCounts,
		TxCounts:     txCounts,
		InvoiceCount: len(invoices),
	}, nil
}

// Approve approves the ledger bill run of a ready batch.
func (s *BatchService) Approve(ctx context.Context, id uuid.UUID) (*billing.Batch, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch.Status != billing.BatchStatusReady {
		return nil, fmt.Errorf("batch %s is %s, not ready: %w", id, batch.Status, shared.ErrInvalidState)
	}
	if err := s.gateway.Approve(ctx, batch.ExternalID); err != nil {
		return nil, fmt.Errorf("approve bill run %s: %w", batch.ExternalID, err)
	}
	return batch, nil
}

// Send sends the approved ledger bill run and finalises the batch.
func (s *BatchService) Send(ctx context.Context, id uuid.UUID) (*billing.Batch, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch.Status != billing.BatchStatusReady {
		return nil, fmt.Errorf("batch %s is %s, not ready: %w", id, batch.Status, shared.ErrInvalidState)
	}
	if err := s.gateway.Send(ctx, batch.ExternalID); err != nil {
		return nil, fmt.Errorf("send bill run %s: %w", batch.ExternalID, err)
	}
	if err := batch.MarkSent(); err != nil {
		return nil, err
	}
	if err := s.batches.Update(ctx, batch, billing.BatchStatusReady); err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}
	s.logger.Info("Sent batch", zap.String("batch_id", id.String()))
	return batch, nil
}

// Delete removes a batch. The ledger bill run is deleted first; if that
// fails the batch is marked errored rather than silently orphaning the
// ledger side.
func (s *BatchService) Delete(ctx context.Context, id uuid.UUID) error {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if batch.Status == billing.BatchStatusSent {
		return fmt.Errorf("batch %s has been sent and cannot be deleted: %w", id, shared.ErrInvalidState)
	}

	if batch.ExternalID != "" {
		if err := s.gateway.DeleteBillRun(ctx, batch.ExternalID); err != nil {
			s.logger.Error("Failed to delete ledger bill run",
				zap.String("batch_id", id.String()),
				zap.String("bill_run_id", batch.ExternalID),
				zap.Error(err))
			from := batch.Status
			if markErr := batch.MarkError(billing.ErrorFailedToDeleteBillRun); markErr == nil {
				_ = s.batches.Update(ctx, batch, from)
			}
			return fmt.Errorf("delete bill run %s: %w", batch.ExternalID, err)
		}
	}

	if err := s.invoices.DeleteByBatch(ctx, id); err != nil {
		return fmt.Errorf("delete invoices: %w", err)
	}
	if err := s.years.DeleteByBatch(ctx, id); err != nil {
		return fmt.Errorf("delete charge version years: %w", err)
	}
	if err := s.batches.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	s.logger.Info("Deleted batch", zap.String("batch_id", id.String()))
	return nil
}
