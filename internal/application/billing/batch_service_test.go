package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

func batchServiceInput() CreateBatchInput {
	return CreateBatchInput{
		Region:    billing.Region{ID: "region-1", Code: "A", Name: "Anglian"},
		Type:      billing.BatchTypeAnnual,
		Season:    billing.SeasonAllYear,
		StartYear: 2022,
		EndYear:   2022,
	}
}

func TestBatchService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the ledger bill run and schedules populate", func(t *testing.T) {
		batches := new(mockBatchRepository)
		gateway := new(mockChargeModuleGateway)
		scheduler := new(mockPipelineScheduler)

		batches.On("FindLiveByRegion", ctx, "region-1").Return([]*billing.Batch{}, nil)
		gateway.On("CreateBillRun", ctx, "A").Return("bill-run-1", nil)
		batches.On("Save", ctx, mock.Anything).Return(nil)
		scheduler.On("SchedulePopulate", ctx, mock.Anything).Return(nil)

		service := NewBatchService(batches, new(mockChargeVersionYearRepository), new(mockInvoiceRepository), new(mockTransactionRepository), gateway, scheduler, zap.NewNop())
		batch, err := service.Create(ctx, batchServiceInput())
		require.NoError(t, err)
		assert.Equal(t, "bill-run-1", batch.ExternalID)
		assert.Equal(t, billing.BatchStatusProcessing, batch.Status)
		scheduler.AssertCalled(t, "SchedulePopulate", ctx, batch.ID)
	})

	t.Run("rejects a region with a run in flight", func(t *testing.T) {
		existing, err := billing.NewBatch(
			billing.Region{ID: "region-1", Code: "A", Name: "Anglian"},
			billing.BatchTypeAnnual, billing.SeasonAllYear,
			valueobject.NewFinancialYear(2022), valueobject.NewFinancialYear(2022))
		require.NoError(t, err)

		batches := new(mockBatchRepository)
		gateway := new(mockChargeModuleGateway)
		batches.On("FindLiveByRegion", ctx, "region-1").Return([]*billing.Batch{existing}, nil)

		service := NewBatchService(batches, new(mockChargeVersionYearRepository), new(mockInvoiceRepository), new(mockTransactionRepository), gateway, new(mockPipelineScheduler), zap.NewNop())
		_, err = service.Create(ctx, batchServiceInput())
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrAlreadyExists))
		gateway.AssertNotCalled(t, "CreateBillRun", mock.Anything, mock.Anything)
	})
}

func TestBatchService_Delete(t *testing.T) {
	ctx := context.Background()

	newBatch := func(t *testing.T) *billing.Batch {
		t.Helper()
		batch, err := billing.NewBatch(
			billing.Region{ID: "region-1", Code: "A", Name: "Anglian"},
			billing.BatchTypeAnnual, billing.SeasonAllYear,
			valueobject.NewFinancialYear(2022), valueobject.NewFinancialYear(2022))
		require.NoError(t, err)
		batch.ExternalID = "bill-run-1"
		return batch
	}

	t.Run("deletes the ledger bill run before local rows", func(t *testing.T) {
		batch := newBatch(t)

		batches := new(mockBatchRepository)
		years := new(mockChargeVersionYearRepository)
		invoices := new(mockInvoiceRepository)
		gateway := new(mockChargeModuleGateway)

		batches.On("FindByID", ctx, batch.ID).Return(batch, nil)
		gateway.On("DeleteBillRun", ctx, "bill-run-1").Return(nil)
		invoices.On("DeleteByBatch", ctx, batch.ID).Return(nil)
		years.On("DeleteByBatch", ctx, batch.ID).Return(nil)
		batches.On("Delete", ctx, batch.ID).Return(nil)

		service := NewBatchService(batches, years, invoices, new(mockTransactionRepository), gateway, new(mockPipelineScheduler), zap.NewNop())
		require.NoError(t, service.Delete(ctx, batch.ID))
		batches.AssertCalled(t, "Delete", ctx, batch.ID)
	})

	t.Run("ledger deletion failure errors the batch and keeps local rows", func(t *testing.T) {
		batch := newBatch(t)

		batches := new(mockBatchRepository)
		invoices := new(mockInvoiceRepository)
		gateway := new(mockChargeModuleGateway)

		batches.On("FindByID", ctx, batch.ID).Return(batch, nil)
		gateway.On("DeleteBillRun", ctx, "bill-run-1").Return(&billing.ServerError{StatusCode: 503, Message: "unavailable"})
		batches.On("Update", ctx, batch, billing.BatchStatusProcessing).Return(nil)

		service := NewBatchService(batches, new(mockChargeVersionYearRepository), invoices, new(mockTransactionRepository), gateway, new(mockPipelineScheduler), zap.NewNop())
		err := service.Delete(ctx, batch.ID)
		require.Error(t, err)
		assert.Equal(t, billing.BatchStatusError, batch.Status)
		assert.Equal(t, billing.ErrorFailedToDeleteBillRun, batch.ErrorCode)
		invoices.AssertNotCalled(t, "DeleteByBatch", mock.Anything, mock.Anything)
		batches.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("sent batches cannot be deleted", func(t *testing.T) {
		batch := newBatch(t)
		require.NoError(t, batch.MarkReady())
		require.NoError(t, batch.MarkSent())

		batches := new(mockBatchRepository)
		gateway := new(mockChargeModuleGateway)
		batches.On("FindByID", ctx, batch.ID).Return(batch, nil)

		service := NewBatchService(batches, new(mockChargeVersionYearRepository), new(mockInvoiceRepository), new(mockTransactionRepository), gateway, new(mockPipelineScheduler), zap.NewNop())
		err := service.Delete(ctx, batch.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
		gateway.AssertNotCalled(t, "DeleteBillRun", mock.Anything, mock.Anything)
	})
}
