package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
	"github.com/wrls/billing/internal/infrastructure/queue"
)

// Mock implementations

type mockJobRepository struct {
	mock.Mock
}

func (m *mockJobRepository) Enqueue(ctx context.Context, jobs ...*queue.Job) error {
	args := m.Called(ctx, jobs)
	return args.Error(0)
}

func (m *mockJobRepository) FindRunnable(ctx context.Context, now time.Time, limit int) ([]*queue.Job, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*queue.Job), args.Error(1)
}

func (m *mockJobRepository) MarkProcessing(ctx context.Context, ids []string) ([]*queue.Job, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*queue.Job), args.Error(1)
}

func (m *mockJobRepository) Update(ctx context.Context, job *queue.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *mockJobRepository) RequeueStale(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockJobRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockBatchRepository struct {
	mock.Mock
}

func (m *mockBatchRepository) Save(ctx context.Context, batch *billing.Batch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *mockBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Batch, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Batch), args.Error(1)
}

func (m *mockBatchRepository) Update(ctx context.Context, batch *billing.Batch, from billing.BatchStatus) error {
	args := m.Called(ctx, batch, from)
	return args.Error(0)
}

func (m *mockBatchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockBatchRepository) FindLiveByRegion(ctx context.Context, regionID string) ([]*billing.Batch, error) {
	args := m.Called(ctx, regionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Batch), args.Error(1)
}

func (m *mockBatchRepository) ExistsSentTwoPartTariff(ctx context.Context, regionID string, isSummer bool, fy valueobject.FinancialYear) (bool, error) {
	args := m.Called(ctx, regionID, isSummer, fy)
	return args.Bool(0), args.Error(1)
}

type mockChargeVersionRepository struct {
	mock.Mock
}

func (m *mockChargeVersionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.ChargeVersion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ChargeVersion), args.Error(1)
}

func (m *mockChargeVersionRepository) FindForBilling(ctx context.Context, regionID string, from, to valueobject.FinancialYear, supplementaryOnly bool) ([]*billing.ChargeVersion, error) {
	args := m.Called(ctx, regionID, from, to, supplementaryOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.ChargeVersion), args.Error(1)
}

func (m *mockChargeVersionRepository) FindAgreements(ctx context.Context, licenceID uuid.UUID, period valueobject.DateRange) ([]billing.Agreement, error) {
	args := m.Called(ctx, licenceID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Agreement), args.Error(1)
}

type mockChargeVersionYearRepository struct {
	mock.Mock
}

func (m *mockChargeVersionYearRepository) SaveAll(ctx context.Context, years []*billing.ChargeVersionYear) error {
	args := m.Called(ctx, years)
	return args.Error(0)
}

func (m *mockChargeVersionYearRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.ChargeVersionYear, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ChargeVersionYear), args.Error(1)
}

func (m *mockChargeVersionYearRepository) FindByBatch(ctx context.Context, batchID uuid.UUID) ([]*billing.ChargeVersionYear, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.ChargeVersionYear), args.Error(1)
}

func (m *mockChargeVersionYearRepository) Update(ctx context.Context, year *billing.ChargeVersionYear) error {
	args := m.Called(ctx, year)
	return args.Error(0)
}

func (m *mockChargeVersionYearRepository) CountByStatus(ctx context.Context, batchID uuid.UUID) (map[billing.ChargeVersionYearStatus]int64, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[billing.ChargeVersionYearStatus]int64), args.Error(1)
}

func (m *mockChargeVersionYearRepository) DeleteByBatch(ctx context.Context, batchID uuid.UUID) error {
	args := m.Called(ctx, batchID)
	return args.Error(0)
}

type mockTransactionRepository struct {
	mock.Mock
}

func (m *mockTransactionRepository) Save(ctx context.Context, invoiceLicenceID uuid.UUID, tx *billing.Transaction) error {
	args := m.Called(ctx, invoiceLicenceID, tx)
	return args.Error(0)
}

func (m *mockTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Transaction), args.Error(1)
}

func (m *mockTransactionRepository) Update(ctx context.Context, tx *billing.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockTransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockTransactionRepository) DeleteCandidatesByUnit(ctx context.Context, chargeVersionYearID uuid.UUID) error {
	args := m.Called(ctx, chargeVersionYearID)
	return args.Error(0)
}

func (m *mockTransactionRepository) FindLicenceTransaction(ctx context.Context, id uuid.UUID) (*billing.LicenceTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.LicenceTransaction), args.Error(1)
}

func (m *mockTransactionRepository) FindHistoryByLicence(ctx context.Context, licenceID uuid.UUID, from, to valueobject.FinancialYear) ([]*billing.LicenceTransaction, error) {
	args := m.Called(ctx, licenceID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.LicenceTransaction), args.Error(1)
}

func (m *mockTransactionRepository) FindByBatchAndStatus(ctx context.Context, batchID uuid.UUID, status billing.TransactionStatus) ([]*billing.LicenceTransaction, error) {
	args := m.Called(ctx, batchID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.LicenceTransaction), args.Error(1)
}

func (m *mockTransactionRepository) CountByStatus(ctx context.Context, batchID uuid.UUID) (map[billing.TransactionStatus]int64, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[billing.TransactionStatus]int64), args.Error(1)
}

type mockChargeModuleGateway struct {
	mock.Mock
}

func (m *mockChargeModuleGateway) CreateBillRun(ctx context.Context, regionCode string) (string, error) {
	args := m.Called(ctx, regionCode)
	return args.String(0), args.Error(1)
}

func (m *mockChargeModuleGateway) AddTransaction(ctx context.Context, billRunID string, tx *billing.LedgerTransactionRequest) (string, error) {
	args := m.Called(ctx, billRunID, tx)
	return args.String(0), args.Error(1)
}

func (m *mockChargeModuleGateway) Approve(ctx context.Context, billRunID string) error {
	args := m.Called(ctx, billRunID)
	return args.Error(0)
}

func (m *mockChargeModuleGateway) Send(ctx context.Context, billRunID string) error {
	args := m.Called(ctx, billRunID)
	return args.Error(0)
}

func (m *mockChargeModuleGateway) GetSummary(ctx context.Context, billRunID string) (*billing.BillRunSummary, error) {
	args := m.Called(ctx, billRunID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.BillRunSummary), args.Error(1)
}

func (m *mockChargeModuleGateway) GetInvoiceTransactions(ctx context.Context, billRunID, invoiceID string) ([]billing.LedgerTransaction, error) {
	args := m.Called(ctx, billRunID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.LedgerTransaction), args.Error(1)
}

func (m *mockChargeModuleGateway) DeleteBillRun(ctx context.Context, billRunID string) error {
	args := m.Called(ctx, billRunID)
	return args.Error(0)
}

type mockInvoiceRepository struct {
	mock.Mock
}

func (m *mockInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *mockInvoiceRepository) Update(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *mockInvoiceRepository) FindByBatch(ctx context.Context, batchID uuid.UUID) ([]*billing.Invoice, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepository) FindOrCreate(ctx context.Context, batchID uuid.UUID, accountID, accountNumber string, yearEnding int, address billing.InvoiceAddress) (*billing.Invoice, error) {
	args := m.Called(ctx, batchID, accountID, accountNumber, yearEnding, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepository) DeleteByBatch(ctx context.Context, batchID uuid.UUID) error {
	args := m.Called(ctx, batchID)
	return args.Error(0)
}

func (m *mockInvoiceRepository) DeleteEmptyByBatch(ctx context.Context, batchID uuid.UUID) error {
	args := m.Called(ctx, batchID)
	return args.Error(0)
}
