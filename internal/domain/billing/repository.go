package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// BatchRepository persists billing batches.
type BatchRepository interface {
	Save(ctx context.Context, batch *Batch) error
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// Update persists the batch only while its stored status is still
	// `from`, returning shared.ErrConcurrencyConflict otherwise. Every
	// writer states the status it read, so two workers racing the same
	// transition cannot overwrite each other's result.
	Update(ctx context.Context, batch *Batch, from BatchStatus) error

	Delete(ctx context.Context, id uuid.UUID) error

	// FindLiveByRegion returns batches in the region that are still in
	// flight (not sent, empty or errored). Used to prevent concurrent
	// runs against the same region.
	FindLiveByRegion(ctx context.Context, regionID string) ([]*Batch, error)

	// ExistsSentTwoPartTariff reports whether a two-part tariff batch for
	// the season and year has already been sent for the region.
	ExistsSentTwoPartTariff(ctx context.Context, regionID string, isSummer bool, fy valueobject.FinancialYear) (bool, error)
}

// ChargeVersionRepository reads charging reference data. The billing
// service never mutates charge versions.
type ChargeVersionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ChargeVersion, error)

	// FindForBilling returns the charge versions in a region whose
	// validity overlaps any of the financial years between from and to.
	// When supplementaryOnly is set, only licences flagged for
	// supplementary billing are returned.
	FindForBilling(ctx context.Context, regionID string, from, to valueobject.FinancialYear, supplementaryOnly bool) ([]*ChargeVersion, error)

	// FindAgreements returns the licence agreements overlapping the
	// given period.
	FindAgreements(ctx context.Context, licenceID uuid.UUID, period valueobject.DateRange) ([]Agreement, error)
}

// ChargeVersionYearRepository persists the per-unit processing records of
// a batch run.
type ChargeVersionYearRepository interface {
	SaveAll(ctx context.Context, years []*ChargeVersionYear) error
	FindByID(ctx context.Context, id uuid.UUID) (*ChargeVersionYear, error)
	FindByBatch(ctx context.Context, batchID uuid.UUID) ([]*ChargeVersionYear, error)
	Update(ctx context.Context, year *ChargeVersionYear) error
	CountByStatus(ctx context.Context, batchID uuid.UUID) (map[ChargeVersionYearStatus]int64, error)
	DeleteByBatch(ctx context.Context, batchID uuid.UUID) error
}

// InvoiceRepository persists invoices and their licences.
type InvoiceRepository interface {
	Save(ctx context.Context, invoice *Invoice) error
	Update(ctx context.Context, invoice *Invoice) error
	FindByBatch(ctx context.Context, batchID uuid.UUID) ([]*Invoice, error)

	// FindOrCreate returns the batch invoice for the account and year,
	// creating it when absent.
	FindOrCreate(ctx context.Context, batchID uuid.UUID, accountID, accountNumber string, yearEnding int, address InvoiceAddress) (*Invoice, error)

	DeleteByBatch(ctx context.Context, batchID uuid.UUID) error
	DeleteEmptyByBatch(ctx context.Context, batchID uuid.UUID) error
}

// TransactionRepository persists billing transactions.
type TransactionRepository interface {
	Save(ctx context.Context, invoiceLicenceID uuid.UUID, tx *Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	Update(ctx context.Context, tx *Transaction) error
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteCandidatesByUnit removes the candidate transactions a charge
	// version year persisted before an interrupted run, so reprocessing
	// the unit starts from a clean slate instead of doubling its rows.
	DeleteCandidatesByUnit(ctx context.Context, chargeVersionYearID uuid.UUID) error

	// FindLicenceTransaction returns one transaction joined with its
	// licence, account and year.
	FindLicenceTransaction(ctx context.Context, id uuid.UUID) (*LicenceTransaction, error)

	// FindHistoryByLicence returns the transactions of previously sent
	// batches for the licence, limited to the given financial years.
	FindHistoryByLicence(ctx context.Context, licenceID uuid.UUID, from, to valueobject.FinancialYear) ([]*LicenceTransaction, error)

	// FindByBatchAndStatus returns the batch's transactions in the given
	// status, joined with their licence.
	FindByBatchAndStatus(ctx context.Context, batchID uuid.UUID, status TransactionStatus) ([]*LicenceTransaction, error)

	CountByStatus(ctx context.Context, batchID uuid.UUID) (map[TransactionStatus]int64, error)
}

// LicenceTransaction pairs a transaction with the licence it bills, the
// shape most batch queries need.
type LicenceTransaction struct {
	Licence              Licence
	Transaction          *Transaction
	InvoiceAccountNumber string
	FinancialYearEnding  int

	// BatchID identifies the batch that created the transaction. For
	// historical rows this differs from the batch being processed.
	BatchID uuid.UUID
}

// Facts returns the charging facts of the pair.
func (lt *LicenceTransaction) Facts() ChargingFacts {
	return FactsFor(lt.Licence, lt.InvoiceAccountNumber, lt.Transaction)
}

// BillingVolumeRepository persists the measured volumes used by two-part
// tariff second-pass charging.
type BillingVolumeRepository interface {
	Save(ctx context.Context, volume *BillingVolume) error

	// FindApproved returns the approved volume for the element, year and
	// season, or shared.ErrNotFound when none has been through review.
	FindApproved(ctx context.Context, chargeElementID uuid.UUID, fy valueobject.FinancialYear, isSummer bool) (*BillingVolume, error)
}
