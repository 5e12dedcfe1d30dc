package billing

import (
	"fmt"

	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// BatchType identifies the kind of billing run.
type BatchType string

const (
	BatchTypeAnnual        BatchType = "annual"
	BatchTypeSupplementary BatchType = "supplementary"
	BatchTypeTwoPartTariff BatchType = "two_part_tariff"
)

// IsValid returns true if the batch type is one of the known kinds.
func (t BatchType) IsValid() bool {
	switch t {
	case BatchTypeAnnual, BatchTypeSupplementary, BatchTypeTwoPartTariff:
		return true
	}
	return false
}

// Season identifies the return season a two-part tariff run bills for.
type Season string

const (
	SeasonSummer        Season = "summer"
	SeasonWinterAllYear Season = "winter_all_year"
	SeasonAllYear       Season = "all_year"
)

// IsValid returns true if the season is one of the known values.
func (s Season) IsValid() bool {
	switch s {
	case SeasonSummer, SeasonWinterAllYear, SeasonAllYear:
		return true
	}
	return false
}

// BatchStatus is the lifecycle status of a billing batch.
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusReady      BatchStatus = "ready"
	BatchStatusSent       BatchStatus = "sent"
	BatchStatusEmpty      BatchStatus = "empty"
	BatchStatusError      BatchStatus = "error"
)

// IsTerminal returns true when no further transition is possible.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusSent, BatchStatusEmpty, BatchStatusError:
		return true
	}
	return false
}

// batchTransitions enumerates the legal status transitions. Recovery from
// error is by creating a new batch, never by resuming.
var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusProcessing: {BatchStatusEmpty, BatchStatusReady, BatchStatusError},
	BatchStatusReady:      {BatchStatusSent, BatchStatusError},
}

// BatchErrorCode records which pipeline stage failed a batch.
type BatchErrorCode string

const (
	ErrorFailedToPopulateChargeVersions BatchErrorCode = "failedToPopulateChargeVersions"
	ErrorFailedToProcessChargeVersions  BatchErrorCode = "failedToProcessChargeVersions"
	ErrorFailedToPrepareTransactions    BatchErrorCode = "failedToPrepareTransactions"
	ErrorFailedToCreateCharge           BatchErrorCode = "failedToCreateCharge"
	ErrorFailedToRefreshTotals          BatchErrorCode = "failedToGetBillRunSummary"
	ErrorFailedToDeleteBillRun          BatchErrorCode = "failedToDeleteBillRun"
)

// Batch is a billing run for a region across one or more financial years.
// It owns the invoices produced by the run and mirrors the bill run held by
// the external charge module via ExternalID.
type Batch struct {
	shared.BaseEntity
	Region    Region
	Type      BatchType
	Season    Season
	StartYear valueobject.FinancialYear
	EndYear   valueobject.FinancialYear
	Status    BatchStatus
	ErrorCode BatchErrorCode

	// ExternalID is the charge module bill run id, assigned at creation.
	ExternalID string

	// Totals copied from the charge module summary during reconciliation.
	NetTotal        int64
	InvoiceValue    int64
	CreditNoteValue int64
}

// Region identifies a charging region by id and single-letter charge
// module code.
type Region struct {
	ID   string
	Code string
	Name string
}

// NewBatch creates a batch in processing status. The year range is
// inclusive and must not be inverted.
func NewBatch(region Region, batchType BatchType, season Season, startYear, endYear valueobject.FinancialYear) (*Batch, error) {
	if region.ID == "" || region.Code == "" {
		return nil, shared.NewValidationError("region", "region id and code are required")
	}
	if !batchType.IsValid() {
		return nil, shared.NewValidationError("type", fmt.Sprintf("unknown batch type %q", batchType))
	}
	if !season.IsValid() {
		return nil, shared.NewValidationError("season", fmt.Sprintf("unknown season %q", season))
	}
	if startYear.YearEnding() > endYear.YearEnding() {
		return nil, shared.NewValidationError("startYear", "start year must not be after end year")
	}
	return &Batch{
		BaseEntity: shared.NewBaseEntity(),
		Region:     region,
		Type:       batchType,
		Season:     season,
		StartYear:  startYear,
		EndYear:    endYear,
		Status:     BatchStatusProcessing,
	}, nil
}

// FinancialYears returns the inclusive sequence of financial years the
// batch covers.
func (b *Batch) FinancialYears() []valueobject.FinancialYear {
	return valueobject.FinancialYearsBetween(b.StartYear.YearEnding(), b.EndYear.YearEnding())
}

// IsSupplementary returns true for supplementary runs.
func (b *Batch) IsSupplementary() bool {
	return b.Type == BatchTypeSupplementary
}

// IsSummer returns true when the batch bills the summer return season.
func (b *Batch) IsSummer() bool {
	return b.Season == SeasonSummer
}

// transition applies a validated status change.
func (b *Batch) transition(to BatchStatus) error {
	for _, allowed := range batchTransitions[b.Status] {
		if allowed == to {
			b.Status = to
			return nil
		}
	}
	return fmt.Errorf("batch %s: cannot transition from %s to %s: %w", b.ID, b.Status, to, shared.ErrInvalidState)
}

// MarkReady moves the batch to ready once no candidate transactions remain.
func (b *Batch) MarkReady() error {
	return b.transition(BatchStatusReady)
}

// MarkEmpty finalises a batch that produced no chargeable transactions.
func (b *Batch) MarkEmpty() error {
	return b.transition(BatchStatusEmpty)
}

// MarkSent finalises a batch after the charge module bill run is sent.
func (b *Batch) MarkSent() error {
	return b.transition(BatchStatusSent)
}

// MarkError moves the batch to error with the failing stage's code.
// The error code is set iff the status is error.
func (b *Batch) MarkError(code BatchErrorCode) error {
	if b.Status.IsTerminal() && b.Status != BatchStatusError {
		return fmt.Errorf("batch %s: cannot error from terminal status %s: %w", b.ID, b.Status, shared.ErrInvalidState)
	}
	b.Status = BatchStatusError
	b.ErrorCode = code
	return nil
}

// UpdateTotals copies summary totals reconciled from the charge module.
func (b *Batch) UpdateTotals(netTotal, invoiceValue, creditNoteValue int64) {
	b.NetTotal = netTotal
	b.InvoiceValue = invoiceValue
	b.CreditNoteValue = creditNoteValue
}
