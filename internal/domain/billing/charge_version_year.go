package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// TransactionType distinguishes the charging pass a charge version year
// represents. A two-part tariff year carries a season; annual years do not.
type TransactionType string

const (
	TransactionTypeAnnual        TransactionType = "annual"
	TransactionTypeTwoPartTariff TransactionType = "two_part_tariff"
)

// ChargeVersionYearStatus tracks per-unit processing inside a batch run.
type ChargeVersionYearStatus string

const (
	ChargeVersionYearStatusProcessing ChargeVersionYearStatus = "processing"
	ChargeVersionYearStatusReady      ChargeVersionYearStatus = "ready"
	ChargeVersionYearStatusError      ChargeVersionYearStatus = "error"
)

// ChargeVersionYear is the unit of work of a batch run: one charge version
// billed for one financial year with one transaction type.
type ChargeVersionYear struct {
	shared.BaseEntity

	BatchID         uuid.UUID
	ChargeVersionID uuid.UUID
	FinancialYear   valueobject.FinancialYear
	TransactionType TransactionType
	IsSummer        bool
	Status          ChargeVersionYearStatus
}

// NewChargeVersionYear creates a processing unit for the batch. Summer can
// only be set on a two-part tariff year.
func NewChargeVersionYear(batchID, chargeVersionID uuid.UUID, fy valueobject.FinancialYear, txType TransactionType, isSummer bool) (*ChargeVersionYear, error) {
	if txType != TransactionTypeAnnual && txType != TransactionTypeTwoPartTariff {
		return nil, shared.NewValidationError("transactionType", fmt.Sprintf("unknown transaction type %q", txType))
	}
	if isSummer && txType != TransactionTypeTwoPartTariff {
		return nil, shared.NewValidationError("isSummer", "summer flag only applies to two-part tariff years")
	}
	return &ChargeVersionYear{
		BaseEntity:      shared.NewBaseEntity(),
		BatchID:         batchID,
		ChargeVersionID: chargeVersionID,
		FinancialYear:   fy,
		TransactionType: txType,
		IsSummer:        isSummer,
		Status:          ChargeVersionYearStatusProcessing,
	}, nil
}

// MarkReady records successful processing of the unit.
func (y *ChargeVersionYear) MarkReady() error {
	if y.Status != ChargeVersionYearStatusProcessing {
		return fmt.Errorf("charge version year %s: cannot mark ready from %s: %w", y.ID, y.Status, shared.ErrInvalidState)
	}
	y.Status = ChargeVersionYearStatusReady
	return nil
}

// MarkError records a failed unit. Terminal.
func (y *ChargeVersionYear) MarkError() error {
	if y.Status != ChargeVersionYearStatusProcessing {
		return fmt.Errorf("charge version year %s: cannot mark error from %s: %w", y.ID, y.Status, shared.ErrInvalidState)
	}
	y.Status = ChargeVersionYearStatusError
	return nil
}
