package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// TransactionStatus is the lifecycle status of a billing transaction.
type TransactionStatus string

const (
	TransactionStatusCandidate     TransactionStatus = "candidate"
	TransactionStatusChargeCreated TransactionStatus = "charge_created"
	TransactionStatusApproved      TransactionStatus = "approved"
	TransactionStatusError         TransactionStatus = "error"
)

// transactionTransitions enumerates the legal status transitions.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusCandidate: {
		TransactionStatusChargeCreated,
		TransactionStatusApproved,
		TransactionStatusError,
	},
}

// CompensationChargeDescription is the fixed legal description carried by
// every compensation charge, overriding any element description.
const CompensationChargeDescription = "Compensation Charge calculated from all factors except Standard Unit Charge and Source (replaced by factors below) and excluding S127 Charge Element"

// maxDaysInYear bounds any day count used for charging.
const maxDaysInYear = 366

// CalculationFactors are the charge factors the charge module reports back
// for a transaction once it has calculated the monetary value.
type CalculationFactors struct {
	Source     float64
	Season     float64
	Loss       float64
	SUC        float64
	Abatement  float64
	S127       float64
	EIUC       float64
	EIUCSource float64
}

// Transaction is one charging line within an invoice licence. The charging
// attributes are immutable once created; only Status, ExternalID,
// calculation factors and the reconciliation flags mutate afterwards.
type Transaction struct {
	shared.BaseEntity

	// Charging attributes, fixed at creation.
	ChargePeriod                 valueobject.DateRange
	IsCredit                     bool
	Value                        int64
	BillableDays                 int
	AuthorisedDays               int
	Volume                       decimal.Decimal
	Description                  string
	IsCompensationCharge         bool
	IsTwoPartTariffSupplementary bool
	IsNewLicence                 bool
	Agreements                   []Agreement
	ChargeElement                ChargeElement

	// SourceTransactionID links a reversal to the historical transaction
	// it nets to zero with.
	SourceTransactionID *uuid.UUID

	// ChargeVersionYearID records which unit of work synthesized the
	// transaction. Nil for reversals and ledger-created rows.
	ChargeVersionYearID *uuid.UUID

	// Mutable after creation.
	Status     TransactionStatus
	ExternalID string
	Factors    CalculationFactors

	// Reconciliation flags copied from the charge module.
	IsDeMinimis     bool
	IsMinimumCharge bool

	// TwoPartTariffReview flags the transaction for manual review when no
	// billing volume could be matched.
	TwoPartTariffReview bool
}

// NewTransaction creates a candidate transaction, validating the charging
// attributes at construction.
func NewTransaction(chargePeriod valueobject.DateRange, element ChargeElement, billableDays, authorisedDays int) (*Transaction, error) {
	if chargePeriod.IsOpen() {
		return nil, shared.NewValidationError("chargePeriod", "charge period must be closed")
	}
	if err := validateDays("billableDays", billableDays); err != nil {
		return nil, err
	}
	if err := validateDays("authorisedDays", authorisedDays); err != nil {
		return nil, err
	}
	if billableDays > authorisedDays {
		return nil, shared.NewValidationError("billableDays", "billable days cannot exceed authorised days")
	}
	return &Transaction{
		BaseEntity:     shared.NewBaseEntity(),
		ChargePeriod:   chargePeriod,
		BillableDays:   billableDays,
		AuthorisedDays: authorisedDays,
		Volume:         element.Volume(),
		ChargeElement:  element,
		Status:         TransactionStatusCandidate,
	}, nil
}

func validateDays(field string, days int) error {
	if days < 0 || days > maxDaysInYear {
		return shared.NewValidationError(field, fmt.Sprintf("day count %d outside 0-%d", days, maxDaysInYear))
	}
	return nil
}

// NewLedgerCreatedTransaction mirrors a transaction the ledger created on
// its own, typically a minimum-charge top-up. It arrives already
// calculated, so it starts in charge_created rather than candidate.
func NewLedgerCreatedTransaction(ledgerTx LedgerTransaction) *Transaction {
	return &Transaction{
		BaseEntity:      shared.NewBaseEntity(),
		Value:           ledgerTx.ChargeValue,
		IsCredit:        ledgerTx.Credit,
		Description:     "Minimum Charge Calculation - raised under Schedule 23 of the Environment Act 1995",
		IsMinimumCharge: ledgerTx.MinimumCharge,
		IsDeMinimis:     ledgerTx.DeMinimis,
		Status:          TransactionStatusChargeCreated,
		ExternalID:      ledgerTx.ID,
		Factors:         ledgerTx.CalculationFactors,
	}
}

// AgreementCodes returns the codes of all agreements on the transaction.
func (t *Transaction) AgreementCodes() []string {
	codes := make([]string, len(t.Agreements))
	for i, a := range t.Agreements {
		codes[i] = a.Code
	}
	return codes
}

// HasTwoPartTariffAgreement returns true when a section 127 agreement
// applies.
func (t *Transaction) HasTwoPartTariffAgreement() bool {
	for _, a := range t.Agreements {
		if a.IsTwoPartTariff() {
			return true
		}
	}
	return false
}

// transition applies a validated status change.
func (t *Transaction) transition(to TransactionStatus) error {
	for _, allowed := range transactionTransitions[t.Status] {
		if allowed == to {
			t.Status = to
			return nil
		}
	}
	return fmt.Errorf("transaction %s: cannot transition from %s to %s: %w", t.ID, t.Status, to, shared.ErrInvalidState)
}

// MarkChargeCreated records the external id assigned by the charge module.
func (t *Transaction) MarkChargeCreated(externalID string) error {
	if externalID == "" {
		return shared.NewValidationError("externalId", "external id is required")
	}
	if err := t.transition(TransactionStatusChargeCreated); err != nil {
		return err
	}
	t.ExternalID = externalID
	return nil
}

// MarkApproved moves the transaction to approved.
func (t *Transaction) MarkApproved() error {
	return t.transition(TransactionStatusApproved)
}

// MarkError moves the transaction to error. The batch is unaffected;
// client-side rejections are local to the single transaction.
func (t *Transaction) MarkError() error {
	return t.transition(TransactionStatusError)
}

// FlagForReview marks a two-part tariff transaction whose billing volume
// could not be matched. Does not abort the unit of work.
func (t *Transaction) FlagForReview() {
	t.TwoPartTariffReview = true
}

// Reversal synthesises the mirror of a historical transaction for a
// supplementary run: credit/debit sign inverted, source pointing at the
// historical row, all other charging attributes copied verbatim so the
// pair nets to zero.
func (t *Transaction) Reversal() *Transaction {
	sourceID := t.ID
	agreements := make([]Agreement, len(t.Agreements))
	copy(agreements, t.Agreements)

	return &Transaction{
		BaseEntity:                   shared.NewBaseEntity(),
		ChargePeriod:                 t.ChargePeriod,
		IsCredit:                     !t.IsCredit,
		Value:                        -t.Value,
		BillableDays:                 t.BillableDays,
		AuthorisedDays:               t.AuthorisedDays,
		Volume:                       t.Volume,
		Description:                  t.Description,
		IsCompensationCharge:         t.IsCompensationCharge,
		IsTwoPartTariffSupplementary: t.IsTwoPartTariffSupplementary,
		IsNewLicence:                 t.IsNewLicence,
		Agreements:                   agreements,
		ChargeElement:                t.ChargeElement,
		SourceTransactionID:          &sourceID,
		Status:                       TransactionStatusCandidate,
	}
}

// StandardDescription builds the line description for a standard charge.
func StandardDescription(element ChargeElement) string {
	return element.DisplayDescription()
}

// TwoPartTariffDescription builds the line description for a two-part
// tariff charge. The first pass bills the authorised quantity, the second
// (supplementary) pass the measured quantity.
func TwoPartTariffDescription(element ChargeElement, isSecondPart bool) string {
	part := "First"
	if isSecondPart {
		part = "Second"
	}
	description := fmt.Sprintf("%s part %s charge", part, element.PurposeUse)
	if element.Description != "" {
		description = fmt.Sprintf("%s at %s", description, element.Description)
	}
	return description
}
