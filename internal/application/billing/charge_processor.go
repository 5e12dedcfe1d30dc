package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// ChargeProcessor turns one (batch, financial year, charge version) unit
// of work into an invoice, invoice licence and transaction graph.
type ChargeProcessor struct {
	chargeVersions billing.ChargeVersionRepository
	invoices       billing.InvoiceRepository
	transactions   billing.TransactionRepository
	billingVolumes billing.BillingVolumeRepository
	referenceData  ReferenceDataService
	logger         *zap.Logger
}

// NewChargeProcessor creates a ChargeProcessor.
func NewChargeProcessor(
	chargeVersions billing.ChargeVersionRepository,
	invoices billing.InvoiceRepository,
	transactions billing.TransactionRepository,
	billingVolumes billing.BillingVolumeRepository,
	referenceData ReferenceDataService,
	logger *zap.Logger,
) *ChargeProcessor {
	return &ChargeProcessor{
		chargeVersions: chargeVersions,
		invoices:       invoices,
		transactions:   transactions,
		billingVolumes: billingVolumes,
		referenceData:  referenceData,
		logger:         logger,
	}
}

// effectivePeriod is a sub-range of the charge period over which the
// invoice account and the set of live agreements are both constant.
type effectivePeriod struct {
	rng        valueobject.DateRange
	account    InvoiceAccount
	agreements []billing.Agreement
}

// ProcessUnit synthesizes and persists the billing rows for one charge
// version year. It returns the number of candidate transactions created.
// A missing charge version aborts the unit; a charge version with no
// chargeable overlap in the year produces zero rows without error.
// Candidates left behind by an interrupted run of the same unit are
// cleared first, so a redelivered job rebuilds the rows instead of
// doubling them.
func (p *ChargeProcessor) ProcessUnit(ctx context.Context, batch *billing.Batch, year *billing.ChargeVersionYear) (int, error) {
	if err := p.transactions.DeleteCandidatesByUnit(ctx, year.ID); err != nil {
		return 0, fmt.Errorf("clear candidates of unit %s: %w", year.ID, err)
	}

	cv, err := p.chargeVersions.FindByID(ctx, year.ChargeVersionID)
	if err != nil {
		return 0, fmt.Errorf("load charge version %s: %w", year.ChargeVersionID, err)
	}

	chargePeriod, ok := cv.ChargePeriod(year.FinancialYear)
	if !ok {
		p.logger.Debug("Charge version outside financial year, skipping",
			zap.String("charge_version_id", cv.ID.String()),
			zap.Int("year_ending", year.FinancialYear.YearEnding()))
		return 0, nil
	}

	history, err := p.referenceData.ChargingHistory(ctx, cv.Licence.LicenceNumber, chargePeriod)
	if err != nil {
		return 0, fmt.Errorf("charging history for licence %s: %w", cv.Licence.LicenceNumber, err)
	}

	periods := p.effectivePeriods(chargePeriod, history)

	created := 0
	for _, ep := range periods {
		txs, err := p.buildTransactions(ctx, cv, year, ep)
		if err != nil {
			return created, err
		}
		if len(txs) == 0 {
			continue
		}

		invoice, err := p.invoices.FindOrCreate(ctx, year.BatchID, ep.account.AccountID, ep.account.AccountNumber, year.FinancialYear.YearEnding(), ep.account.Address)
		if err != nil {
			return created, fmt.Errorf("invoice for account %s: %w", ep.account.AccountNumber, err)
		}
		il := invoice.GetInvoiceLicence(cv.Licence)
		if err := p.invoices.Update(ctx, invoice); err != nil {
			return created, fmt.Errorf("persist invoice %s: %w", invoice.ID, err)
		}
		for _, tx := range txs {
			il.AddTransaction(tx)
			if err := p.transactions.Save(ctx, il.ID, tx); err != nil {
				return created, fmt.Errorf("persist transaction: %w", err)
			}
			created++
		}
	}

	p.logger.Info("Processed charge version year",
		zap.String("batch_id", batch.ID.String()),
		zap.String("charge_version_id", cv.ID.String()),
		zap.Int("year_ending", year.FinancialYear.YearEnding()),
		zap.Int("transactions", created))
	return created, nil
}

// effectivePeriods splits the charge period by licence holder, then
// invoice account, then each distinct agreement code. Ranges with no
// holder or no account cannot be invoiced and are dropped after the
// split; they still bound their neighbours.
func (p *ChargeProcessor) effectivePeriods(chargePeriod valueobject.DateRange, history *ChargingHistory) []effectivePeriod {
	holderSlices := SplitByHistory(chargePeriod, history.Holders, func(a, b LicenceHolder) bool {
		return a.CompanyID == b.CompanyID
	})

	var periods []effectivePeriod
	for _, hs := range holderSlices {
		if hs.Value == nil {
			continue
		}
		accountSlices := SplitByHistory(hs.Range, history.Accounts, func(a, b InvoiceAccount) bool {
			return a.AccountID == b.AccountID
		})
		for _, as := range accountSlices {
			if as.Value == nil {
				continue
			}
			periods = append(periods, effectivePeriod{rng: as.Range, account: *as.Value})
		}
	}

	for _, code := range distinctAgreementCodes(history.Agreements) {
		var segments []Segment[billing.Agreement]
		for _, a := range history.Agreements {
			if a.Code == code {
				segments = append(segments, Segment[billing.Agreement]{Validity: a.Validity, Value: a})
			}
		}
		var next []effectivePeriod
		for _, ep := range periods {
			slices := SplitByHistory(ep.rng, segments, func(a, b billing.Agreement) bool {
				return a.Code == b.Code
			})
			for _, s := range slices {
				split := effectivePeriod{rng: s.Range, account: ep.account, agreements: ep.agreements}
				if s.Value != nil {
					split.agreements = append(append([]billing.Agreement{}, ep.agreements...), *s.Value)
				}
				next = append(next, split)
			}
		}
		periods = next
	}
	return periods
}

func distinctAgreementCodes(agreements []billing.Agreement) []string {
	seen := map[string]bool{}
	var codes []string
	for _, a := range agreements {
		if !seen[a.Code] {
			seen[a.Code] = true
			codes = append(codes, a.Code)
		}
	}
	return codes
}

// buildTransactions synthesizes the transactions of one effective period.
func (p *ChargeProcessor) buildTransactions(ctx context.Context, cv *billing.ChargeVersion, year *billing.ChargeVersionYear, ep effectivePeriod) ([]*billing.Transaction, error) {
	var out []*billing.Transaction
	for i := range cv.Elements {
		element := cv.Elements[i]
		elementPeriod, ok := element.EffectivePeriod(ep.rng)
		if !ok {
			continue
		}
		billableDays := element.AbstractionPeriod.BillableDays(elementPeriod)
		if billableDays == 0 {
			continue
		}
		authorisedDays := element.AbstractionPeriod.AuthorisedDays(year.FinancialYear)

		switch year.TransactionType {
		case billing.TransactionTypeAnnual:
			txs, err := p.annualTransactions(cv, year, ep, element, elementPeriod, billableDays, authorisedDays)
			if err != nil {
				return nil, err
			}
			out = append(out, txs...)
		case billing.TransactionTypeTwoPartTariff:
			tx, err := p.twoPartTariffTransaction(ctx, cv, year, ep, element, elementPeriod, billableDays, authorisedDays)
			if err != nil {
				return nil, err
			}
			if tx != nil {
				out = append(out, tx)
			}
		}
	}
	return out, nil
}

// annualTransactions builds the standard charge and, for non water
// undertakers, its compensation charge twin.
func (p *ChargeProcessor) annualTransactions(cv *billing.ChargeVersion, year *billing.ChargeVersionYear, ep effectivePeriod, element billing.ChargeElement, elementPeriod valueobject.DateRange, billableDays, authorisedDays int) ([]*billing.Transaction, error) {
	standard, err := p.newTransaction(cv, year, ep, element, elementPeriod, billableDays, authorisedDays)
	if err != nil {
		return nil, err
	}
	if hasTwoPartTariffAgreement(ep.agreements) && cv.IsTwoPartTariff {
		standard.Description = billing.TwoPartTariffDescription(element, false)
	} else {
		standard.Description = billing.StandardDescription(element)
	}

	out := []*billing.Transaction{standard}
	if !cv.Licence.IsWaterUndertaker {
		compensation, err := p.newTransaction(cv, year, ep, element, elementPeriod, billableDays, authorisedDays)
		if err != nil {
			return nil, err
		}
		compensation.IsCompensationCharge = true
		compensation.Description = billing.CompensationChargeDescription
		out = append(out, compensation)
	}
	return out, nil
}

// twoPartTariffTransaction builds the measured second-pass charge for an
// element in the unit's season. A missing approved volume flags the
// transaction for review instead of aborting the unit.
func (p *ChargeProcessor) twoPartTariffTransaction(ctx context.Context, cv *billing.ChargeVersion, year *billing.ChargeVersionYear, ep effectivePeriod, element billing.ChargeElement, elementPeriod valueobject.DateRange, billableDays, authorisedDays int) (*billing.Transaction, error) {
	if element.IsSummer() != year.IsSummer {
		return nil, nil
	}
	tx, err := p.newTransaction(cv, year, ep, element, elementPeriod, billableDays, authorisedDays)
	if err != nil {
		return nil, err
	}
	tx.IsTwoPartTariffSupplementary = true
	tx.Description = billing.TwoPartTariffDescription(element, true)

	volume, err := p.billingVolumes.FindApproved(ctx, element.ID, year.FinancialYear, year.IsSummer)
	switch {
	case err == nil:
		tx.Volume = volume.Volume
	case errors.Is(err, shared.ErrNotFound):
		tx.FlagForReview()
		p.logger.Warn("No approved billing volume, flagging for review",
			zap.String("charge_element_id", element.ID.String()),
			zap.Int("year_ending", year.FinancialYear.YearEnding()),
			zap.Bool("is_summer", year.IsSummer))
	default:
		return nil, fmt.Errorf("billing volume for element %s: %w", element.ID, err)
	}
	return tx, nil
}

func (p *ChargeProcessor) newTransaction(cv *billing.ChargeVersion, year *billing.ChargeVersionYear, ep effectivePeriod, element billing.ChargeElement, elementPeriod valueobject.DateRange, billableDays, authorisedDays int) (*billing.Transaction, error) {
	tx, err := billing.NewTransaction(elementPeriod, element, billableDays, authorisedDays)
	if err != nil {
		return nil, err
	}
	unitID := year.ID
	tx.ChargeVersionYearID = &unitID
	tx.Agreements = append([]billing.Agreement{}, ep.agreements...)
	tx.IsNewLicence = cv.Licence.Validity.Start().After(startOfYear(elementPeriod))
	return tx, nil
}

func hasTwoPartTariffAgreement(agreements []billing.Agreement) bool {
	for _, a := range agreements {
		if a.IsTwoPartTariff() {
			return true
		}
	}
	return false
}

// startOfYear returns 1 April of the financial year the period falls in.
func startOfYear(period valueobject.DateRange) time.Time {
	return valueobject.FinancialYearOf(period.Start()).Start()
}
