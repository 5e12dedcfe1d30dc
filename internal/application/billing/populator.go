package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// Populator expands a batch into its units of work: one charge version
// year per (charge version, financial year, transaction type) tuple the
// batch must bill.
type Populator struct {
	chargeVersions billing.ChargeVersionRepository
	batches        billing.BatchRepository
	years          billing.ChargeVersionYearRepository

	// naldSwitchOverDate is the legacy import cut-over. Charge periods
	// starting before it are billed winter/all-year regardless of their
	// actual return season.
	naldSwitchOverDate time.Time
	logger             *zap.Logger
}

// NewPopulator creates a Populator.
func NewPopulator(
	chargeVersions billing.ChargeVersionRepository,
	batches billing.BatchRepository,
	years billing.ChargeVersionYearRepository,
	naldSwitchOverDate time.Time,
	logger *zap.Logger,
) *Populator {
	return &Populator{
		chargeVersions:     chargeVersions,
		batches:            batches,
		years:              years,
		naldSwitchOverDate: naldSwitchOverDate,
		logger:             logger,
	}
}

// Populate determines and persists the charge version years of the batch.
// Returns the persisted units; an empty result means the batch has nothing
// to bill.
func (p *Populator) Populate(ctx context.Context, batch *billing.Batch) ([]*billing.ChargeVersionYear, error) {
	supplementaryOnly := batch.IsSupplementary()
	chargeVersions, err := p.chargeVersions.FindForBilling(ctx, batch.Region.ID, batch.StartYear, batch.EndYear, supplementaryOnly)
	if err != nil {
		return nil, fmt.Errorf("find charge versions for region %s: %w", batch.Region.ID, err)
	}

	var units []*billing.ChargeVersionYear
	for _, fy := range batch.FinancialYears() {
		for _, cv := range chargeVersions {
			chargePeriod, ok := cv.ChargePeriod(fy)
			if !ok {
				continue
			}
			emitted, err := p.unitsFor(ctx, batch, cv, fy, chargePeriod)
			if err != nil {
				return nil, err
			}
			units = append(units, emitted...)
		}
	}

	if len(units) > 0 {
		if err := p.years.SaveAll(ctx, units); err != nil {
			return nil, fmt.Errorf("persist charge version years: %w", err)
		}
	}
	p.logger.Info("Populated batch",
		zap.String("batch_id", batch.ID.String()),
		zap.String("batch_type", string(batch.Type)),
		zap.Int("units", len(units)))
	return units, nil
}

// unitsFor applies the batch-type rules for one charge version in one
// financial year.
func (p *Populator) unitsFor(ctx context.Context, batch *billing.Batch, cv *billing.ChargeVersion, fy valueobject.FinancialYear, chargePeriod valueobject.DateRange) ([]*billing.ChargeVersionYear, error) {
	switch batch.Type {
	case billing.BatchTypeAnnual:
		unit, err := billing.NewChargeVersionYear(batch.ID, cv.ID, fy, billing.TransactionTypeAnnual, false)
		if err != nil {
			return nil, err
		}
		return []*billing.ChargeVersionYear{unit}, nil

	case billing.BatchTypeSupplementary:
		// The repository pre-filters on the supplementary flag; the
		// guard stays for callers handing in unfiltered data.
		if !cv.IncludeInSupplementary {
			return nil, nil
		}
		annual, err := billing.NewChargeVersionYear(batch.ID, cv.ID, fy, billing.TransactionTypeAnnual, false)
		if err != nil {
			return nil, err
		}
		units := []*billing.ChargeVersionYear{annual}
		for _, isSummer := range []bool{true, false} {
			include, err := p.includeTwoPartTariffSeason(ctx, batch, cv, fy, chargePeriod, isSummer)
			if err != nil {
				return nil, err
			}
			if !include {
				continue
			}
			unit, err := billing.NewChargeVersionYear(batch.ID, cv.ID, fy, billing.TransactionTypeTwoPartTariff, isSummer)
			if err != nil {
				return nil, err
			}
			units = append(units, unit)
		}
		return units, nil

	case billing.BatchTypeTwoPartTariff:
		if !p.eligibleInSeason(cv, chargePeriod, batch.IsSummer()) {
			return nil, nil
		}
		unit, err := billing.NewChargeVersionYear(batch.ID, cv.ID, fy, billing.TransactionTypeTwoPartTariff, batch.IsSummer())
		if err != nil {
			return nil, err
		}
		return []*billing.ChargeVersionYear{unit}, nil
	}
	return nil, nil
}

// includeTwoPartTariffSeason gates a supplementary two-part tariff unit on
// a previously sent two-part tariff batch existing for the season, and on
// the charge version being eligible in it.
func (p *Populator) includeTwoPartTariffSeason(ctx context.Context, batch *billing.Batch, cv *billing.ChargeVersion, fy valueobject.FinancialYear, chargePeriod valueobject.DateRange, isSummer bool) (bool, error) {
	if !p.eligibleInSeason(cv, chargePeriod, isSummer) {
		return false, nil
	}
	sent, err := p.batches.ExistsSentTwoPartTariff(ctx, batch.Region.ID, isSummer, fy)
	if err != nil {
		return false, fmt.Errorf("check sent two-part tariff batches: %w", err)
	}
	return sent, nil
}

// eligibleInSeason reports whether the charge version can be billed a
// two-part tariff charge for the season. Charge periods starting before
// the cut-over date are always treated as winter/all-year.
func (p *Populator) eligibleInSeason(cv *billing.ChargeVersion, chargePeriod valueobject.DateRange, isSummer bool) bool {
	if !cv.IsTwoPartTariff {
		return false
	}
	if chargePeriod.Start().Before(p.naldSwitchOverDate) {
		return !isSummer
	}
	for _, element := range cv.Elements {
		if element.IsSummer() == isSummer {
			return true
		}
	}
	return false
}
