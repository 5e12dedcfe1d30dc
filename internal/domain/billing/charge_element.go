package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// Source classifies where the water is abstracted from.
type Source string

const (
	SourceSupported   Source = "supported"
	SourceUnsupported Source = "unsupported"
	SourceTidal       Source = "tidal"
	SourceKielder     Source = "kielder"
)

// ChargeSeason classifies a charge element's seasonal factor.
type ChargeSeason string

const (
	ChargeSeasonSummer  ChargeSeason = "summer"
	ChargeSeasonWinter  ChargeSeason = "winter"
	ChargeSeasonAllYear ChargeSeason = "all year"
)

// Loss classifies how much abstracted water is lost.
type Loss string

const (
	LossHigh          Loss = "high"
	LossMedium        Loss = "medium"
	LossLow           Loss = "low"
	LossVeryLow       Loss = "very low"
	LossNonChargeable Loss = "non-chargeable"
)

// ChargeElement is one abstraction purpose/quantity entry within a charge
// version. Quantities are annual megalitres.
type ChargeElement struct {
	ID                 uuid.UUID
	AbstractionPeriod  valueobject.AbstractionPeriod
	AuthorisedQuantity decimal.Decimal
	BillableQuantity   *decimal.Decimal
	Source             Source
	Season             ChargeSeason
	Loss               Loss
	Description        string
	PurposeUse         string

	// TimeLimited bounds the element to part of the charge version's life.
	TimeLimited *valueobject.DateRange
}

// Volume returns the quantity to bill: the billable quantity when present,
// otherwise the authorised quantity, capped at MaxAnnualQuantity.
func (e *ChargeElement) Volume() decimal.Decimal {
	volume := e.AuthorisedQuantity
	if e.BillableQuantity != nil {
		volume = *e.BillableQuantity
	}
	if max := e.MaxAnnualQuantity(); volume.GreaterThan(max) {
		return max
	}
	return volume
}

// MaxAnnualQuantity returns the larger of the billable and authorised
// annual quantities.
func (e *ChargeElement) MaxAnnualQuantity() decimal.Decimal {
	if e.BillableQuantity != nil && e.BillableQuantity.GreaterThan(e.AuthorisedQuantity) {
		return *e.BillableQuantity
	}
	return e.AuthorisedQuantity
}

// IsSummer classifies the element by its abstraction period for two-part
// tariff volume matching.
func (e *ChargeElement) IsSummer() bool {
	return e.AbstractionPeriod.IsSummer()
}

// EffectivePeriod bounds the charge period by the element's time limit,
// if any. The second return value is false when the element does not apply
// at all within the charge period.
func (e *ChargeElement) EffectivePeriod(chargePeriod valueobject.DateRange) (valueobject.DateRange, bool) {
	if e.TimeLimited == nil {
		return chargePeriod, true
	}
	return chargePeriod.Intersection(*e.TimeLimited)
}

// DisplayDescription returns the element description, falling back to its
// purpose use name.
func (e *ChargeElement) DisplayDescription() string {
	if e.Description != "" {
		return e.Description
	}
	return e.PurposeUse
}
