package billing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// BillingVolume is a measured or approved two-part tariff volume for one
// charge element in one financial year and season. Produced by returns
// matching, consumed by the engine when billing the second part.
type BillingVolume struct {
	shared.BaseEntity
	ChargeElementID  uuid.UUID
	FinancialYear    valueobject.FinancialYear
	IsSummer         bool
	CalculatedVolume decimal.Decimal
	Volume           decimal.Decimal
	IsApproved       bool

	// ErroredOnMatching flags the volume for manual review when returns
	// matching could not produce a reliable figure.
	ErroredOnMatching bool
}

// NewBillingVolume creates a volume record for a charge element season.
func NewBillingVolume(chargeElementID uuid.UUID, fy valueobject.FinancialYear, isSummer bool, volume decimal.Decimal) (*BillingVolume, error) {
	if chargeElementID == uuid.Nil {
		return nil, shared.NewValidationError("chargeElementId", "charge element id is required")
	}
	if volume.IsNegative() {
		return nil, shared.NewValidationError("volume", "volume cannot be negative")
	}
	return &BillingVolume{
		BaseEntity:       shared.NewBaseEntity(),
		ChargeElementID:  chargeElementID,
		FinancialYear:    fy,
		IsSummer:         isSummer,
		CalculatedVolume: volume,
		Volume:           volume,
	}, nil
}

// Approve fixes the billable volume after review.
func (v *BillingVolume) Approve(volume decimal.Decimal) error {
	if volume.IsNegative() {
		return shared.NewValidationError("volume", "volume cannot be negative")
	}
	v.Volume = volume
	v.IsApproved = true
	return nil
}
