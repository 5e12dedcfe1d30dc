package billing

import (
	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// ChargeVersion is a time-bounded set of charging terms for a licence.
// Read-only input to the engine: it is created and mutated by a separate
// charge version workflow, never here.
type ChargeVersion struct {
	ID       uuid.UUID
	Licence  Licence
	Validity valueobject.DateRange
	Elements []ChargeElement

	// IncludeInSupplementary marks the charge version for pickup by
	// supplementary runs.
	IncludeInSupplementary bool

	// IsTwoPartTariff indicates a section 127 two-part tariff agreement
	// applies somewhere in the charge version's life.
	IsTwoPartTariff bool
}

// ChargePeriod computes the period this charge version is chargeable within
// the given financial year: the intersection of licence validity, the
// financial year, and the charge version's own validity. The second return
// value is false when there is no overlap, which excludes the charge
// version from the year without error.
func (cv *ChargeVersion) ChargePeriod(fy valueobject.FinancialYear) (valueobject.DateRange, bool) {
	period, ok := cv.Licence.Validity.Intersection(fy.Range())
	if !ok {
		return valueobject.DateRange{}, false
	}
	return period.Intersection(cv.Validity)
}
