package billing

import (
	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// Licence is the abstraction licence a charge version bills against.
// Read-only input to the engine; the licence registry owns it.
type Licence struct {
	ID            uuid.UUID
	LicenceNumber string
	Validity      valueobject.DateRange
	Region        Region

	// IsWaterUndertaker exempts the holder from compensation charges.
	IsWaterUndertaker bool
}
