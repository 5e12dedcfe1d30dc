package billing

import "github.com/wrls/billing/internal/domain/shared/valueobject"

// Agreement codes recognised by the charging rules.
const (
	AgreementS126 = "S126" // abatement
	AgreementS127 = "S127" // two-part tariff
	AgreementS130 = "S130" // Canal & River Trust
)

// Agreement is a charging agreement applicable to a licence for a window
// of time. Consumed by the engine, owned by the reference-data service.
type Agreement struct {
	Code     string
	Validity valueobject.DateRange
}

// IsTwoPartTariff returns true for section 127 agreements.
func (a Agreement) IsTwoPartTariff() bool {
	return a.Code == AgreementS127
}

// IsCanalAndRiverTrust returns true for section 130 agreements.
func (a Agreement) IsCanalAndRiverTrust() bool {
	return a.Code == AgreementS130
}
