package billing

import (
	"context"

	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// LicenceHolder is the company holding a licence over a window of time.
type LicenceHolder struct {
	CompanyID   string
	CompanyName string
}

// InvoiceAccount is the billing account responsible for a licence over a
// window of time, with the contact snapshot invoices are addressed to.
type InvoiceAccount struct {
	AccountID     string
	AccountNumber string
	Address       billing.InvoiceAddress
}

// ChargingHistory is everything the reference-data service knows about who
// was chargeable for a licence across a period.
type ChargingHistory struct {
	Holders    []Segment[LicenceHolder]
	Accounts   []Segment[InvoiceAccount]
	Agreements []billing.Agreement
}

// ReferenceDataService provides licence holder, invoice account and
// agreement history from the CRM service. Any failure here fails the
// whole unit of work; partial invoices are never produced.
type ReferenceDataService interface {
	ChargingHistory(ctx context.Context, licenceNumber string, period valueobject.DateRange) (*ChargingHistory, error)
}
