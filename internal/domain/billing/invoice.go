package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/shared"
)

// Invoice groups transactions for one billing account within one financial
// year. The charge module keys invoices the same way, so the pair
// (account number, year ending) is the join key during reconciliation.
type Invoice struct {
	shared.BaseEntity

	BatchID              uuid.UUID
	InvoiceAccountID     string
	InvoiceAccountNumber string
	FinancialYearEnding  int
	Address              InvoiceAddress

	NetTotal        int64
	InvoiceValue    int64
	CreditNoteValue int64
	IsDeMinimis     bool

	InvoiceLicences []*InvoiceLicence
}

// InvoiceAddress is the billing contact snapshot taken at batch time.
type InvoiceAddress struct {
	Name         string
	AddressLine1 string
	AddressLine2 string
	AddressLine3 string
	Town         string
	Postcode     string
}

// ReconciliationKey is the identifier the charge module uses for the
// invoice.
func (i *Invoice) ReconciliationKey() string {
	return fmt.Sprintf("%s_%d", i.InvoiceAccountNumber, i.FinancialYearEnding)
}

// InvoiceLicence groups an invoice's transactions under one licence.
type InvoiceLicence struct {
	shared.BaseEntity

	InvoiceID     uuid.UUID
	LicenceID     uuid.UUID
	LicenceNumber string
	Transactions  []*Transaction
}

// GetInvoiceLicence returns the invoice licence for the given licence
// number, creating and attaching one if absent.
func (i *Invoice) GetInvoiceLicence(licence Licence) *InvoiceLicence {
	for _, il := range i.InvoiceLicences {
		if il.LicenceNumber == licence.LicenceNumber {
			return il
		}
	}
	il := &InvoiceLicence{
		BaseEntity:    shared.NewBaseEntity(),
		InvoiceID:     i.ID,
		LicenceID:     licence.ID,
		LicenceNumber: licence.LicenceNumber,
	}
	i.InvoiceLicences = append(i.InvoiceLicences, il)
	return il
}

// AddTransaction appends a transaction to the invoice licence.
func (il *InvoiceLicence) AddTransaction(t *Transaction) {
	il.Transactions = append(il.Transactions, t)
}
