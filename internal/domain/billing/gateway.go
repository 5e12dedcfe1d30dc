package billing

import (
	"context"
	"fmt"
)

// ChargeModuleGateway is the port to the external ledger that performs the
// authoritative monetary calculation. Implemented by the charge module
// HTTP client.
type ChargeModuleGateway interface {
	// CreateBillRun opens a bill run for the region and returns its id.
	CreateBillRun(ctx context.Context, regionCode string) (string, error)

	// AddTransaction submits one transaction to the bill run. A conflict
	// response for an already submitted transaction is success; the
	// previously assigned id is returned.
	AddTransaction(ctx context.Context, billRunID string, tx *LedgerTransactionRequest) (string, error)

	Approve(ctx context.Context, billRunID string) error
	Send(ctx context.Context, billRunID string) error

	// GetSummary pulls the bill run summary. ErrSummaryGenerating is
	// returned while the ledger is still computing.
	GetSummary(ctx context.Context, billRunID string) (*BillRunSummary, error)

	// GetInvoiceTransactions pulls the ledger transactions of one
	// invoice in the bill run.
	GetInvoiceTransactions(ctx context.Context, billRunID, invoiceID string) ([]LedgerTransaction, error)

	// DeleteBillRun removes the bill run from the ledger.
	DeleteBillRun(ctx context.Context, billRunID string) error
}

// ErrSummaryGenerating signals the ledger has not finished computing the
// bill run summary. Not a failure; re-poll later.
var ErrSummaryGenerating = fmt.Errorf("bill run summary still generating")

// LedgerTransactionRequest carries the charging facts submitted for one
// transaction.
type LedgerTransactionRequest struct {
	ClientID             string
	LicenceNumber        string
	Region               string
	InvoiceAccountNumber string
	FinancialYearEnding  int
	PeriodStart          string
	PeriodEnd            string
	Credit               bool
	BillableDays         int
	AuthorisedDays       int
	Volume               string
	Source               string
	Season               string
	Loss                 string
	Description          string
	CompensationCharge   bool
	TwoPartTariff        bool
	NewLicence           bool
	Section126Factor     *float64
	Section127Agreement  bool
	Section130Agreement  bool
}

// BillRunSummary is the ledger's authoritative view of a bill run.
type BillRunSummary struct {
	BillRunID       string
	Status          string
	NetTotal        int64
	InvoiceValue    int64
	CreditNoteValue int64
	Invoices        []LedgerInvoice
}

// LedgerInvoice is one invoice within a ledger bill run summary.
type LedgerInvoice struct {
	ID                  string
	CustomerReference   string
	FinancialYearEnding int
	NetTotal            int64
	GrossTotal          int64
	DeMinimis           bool
}

// LedgerTransaction is one calculated transaction under a ledger invoice.
type LedgerTransaction struct {
	ID                 string
	ClientID           string
	ChargeValue        int64
	Credit             bool
	MinimumCharge      bool
	DeMinimis          bool
	LicenceNumber      string
	CalculationFactors CalculationFactors
}

// ClientError is a 4xx ledger rejection. Local to the submitted
// transaction; the batch keeps going.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("charge module rejected request (%d): %s", e.StatusCode, e.Message)
}

// ServerError is a 5xx, timeout or transport failure. Retriable at the
// queue level.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("charge module unavailable (%d): %s", e.StatusCode, e.Message)
}
