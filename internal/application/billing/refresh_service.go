package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/wrls/billing/internal/domain/billing"
	"go.uber.org/zap"
)

// RefreshService reconciles a batch with the ledger's authoritative view:
// totals, invoice values, per-transaction calculation factors, and
// existence of transactions themselves.
type RefreshService struct {
	batches      billing.BatchRepository
	invoices     billing.InvoiceRepository
	transactions billing.TransactionRepository
	gateway      billing.ChargeModuleGateway
	logger       *zap.Logger
}

// NewRefreshService creates a RefreshService.
func NewRefreshService(
	batches billing.BatchRepository,
	invoices billing.InvoiceRepository,
	transactions billing.TransactionRepository,
	gateway billing.ChargeModuleGateway,
	logger *zap.Logger,
) *RefreshService {
	return &RefreshService{
		batches:      batches,
		invoices:     invoices,
		transactions: transactions,
		gateway:      gateway,
		logger:       logger,
	}
}

// Refresh pulls the ledger summary and applies it to the batch. Returns
// false without touching anything when the ledger is still generating the
// summary; the caller re-polls later.
func (s *RefreshService) Refresh(ctx context.Context, batch *billing.Batch) (bool, error) {
	summary, err := s.gateway.GetSummary(ctx, batch.ExternalID)
	if errors.Is(err, billing.ErrSummaryGenerating) {
		s.logger.Info("Ledger summary still generating, deferring",
			zap.String("batch_id", batch.ID.String()),
			zap.String("bill_run_id", batch.ExternalID))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get bill run summary %s: %w", batch.ExternalID, err)
	}

	batch.UpdateTotals(summary.NetTotal, summary.InvoiceValue, summary.CreditNoteValue)
	if err := s.batches.Update(ctx, batch, billing.BatchStatusProcessing); err != nil {
		return false, fmt.Errorf("persist batch totals: %w", err)
	}

	local, err := s.invoices.FindByBatch(ctx, batch.ID)
	if err != nil {
		return false, fmt.Errorf("load invoices: %w", err)
	}
	byKey := make(map[string]*billing.Invoice, len(local))
	for _, inv := range local {
		byKey[inv.ReconciliationKey()] = inv
	}

	for i := range summary.Invoices {
		ledgerInvoice := summary.Invoices[i]
		key := fmt.Sprintf("%s_%d", ledgerInvoice.CustomerReference, ledgerInvoice.FinancialYearEnding)
		invoice, ok := byKey[key]
		if !ok {
			s.logger.Warn("Ledger invoice has no local counterpart",
				zap.String("batch_id", batch.ID.String()),
				zap.String("invoice_key", key))
			continue
		}
		if err := s.refreshInvoice(ctx, batch, invoice, ledgerInvoice); err != nil {
			return false, err
		}
	}
	return true, nil
}

// refreshInvoice applies one ledger invoice: monetary fields, matched
// transaction factors, ledger-created rows the engine never submitted,
// and deletion of local rows the ledger no longer has.
func (s *RefreshService) refreshInvoice(ctx context.Context, batch *billing.Batch, invoice *billing.Invoice, ledgerInvoice billing.LedgerInvoice) error {
	invoice.NetTotal = ledgerInvoice.NetTotal
	invoice.InvoiceValue = ledgerInvoice.GrossTotal
	invoice.IsDeMinimis = ledgerInvoice.DeMinimis
	if err := s.invoices.Update(ctx, invoice); err != nil {
		return fmt.Errorf("persist invoice %s: %w", invoice.ID, err)
	}

	ledgerTxs, err := s.gateway.GetInvoiceTransactions(ctx, batch.ExternalID, ledgerInvoice.ID)
	if err != nil {
		return fmt.Errorf("get ledger transactions for invoice %s: %w", ledgerInvoice.ID, err)
	}
	byExternalID := make(map[string]billing.LedgerTransaction, len(ledgerTxs))
	for _, lt := range ledgerTxs {
		byExternalID[lt.ID] = lt
	}

	seen := map[string]bool{}
	for _, il := range invoice.InvoiceLicences {
		for _, tx := range il.Transactions {
			ledgerTx, ok := byExternalID[tx.ExternalID]
			if !ok {
				// The ledger is authoritative for existence.
				if err := s.transactions.Delete(ctx, tx.ID); err != nil {
					return fmt.Errorf("delete transaction %s absent from ledger: %w", tx.ID, err)
				}
				continue
			}
			seen[tx.ExternalID] = true
			tx.Value = ledgerTx.ChargeValue
			tx.IsCredit = ledgerTx.Credit
			tx.IsDeMinimis = ledgerTx.DeMinimis
			tx.IsMinimumCharge = ledgerTx.MinimumCharge
			tx.Factors = ledgerTx.CalculationFactors
			if err := s.transactions.Update(ctx, tx); err != nil {
				return fmt.Errorf("persist transaction %s: %w", tx.ID, err)
			}
		}
	}

	// Ledger-created rows, typically minimum-charge top-ups.
	for _, ledgerTx := range ledgerTxs {
		if seen[ledgerTx.ID] {
			continue
		}
		if err := s.insertLedgerTransaction(ctx, invoice, ledgerTx); err != nil {
			return err
		}
	}
	return nil
}

func (s *RefreshService) insertLedgerTransaction(ctx context.Context, invoice *billing.Invoice, ledgerTx billing.LedgerTransaction) error {
	il := s.licenceFor(invoice, ledgerTx.LicenceNumber)
	if il == nil {
		s.logger.Warn("Ledger transaction references unknown licence, skipping",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("licence_number", ledgerTx.LicenceNumber))
		return nil
	}
	tx := billing.NewLedgerCreatedTransaction(ledgerTx)
	il.AddTransaction(tx)
	if err := s.transactions.Save(ctx, il.ID, tx); err != nil {
		return fmt.Errorf("persist ledger-created transaction %s: %w", ledgerTx.ID, err)
	}
	return nil
}

func (s *RefreshService) licenceFor(invoice *billing.Invoice, licenceNumber string) *billing.InvoiceLicence {
	for _, il := range invoice.InvoiceLicences {
		if il.LicenceNumber == licenceNumber {
			return il
		}
	}
	if len(invoice.InvoiceLicences) == 1 && licenceNumber == "" {
		return invoice.InvoiceLicences[0]
	}
	return nil
}
