package billing

import (
	"context"
	"fmt"

	"github.com/wrls/billing/internal/domain/billing"
	"go.uber.org/zap"
)

// Delta is the outcome of comparing a supplementary batch's candidate
// transactions against the transactions already billed by sent batches.
type Delta struct {
	// Unchanged are candidates whose charging facts were already billed.
	// They are removed so the run bills only what changed.
	Unchanged []*billing.LicenceTransaction

	// Reversals net out historical transactions whose charging facts no
	// longer hold.
	Reversals []*billing.LicenceTransaction
}

// ComputeDelta pairs current candidates against historical transactions by
// fingerprint. Duplicate fingerprints pair one-for-one, so two identical
// historical charges need both facts to recur before neither is reversed.
func ComputeDelta(current, historical []*billing.LicenceTransaction) Delta {
	remaining := make(map[string][]*billing.LicenceTransaction, len(current))
	for _, lt := range current {
		fp := lt.Facts().Fingerprint()
		remaining[fp] = append(remaining[fp], lt)
	}

	var delta Delta
	for _, hist := range historical {
		fp := hist.Facts().Fingerprint()
		if matches := remaining[fp]; len(matches) > 0 {
			delta.Unchanged = append(delta.Unchanged, matches[0])
			remaining[fp] = matches[1:]
			continue
		}
		reversal := &billing.LicenceTransaction{
			Licence:              hist.Licence,
			Transaction:          hist.Transaction.Reversal(),
			InvoiceAccountNumber: hist.InvoiceAccountNumber,
			FinancialYearEnding:  hist.FinancialYearEnding,
		}
		delta.Reversals = append(delta.Reversals, reversal)
	}
	return delta
}

// SupplementaryService materializes delta actions against persisted
// storage during the prepare stage of a supplementary run.
type SupplementaryService struct {
	transactions billing.TransactionRepository
	invoices     billing.InvoiceRepository
	logger       *zap.Logger
}

// NewSupplementaryService creates a SupplementaryService.
func NewSupplementaryService(
	transactions billing.TransactionRepository,
	invoices billing.InvoiceRepository,
	logger *zap.Logger,
) *SupplementaryService {
	return &SupplementaryService{
		transactions: transactions,
		invoices:     invoices,
		logger:       logger,
	}
}

// Prepare computes and applies the supplementary delta for the batch:
// unchanged candidates are deleted, reversals are inserted under the
// invoice of the historical transaction's account and year, and invoices
// left with no transactions are removed.
func (s *SupplementaryService) Prepare(ctx context.Context, batch *billing.Batch) error {
	current, err := s.transactions.FindByBatchAndStatus(ctx, batch.ID, billing.TransactionStatusCandidate)
	if err != nil {
		return fmt.Errorf("load candidates for batch %s: %w", batch.ID, err)
	}

	historical, err := s.historyFor(ctx, batch, current)
	if err != nil {
		return err
	}

	delta := ComputeDelta(current, historical)

	for _, lt := range delta.Unchanged {
		if err := s.transactions.Delete(ctx, lt.Transaction.ID); err != nil {
			return fmt.Errorf("delete unchanged candidate %s: %w", lt.Transaction.ID, err)
		}
	}
	for _, lt := range delta.Reversals {
		invoice, err := s.invoices.FindOrCreate(ctx, batch.ID, "", lt.InvoiceAccountNumber, lt.FinancialYearEnding, billing.InvoiceAddress{})
		if err != nil {
			return fmt.Errorf("invoice for reversal on account %s: %w", lt.InvoiceAccountNumber, err)
		}
		il := invoice.GetInvoiceLicence(lt.Licence)
		if err := s.invoices.Update(ctx, invoice); err != nil {
			return fmt.Errorf("persist invoice %s: %w", invoice.ID, err)
		}
		il.AddTransaction(lt.Transaction)
		if err := s.transactions.Save(ctx, il.ID, lt.Transaction); err != nil {
			return fmt.Errorf("persist reversal: %w", err)
		}
	}

	if err := s.invoices.DeleteEmptyByBatch(ctx, batch.ID); err != nil {
		return fmt.Errorf("remove empty invoices: %w", err)
	}

	s.logger.Info("Prepared supplementary delta",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("candidates", len(current)),
		zap.Int("unchanged", len(delta.Unchanged)),
		zap.Int("reversals", len(delta.Reversals)))
	return nil
}

// historyFor loads the sent transactions of every licence the current
// candidates touch, deduplicating licences.
func (s *SupplementaryService) historyFor(ctx context.Context, batch *billing.Batch, current []*billing.LicenceTransaction) ([]*billing.LicenceTransaction, error) {
	seen := map[string]bool{}
	var historical []*billing.LicenceTransaction
	for _, lt := range current {
		key := lt.Licence.ID.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		history, err := s.transactions.FindHistoryByLicence(ctx, lt.Licence.ID, batch.StartYear, batch.EndYear)
		if err != nil {
			return nil, fmt.Errorf("history for licence %s: %w", lt.Licence.LicenceNumber, err)
		}
		historical = append(historical, history...)
	}
	return historical, nil
}
