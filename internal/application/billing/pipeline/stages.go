package pipeline

import (
	"context"
	"errors"
	"fmt"

	appbilling "github.com/wrls/billing/internal/application/billing"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// PopulateHandler runs stage 1: expand the batch into charge version
// years and fan out one process job per unit, or finish an empty batch.
type PopulateHandler struct {
	jobs      queue.JobRepository
	batches   billing.BatchRepository
	populator *appbilling.Populator
	logger    *zap.Logger
}

func (h *PopulateHandler) Handle(ctx context.Context, job *queue.Job) error {
	batch, err := h.batches.FindByID(ctx, job.BatchID)
	if err != nil {
		return err
	}
	if batch.Status != billing.BatchStatusProcessing {
		// Redelivery after the batch already moved on.
		return nil
	}

	units, err := h.populator.Populate(ctx, batch)
	if err != nil {
		return err
	}

	if len(units) == 0 {
		if err := batch.MarkEmpty(); err != nil {
			return err
		}
		return finishBatch(ctx, h.batches, batch, h.logger)
	}

	jobs := make([]*queue.Job, len(units))
	for i, unit := range units {
		jobs[i] = queue.NewUnitJob(queue.StageProcess, batch.ID, unit.ID)
	}
	return h.jobs.Enqueue(ctx, jobs...)
}

func (h *PopulateHandler) OnExhausted(ctx context.Context, job *queue.Job, lastErr string) {
	failBatch(ctx, h.batches, job.BatchID, billing.ErrorFailedToPopulateChargeVersions, h.logger)
}

// ProcessHandler runs stage 2 for one charge version year: synthesize
// and persist the invoice/transaction graph, then open stage 3 once all
// units of the batch are terminal.
type ProcessHandler struct {
	jobs      queue.JobRepository
	batches   billing.BatchRepository
	years     billing.ChargeVersionYearRepository
	processor *appbilling.ChargeProcessor
	logger    *zap.Logger
}

func (h *ProcessHandler) Handle(ctx context.Context, job *queue.Job) error {
	if job.UnitID == nil {
		return fmt.Errorf("process job %s has no unit id", job.ID)
	}
	year, err := h.years.FindByID(ctx, *job.UnitID)
	if err != nil {
		return err
	}
	if year.Status != billing.ChargeVersionYearStatusProcessing {
		// Redelivery after the unit finished. The gate still has to be
		// checked: if this was the last unit and the earlier delivery died
		// between its status write and the enqueue, nobody else will.
		return h.openPrepareWhenDone(ctx, job)
	}
	batch, err := h.batches.FindByID(ctx, job.BatchID)
	if err != nil {
		return err
	}

	if _, err := h.processor.ProcessUnit(ctx, batch, year); err != nil {
		return err
	}
	if err := year.MarkReady(); err != nil {
		return err
	}
	if err := h.years.Update(ctx, year); err != nil {
		return err
	}
	return h.openPrepareWhenDone(ctx, job)
}

// openPrepareWhenDone enqueues the prepare stage once no unit of the
// batch remains processing. The deterministic job id makes concurrent
// last-unit finishers race harmlessly.
func (h *ProcessHandler) openPrepareWhenDone(ctx context.Context, job *queue.Job) error {
	counts, err := h.years.CountByStatus(ctx, job.BatchID)
	if err != nil {
		return err
	}
	if counts[billing.ChargeVersionYearStatusProcessing] > 0 {
		return nil
	}
	return h.jobs.Enqueue(ctx, queue.NewBatchJob(queue.StagePrepare, job.BatchID))
}

func (h *ProcessHandler) OnExhausted(ctx context.Context, job *queue.Job, lastErr string) {
	if job.UnitID != nil {
		if year, err := h.years.FindByID(ctx, *job.UnitID); err == nil {
			if err := year.MarkError(); err == nil {
				if err := h.years.Update(ctx, year); err != nil {
					h.logger.Error("failed to persist unit error",
						zap.String("unit_id", job.UnitID.String()), zap.Error(err))
				}
			}
		}
	}
	failBatch(ctx, h.batches, job.BatchID, billing.ErrorFailedToProcessChargeVersions, h.logger)
}

// PrepareHandler runs stage 3: apply the supplementary delta, then fan
// out one create-charge job per remaining candidate transaction.
type PrepareHandler struct {
	jobs          queue.JobRepository
	batches       billing.BatchRepository
	transactions  billing.TransactionRepository
	supplementary *appbilling.SupplementaryService
	logger        *zap.Logger
}

func (h *PrepareHandler) Handle(ctx context.Context, job *queue.Job) error {
	batch, err := h.batches.FindByID(ctx, job.BatchID)
	if err != nil {
		return err
	}
	if batch.Status != billing.BatchStatusProcessing {
		return nil
	}

	if batch.IsSupplementary() {
		if err := h.supplementary.Prepare(ctx, batch); err != nil {
			return err
		}
	}

	candidates, err := h.transactions.FindByBatchAndStatus(ctx, batch.ID, billing.TransactionStatusCandidate)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		if err := batch.MarkEmpty(); err != nil {
			return err
		}
		return finishBatch(ctx, h.batches, batch, h.logger)
	}

	jobs := make([]*queue.Job, len(candidates))
	for i, lt := range candidates {
		jobs[i] = queue.NewUnitJob(queue.StageCreateCharge, batch.ID, lt.Transaction.ID)
	}
	return h.jobs.Enqueue(ctx, jobs...)
}

func (h *PrepareHandler) OnExhausted(ctx context.Context, job *queue.Job, lastErr string) {
	failBatch(ctx, h.batches, job.BatchID, billing.ErrorFailedToPrepareTransactions, h.logger)
}

// CreateChargeHandler runs stage 4 for one transaction: submit it to the
// ledger. A 4xx response errors only the transaction; 5xx and transport
// failures return to the queue for backoff retry.
type CreateChargeHandler struct {
	jobs         queue.JobRepository
	batches      billing.BatchRepository
	transactions billing.TransactionRepository
	gateway      billing.ChargeModuleGateway
	logger       *zap.Logger
}

func (h *CreateChargeHandler) Handle(ctx context.Context, job *queue.Job) error {
	if job.UnitID == nil {
		return fmt.Errorf("create-charge job %s has no transaction id", job.ID)
	}
	lt, err := h.transactions.FindLicenceTransaction(ctx, *job.UnitID)
	if err != nil {
		return err
	}
	tx := lt.Transaction
	if tx.Status != billing.TransactionStatusCandidate {
		return h.openRefreshWhenDone(ctx, job)
	}
	batch, err := h.batches.FindByID(ctx, job.BatchID)
	if err != nil {
		return err
	}

	externalID, err := h.gateway.AddTransaction(ctx, batch.ExternalID, ledgerRequest(lt))
	switch {
	case err == nil:
		if err := tx.MarkChargeCreated(externalID); err != nil {
			return err
		}
	default:
		var clientErr *billing.ClientError
		if !errors.As(err, &clientErr) {
			return err
		}
		// Rejected facts are local to this transaction.
		h.logger.Warn("ledger rejected transaction",
			zap.String("transaction_id", tx.ID.String()),
			zap.Int("status_code", clientErr.StatusCode),
			zap.String("message", clientErr.Message))
		if err := tx.MarkError(); err != nil {
			return err
		}
	}

	if err := h.transactions.Update(ctx, tx); err != nil {
		return err
	}
	return h.openRefreshWhenDone(ctx, job)
}

// openRefreshWhenDone enqueues the refresh stage once no transaction of
// the batch remains candidate. A batch where nothing reached
// charge_created finishes empty instead.
func (h *CreateChargeHandler) openRefreshWhenDone(ctx context.Context, job *queue.Job) error {
	counts, err := h.transactions.CountByStatus(ctx, job.BatchID)
	if err != nil {
		return err
	}
	if counts[billing.TransactionStatusCandidate] > 0 {
		return nil
	}
	if counts[billing.TransactionStatusChargeCreated] == 0 {
		batch, err := h.batches.FindByID(ctx, job.BatchID)
		if err != nil {
			return err
		}
		if batch.Status.IsTerminal() {
			return nil
		}
		if err := batch.MarkEmpty(); err != nil {
			return err
		}
		return finishBatch(ctx, h.batches, batch, h.logger)
	}

	refresh := queue.NewBatchJob(queue.StageRefreshTotals, job.BatchID)
	refresh.MaxRetries = refreshMaxRetries
	return h.jobs.Enqueue(ctx, refresh)
}

func (h *CreateChargeHandler) OnExhausted(ctx context.Context, job *queue.Job, lastErr string) {
	failBatch(ctx, h.batches, job.BatchID, billing.ErrorFailedToCreateCharge, h.logger)
}

// RefreshHandler runs stage 5: pull the ledger summary, reconcile it and
// move the batch to ready. A still-generating summary is returned as an
// error so the queue's backoff becomes the re-poll schedule.
type RefreshHandler struct {
	batches   billing.BatchRepository
	refresher *appbilling.RefreshService
	logger    *zap.Logger
}

func (h *RefreshHandler) Handle(ctx context.Context, job *queue.Job) error {
	batch, err := h.batches.FindByID(ctx, job.BatchID)
	if err != nil {
		return err
	}
	if batch.Status != billing.BatchStatusProcessing {
		return nil
	}

	ready, err := h.refresher.Refresh(ctx, batch)
	if err != nil {
		return err
	}
	if !ready {
		return billing.ErrSummaryGenerating
	}

	if err := batch.MarkReady(); err != nil {
		return err
	}
	return finishBatch(ctx, h.batches, batch, h.logger)
}

func (h *RefreshHandler) OnExhausted(ctx context.Context, job *queue.Job, lastErr string) {
	failBatch(ctx, h.batches, job.BatchID, billing.ErrorFailedToRefreshTotals, h.logger)
}

// ledgerRequest maps a transaction and its licence context onto the
// charge module submission shape. The transaction id doubles as the
// client id so duplicate submissions collapse on the ledger side.
func ledgerRequest(lt *billing.LicenceTransaction) *billing.LedgerTransactionRequest {
	tx := lt.Transaction
	req := &billing.LedgerTransactionRequest{
		ClientID:             tx.ID.String(),
		LicenceNumber:        lt.Licence.LicenceNumber,
		Region:               lt.Licence.Region.Code,
		InvoiceAccountNumber: lt.InvoiceAccountNumber,
		FinancialYearEnding:  lt.FinancialYearEnding,
		PeriodStart:          tx.ChargePeriod.Start().Format("2006-01-02"),
		Credit:               tx.IsCredit,
		BillableDays:         tx.BillableDays,
		AuthorisedDays:       tx.AuthorisedDays,
		Volume:               tx.Volume.String(),
		Source:               string(tx.ChargeElement.Source),
		Season:               string(tx.ChargeElement.Season),
		Loss:                 string(tx.ChargeElement.Loss),
		Description:          tx.Description,
		CompensationCharge:   tx.IsCompensationCharge,
		TwoPartTariff:        tx.IsTwoPartTariffSupplementary,
		NewLicence:           tx.IsNewLicence,
	}
	if end := tx.ChargePeriod.End(); end != nil {
		req.PeriodEnd = end.Format("2006-01-02")
	}
	for _, a := range tx.Agreements {
		switch {
		case a.Code == billing.AgreementS126:
			factor := tx.Factors.Abatement
			req.Section126Factor = &factor
		case a.IsTwoPartTariff():
			req.Section127Agreement = true
		case a.IsCanalAndRiverTrust():
			req.Section130Agreement = true
		}
	}
	return req
}
