package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Save persists a new invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing invoice and inserts any licence
// links attached since the last save. Transactions are persisted by the
// transaction repository.
func (r *GormInvoiceRepository) Update(ctx context.Context, invoice *billing.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(models.InvoiceModelFromDomain(invoice)).Error; err != nil {
			return err
		}
		for _, il := range invoice.InvoiceLicences {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "invoice_id"}, {Name: "licence_id"}},
				DoNothing: true,
			}).Create(models.InvoiceLicenceModelFromDomain(il)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByBatch returns all invoices of a batch with their licences and
// transactions
func (r *GormInvoiceRepository) FindByBatch(ctx context.Context, batchID uuid.UUID) ([]*billing.Invoice, error) {
	var rows []models.InvoiceModel
	err := r.db.WithContext(ctx).
		Preload("InvoiceLicences").
		Preload("InvoiceLicences.Transactions").
		Where("batch_id = ?", batchID).
		Order("invoice_account_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	invoices := make([]*billing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = rows[i].ToDomain()
	}
	return invoices, nil
}

// FindOrCreate returns the batch invoice for the account and year,
// creating it when absent. The licence links come back with the invoice
// so callers attach to the persisted ones instead of minting duplicates.
func (r *GormInvoiceRepository) FindOrCreate(ctx context.Context, batchID uuid.UUID, accountID, accountNumber string, yearEnding int, address billing.InvoiceAddress) (*billing.Invoice, error) {
	var model models.InvoiceModel
	err := r.db.WithContext(ctx).
		Preload("InvoiceLicences").
		Where("batch_id = ? AND invoice_account_number = ? AND financial_year_ending = ?",
			batchID, accountNumber, yearEnding).
		First(&model).Error
	if err == nil {
		return model.ToDomain(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	invoice := &billing.Invoice{
		BaseEntity:           shared.NewBaseEntity(),
		BatchID:              batchID,
		InvoiceAccountID:     accountID,
		InvoiceAccountNumber: accountNumber,
		FinancialYearEnding:  yearEnding,
		Address:              address,
	}
	if err := r.Save(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// DeleteByBatch removes all invoices of a batch, including their licences
// and transactions
func (r *GormInvoiceRepository) DeleteByBatch(ctx context.Context, batchID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM billing_transactions
			WHERE invoice_licence_id IN (
				SELECT il.id FROM billing_invoice_licences il
				JOIN billing_invoices i ON i.id = il.invoice_id
				WHERE i.batch_id = ?)`, batchID).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM billing_invoice_licences
			WHERE invoice_id IN (
				SELECT id FROM billing_invoices WHERE batch_id = ?)`, batchID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.InvoiceModel{}, "batch_id = ?", batchID).Error
	})
}

// DeleteEmptyByBatch removes invoices in the batch that no longer carry
// any transactions, along with their orphaned licence links
func (r *GormInvoiceRepository) DeleteEmptyByBatch(ctx context.Context, batchID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM billing_invoice_licences
			WHERE invoice_id IN (SELECT id FROM billing_invoices WHERE batch_id = ?)
			AND NOT EXISTS (
				SELECT 1 FROM billing_transactions t
				WHERE t.invoice_licence_id = billing_invoice_licences.id)`, batchID).Error; err != nil {
			return err
		}
		return tx.Exec(`DELETE FROM billing_invoices
			WHERE batch_id = ?
			AND NOT EXISTS (
				SELECT 1 FROM billing_invoice_licences il
				WHERE il.invoice_id = billing_invoices.id)`, batchID).Error
	})
}

var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
