package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
	"github.com/wrls/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTransactionRepository implements TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Save persists a new transaction under the given invoice licence
func (r *GormTransactionRepository) Save(ctx context.Context, invoiceLicenceID uuid.UUID, tx *billing.Transaction) error {
	model := models.TransactionModelFromDomain(invoiceLicenceID, tx)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID finds a transaction by its ID
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Transaction, error) {
	var model models.TransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update persists the mutable fields of a transaction. The row's invoice
// licence link and charging facts never change after creation.
func (r *GormTransactionRepository) Update(ctx context.Context, tx *billing.Transaction) error {
	factors, err := json.Marshal(tx.Factors)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.TransactionModel{}).
		Where("id = ?", tx.ID).
		Updates(map[string]interface{}{
			"status":            string(tx.Status),
			"external_id":       tx.ExternalID,
			"value":             tx.Value,
			"is_credit":         tx.IsCredit,
			"is_de_minimis":     tx.IsDeMinimis,
			"is_minimum_charge": tx.IsMinimumCharge,
			"factors":           factors,
			"updated_at":        time.Now(),
		}).Error
}

// Delete removes a transaction
func (r *GormTransactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.TransactionModel{}, "id = ?", id).Error
}

// licenceTransactionRow is the flat shape scanned by the joined queries.
type licenceTransactionRow struct {
	models.TransactionModel `gorm:"embedded"`

	LicenceRowID         uuid.UUID  `gorm:"column:licence_row_id"`
	LicenceNumber        string     `gorm:"column:licence_number"`
	LicenceStartDate     time.Time  `gorm:"column:licence_start_date"`
	LicenceExpiredDate   *time.Time `gorm:"column:licence_expired_date"`
	LicenceRegionID      string     `gorm:"column:licence_region_id"`
	LicenceRegionCode    string     `gorm:"column:licence_region_code"`
	LicenceRegionName    string     `gorm:"column:licence_region_name"`
	IsWaterUndertaker    bool       `gorm:"column:is_water_undertaker"`
	InvoiceAccountNumber string     `gorm:"column:invoice_account_number"`
	FinancialYearEnding  int        `gorm:"column:financial_year_ending"`
	BatchRowID           uuid.UUID  `gorm:"column:batch_row_id"`
}

const licenceTransactionSelect = `billing_transactions.*,
	licences.id AS licence_row_id,
	licences.licence_number,
	licences.start_date AS licence_start_date,
	licences.expired_date AS licence_expired_date,
	licences.region_id AS licence_region_id,
	licences.region_code AS licence_region_code,
	licences.region_name AS licence_region_name,
	licences.is_water_undertaker,
	billing_invoices.invoice_account_number,
	billing_invoices.financial_year_ending,
	billing_invoices.batch_id AS batch_row_id`

func (r *GormTransactionRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("billing_transactions").
		Select(licenceTransactionSelect).
		Joins("JOIN billing_invoice_licences ON billing_invoice_licences.id = billing_transactions.invoice_licence_id").
		Joins("JOIN billing_invoices ON billing_invoices.id = billing_invoice_licences.invoice_id").
		Joins("JOIN licences ON licences.id = billing_invoice_licences.licence_id")
}

func (row *licenceTransactionRow) toDomain() *billing.LicenceTransaction {
	licence := models.LicenceModel{
		ID:                row.LicenceRowID,
		LicenceNumber:     row.LicenceNumber,
		StartDate:         row.LicenceStartDate,
		ExpiredDate:       row.LicenceExpiredDate,
		RegionID:          row.LicenceRegionID,
		RegionCode:        row.LicenceRegionCode,
		RegionName:        row.LicenceRegionName,
		IsWaterUndertaker: row.IsWaterUndertaker,
	}
	return &billing.LicenceTransaction{
		Licence:              licence.ToDomain(),
		Transaction:          row.TransactionModel.ToDomain(),
		InvoiceAccountNumber: row.InvoiceAccountNumber,
		FinancialYearEnding:  row.FinancialYearEnding,
		BatchID:              row.BatchRowID,
	}
}

// DeleteCandidatesByUnit removes the candidate transactions left behind by
// an interrupted run of the charge version year
func (r *GormTransactionRepository) DeleteCandidatesByUnit(ctx context.Context, chargeVersionYearID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("charge_version_year_id = ? AND status = ?",
			chargeVersionYearID, string(billing.TransactionStatusCandidate)).
		Delete(&models.TransactionModel{}).Error
}

// FindLicenceTransaction returns one transaction joined with its licence,
// account and year
func (r *GormTransactionRepository) FindLicenceTransaction(ctx context.Context, id uuid.UUID) (*billing.LicenceTransaction, error) {
	var row licenceTransactionRow
	err := r.joined(ctx).
		Where("billing_transactions.id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// FindHistoryByLicence returns the transactions of previously sent
// batches for the licence, limited to the given financial years
func (r *GormTransactionRepository) FindHistoryByLicence(ctx context.Context, licenceID uuid.UUID, from, to valueobject.FinancialYear) ([]*billing.LicenceTransaction, error) {
	return r.findJoined(r.joined(ctx).
		Joins("JOIN billing_batches ON billing_batches.id = billing_invoices.batch_id").
		Where("billing_invoice_licences.licence_id = ?", licenceID).
		Where("billing_batches.status = ?", string(billing.BatchStatusSent)).
		Where("billing_invoices.financial_year_ending BETWEEN ? AND ?", from.YearEnding(), to.YearEnding()))
}

// FindByBatchAndStatus returns the batch's transactions in the given
// status, joined with their licence
func (r *GormTransactionRepository) FindByBatchAndStatus(ctx context.Context, batchID uuid.UUID, status billing.TransactionStatus) ([]*billing.LicenceTransaction, error) {
	return r.findJoined(r.joined(ctx).
		Where("billing_invoices.batch_id = ?", batchID).
		Where("billing_transactions.status = ?", string(status)))
}

func (r *GormTransactionRepository) findJoined(query *gorm.DB) ([]*billing.LicenceTransaction, error) {
	var rows []licenceTransactionRow
	if err := query.Order("billing_transactions.created_at ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*billing.LicenceTransaction, len(rows))
	for i := range rows {
		result[i] = rows[i].toDomain()
	}
	return result, nil
}

// CountByStatus returns the number of transactions per status for a batch
func (r *GormTransactionRepository) CountByStatus(ctx context.Context, batchID uuid.UUID) (map[billing.TransactionStatus]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Table("billing_transactions").
		Select("billing_transactions.status, COUNT(*) AS total").
		Joins("JOIN billing_invoice_licences ON billing_invoice_licences.id = billing_transactions.invoice_licence_id").
		Joins("JOIN billing_invoices ON billing_invoices.id = billing_invoice_licences.invoice_id").
		Where("billing_invoices.batch_id = ?", batchID).
		Group("billing_transactions.status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[billing.TransactionStatus]int64, len(rows))
	for _, row := range rows {
		counts[billing.TransactionStatus(row.Status)] = row.Total
	}
	return counts, nil
}

var _ billing.TransactionRepository = (*GormTransactionRepository)(nil)
