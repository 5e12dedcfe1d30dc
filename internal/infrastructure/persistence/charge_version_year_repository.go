package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormChargeVersionYearRepository implements ChargeVersionYearRepository
// using GORM
type GormChargeVersionYearRepository struct {
	db *gorm.DB
}

// NewGormChargeVersionYearRepository creates a new GormChargeVersionYearRepository
func NewGormChargeVersionYearRepository(db *gorm.DB) *GormChargeVersionYearRepository {
	return &GormChargeVersionYearRepository{db: db}
}

// SaveAll persists the processing units of a batch in one insert
func (r *GormChargeVersionYearRepository) SaveAll(ctx context.Context, years []*billing.ChargeVersionYear) error {
	if len(years) == 0 {
		return nil
	}
	rows := make([]*models.ChargeVersionYearModel, len(years))
	for i, year := range years {
		rows[i] = models.ChargeVersionYearModelFromDomain(year)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// FindByID finds a processing unit by its ID
func (r *GormChargeVersionYearRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.ChargeVersionYear, error) {
	var model models.ChargeVersionYearModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByBatch returns all processing units of a batch
func (r *GormChargeVersionYearRepository) FindByBatch(ctx context.Context, batchID uuid.UUID) ([]*billing.ChargeVersionYear, error) {
	var rows []models.ChargeVersionYearModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	years := make([]*billing.ChargeVersionYear, len(rows))
	for i := range rows {
		years[i] = rows[i].ToDomain()
	}
	return years, nil
}

// Update persists changes to a processing unit
func (r *GormChargeVersionYearRepository) Update(ctx context.Context, year *billing.ChargeVersionYear) error {
	model := models.ChargeVersionYearModelFromDomain(year)
	return r.db.WithContext(ctx).Save(model).Error
}

// CountByStatus returns the number of processing units per status for a
// batch
func (r *GormChargeVersionYearRepository) CountByStatus(ctx context.Context, batchID uuid.UUID) (map[billing.ChargeVersionYearStatus]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ChargeVersionYearModel{}).
		Select("status, COUNT(*) AS total").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[billing.ChargeVersionYearStatus]int64, len(rows))
	for _, row := range rows {
		counts[billing.ChargeVersionYearStatus(row.Status)] = row.Total
	}
	return counts, nil
}

// DeleteByBatch removes all processing units of a batch
func (r *GormChargeVersionYearRepository) DeleteByBatch(ctx context.Context, batchID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.ChargeVersionYearModel{}, "batch_id = ?", batchID).Error
}

var _ billing.ChargeVersionYearRepository = (*GormChargeVersionYearRepository)(nil)
