package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
	"github.com/wrls/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// Save persists a new batch
func (r *GormBatchRepository) Save(ctx context.Context, batch *billing.Batch) error {
	model := models.BatchModelFromDomain(batch)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Update persists changes to an existing batch, guarded by the status the
// caller read. Zero rows matched means another worker moved the batch
// first; the caller decides whether losing that race matters.
func (r *GormBatchRepository) Update(ctx context.Context, batch *billing.Batch, from billing.BatchStatus) error {
	model := models.BatchModelFromDomain(batch)
	result := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("id = ? AND status = ?", model.ID, string(from)).
		Select("*").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("batch %s no longer in status %s: %w", batch.ID, from, shared.ErrConcurrencyConflict)
	}
	return nil
}

// Delete removes a batch
func (r *GormBatchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.BatchModel{}, "id = ?", id).Error
}

// FindLiveByRegion returns batches in the region still being processed or
// awaiting approval
func (r *GormBatchRepository) FindLiveByRegion(ctx context.Context, regionID string) ([]*billing.Batch, error) {
	var rows []models.BatchModel
	err := r.db.WithContext(ctx).
		Where("region_id = ? AND status IN ?", regionID,
			[]string{string(billing.BatchStatusProcessing), string(billing.BatchStatusReady)}).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	batches := make([]*billing.Batch, len(rows))
	for i := range rows {
		batches[i] = rows[i].ToDomain()
	}
	return batches, nil
}

// ExistsSentTwoPartTariff reports whether a two-part tariff batch for the
// season and year has already been sent for the region
func (r *GormBatchRepository) ExistsSentTwoPartTariff(ctx context.Context, regionID string, isSummer bool, fy valueobject.FinancialYear) (bool, error) {
	season := billing.SeasonWinterAllYear
	if isSummer {
		season = billing.SeasonSummer
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("region_id = ? AND batch_type = ? AND status = ? AND season = ?",
			regionID, string(billing.BatchTypeTwoPartTariff), string(billing.BatchStatusSent), string(season)).
		Where("from_year_ending <= ? AND to_year_ending >= ?", fy.YearEnding(), fy.YearEnding()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ billing.BatchRepository = (*GormBatchRepository)(nil)
