package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wrls/billing/internal/domain/billing"
	"github.com/wrls/billing/internal/domain/shared"
	"github.com/wrls/billing/internal/domain/shared/valueobject"
	"github.com/wrls/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBillingVolumeRepository implements BillingVolumeRepository using GORM
type GormBillingVolumeRepository struct {
	db *gorm.DB
}

// NewGormBillingVolumeRepository creates a new GormBillingVolumeRepository
func NewGormBillingVolumeRepository(db *gorm.DB) *GormBillingVolumeRepository {
	return &GormBillingVolumeRepository{db: db}
}

// Save persists a billing volume
func (r *GormBillingVolumeRepository) Save(ctx context.Context, volume *billing.BillingVolume) error {
	model := models.BillingVolumeModelFromDomain(volume)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindApproved returns the approved volume for the element, year and
// season
func (r *GormBillingVolumeRepository) FindApproved(ctx context.Context, chargeElementID uuid.UUID, fy valueobject.FinancialYear, isSummer bool) (*billing.BillingVolume, error) {
	var model models.BillingVolumeModel
	err := r.db.WithContext(ctx).
		Where("charge_element_id = ? AND financial_year_ending = ? AND is_summer = ? AND is_approved = ?",
			chargeElementID, fy.YearEnding(), isSummer, true).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ billing.BillingVolumeRepository = (*GormBillingVolumeRepository)(nil)
