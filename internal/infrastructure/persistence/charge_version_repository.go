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

// GormChargeVersionRepository implements ChargeVersionRepository using GORM.
// Charge versions are reference data owned by the licensing service, so
// this repository is read only.
type GormChargeVersionRepository struct {
	db *gorm.DB
}

// NewGormChargeVersionRepository creates a new GormChargeVersionRepository
func NewGormChargeVersionRepository(db *gorm.DB) *GormChargeVersionRepository {
	return &GormChargeVersionRepository{db: db}
}

// FindByID finds a charge version by its ID
func (r *GormChargeVersionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.ChargeVersion, error) {
	var model models.ChargeVersionModel
	if err := r.db.WithContext(ctx).
		Preload("Licence").
		Preload("Elements").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindForBilling returns the charge versions in a region whose validity
// overlaps the span of financial years between from and to
func (r *GormChargeVersionRepository) FindForBilling(ctx context.Context, regionID string, from, to valueobject.FinancialYear, supplementaryOnly bool) ([]*billing.ChargeVersion, error) {
	spanStart := from.Start()
	spanEnd := to.End()

	query := r.db.WithContext(ctx).
		Preload("Licence").
		Preload("Elements").
		Joins("JOIN licences ON licences.id = charge_versions.licence_id").
		Where("licences.region_id = ?", regionID).
		Where("charge_versions.start_date <= ?", spanEnd).
		Where("charge_versions.end_date IS NULL OR charge_versions.end_date >= ?", spanStart)
	if supplementaryOnly {
		query = query.Where("charge_versions.include_in_supplementary = ?", true)
	}

	var rows []models.ChargeVersionModel
	if err := query.Order("charge_versions.start_date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	versions := make([]*billing.ChargeVersion, len(rows))
	for i := range rows {
		versions[i] = rows[i].ToDomain()
	}
	return versions, nil
}

// FindAgreements returns the licence agreements overlapping the period
func (r *GormChargeVersionRepository) FindAgreements(ctx context.Context, licenceID uuid.UUID, period valueobject.DateRange) ([]billing.Agreement, error) {
	query := r.db.WithContext(ctx).
		Where("licence_id = ?", licenceID).
		Where("end_date IS NULL OR end_date >= ?", period.Start())
	if end := period.End(); end != nil {
		query = query.Where("start_date <= ?", *end)
	}

	var rows []models.LicenceAgreementModel
	if err := query.Order("start_date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	agreements := make([]billing.Agreement, len(rows))
	for i := range rows {
		agreements[i] = rows[i].ToDomain()
	}
	return agreements, nil
}

var _ billing.ChargeVersionRepository = (*GormChargeVersionRepository)(nil)
