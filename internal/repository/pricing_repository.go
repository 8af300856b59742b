package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/drivelink/drivelink-api/internal/models"
)

// PricingRepository reads the per-license-class lesson prices.
type PricingRepository struct {
	db *sqlx.DB
}

// NewPricingRepository constructs a PricingRepository.
func NewPricingRepository(db *sqlx.DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// FindByLicenseClass fetches the pricing row for a license class.
func (r *PricingRepository) FindByLicenseClass(ctx context.Context, licenseClass string) (*models.LessonPricing, error) {
	const query = `SELECT id, license_class, price_per_30min, price_per_60min, created_at, updated_at
		FROM lesson_pricing WHERE license_class = $1`
	var pricing models.LessonPricing
	if err := r.db.GetContext(ctx, &pricing, query, licenseClass); err != nil {
		return nil, err
	}
	return &pricing, nil
}
