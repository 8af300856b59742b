package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/drivelink/drivelink-api/internal/models"
)

const vehicleColumns = `id, registration_number, make, model, year, license_class,
	instructor_id, is_active, created_at`

// VehicleRepository reads the training fleet.
type VehicleRepository struct {
	db *sqlx.DB
}

// NewVehicleRepository constructs a VehicleRepository.
func NewVehicleRepository(db *sqlx.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// FindActiveByInstructor returns the active vehicle assigned to the
// instructor, or sql.ErrNoRows when none is.
func (r *VehicleRepository) FindActiveByInstructor(ctx context.Context, instructorID string) (*models.Vehicle, error) {
	query := fmt.Sprintf(`SELECT %s FROM vehicles
		WHERE instructor_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1`, vehicleColumns)
	var vehicle models.Vehicle
	if err := r.db.GetContext(ctx, &vehicle, query, instructorID); err != nil {
		return nil, err
	}
	return &vehicle, nil
}
