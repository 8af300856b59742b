package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/drivelink/drivelink-api/internal/models"
)

const userColumns = `id, username, email, first_name, last_name, phone, role, active,
	base_location, service_areas, latitude, longitude, hourly_rate_30min, hourly_rate_60min,
	is_verified, experience_years, average_rating, created_at, updated_at`

// UserRepository manages persistence for staff members.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID fetches a staff member by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindActiveByPhone fetches the active staff member owning the phone number.
func (r *UserRepository) FindActiveByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE phone = $1 AND active = TRUE`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, phone); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListActiveInstructors returns all active instructors ordered by ID so that
// arbitrary tie-breaks stay deterministic.
func (r *UserRepository) ListActiveInstructors(ctx context.Context) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE role = $1 AND active = TRUE ORDER BY id`, userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.RoleInstructor); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	return users, nil
}

// ListActiveInstructorsByLocation returns active instructors whose base
// location contains the given area, ordered by ID.
func (r *UserRepository) ListActiveInstructorsByLocation(ctx context.Context, location string) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users
		WHERE role = $1 AND active = TRUE AND base_location ILIKE '%%' || $2 || '%%'
		ORDER BY id`, userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.RoleInstructor, location); err != nil {
		return nil, fmt.Errorf("list instructors by location: %w", err)
	}
	return users, nil
}

// CountActiveStudents counts the active students currently assigned to the
// instructor.
func (r *UserRepository) CountActiveStudents(ctx context.Context, instructorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM students WHERE instructor_id = $1 AND is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instructorID); err != nil {
		return 0, fmt.Errorf("count instructor students: %w", err)
	}
	return count, nil
}

// CountActiveByRole counts the active staff with the given role.
func (r *UserRepository) CountActiveByRole(ctx context.Context, role string) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE role = $1 AND active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return count, nil
}

// HasActiveVehicleForClass reports whether the instructor owns an active
// vehicle of the given license class.
func (r *UserRepository) HasActiveVehicleForClass(ctx context.Context, instructorID, licenseClass string) (bool, error) {
	const query = `SELECT 1 FROM vehicles WHERE instructor_id = $1 AND license_class = $2 AND is_active = TRUE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, instructorID, licenseClass); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check instructor vehicle: %w", err)
	}
	return true, nil
}
