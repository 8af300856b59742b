package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/drivelink/drivelink-api/internal/models"
)

const studentColumns = `id, name, phone, email, current_location, latitude, longitude,
	license_type, instructor_id, registration_date, is_active, total_lessons_required,
	lessons_completed, account_balance`

// StudentRepository manages persistence for students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindActiveByPhone fetches the active student owning the phone number.
// Phone uniqueness is enforced by a constraint on the column.
func (r *StudentRepository) FindActiveByPhone(ctx context.Context, phone string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE phone = $1 AND is_active = TRUE`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, phone); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.RegistrationDate.IsZero() {
		student.RegistrationDate = time.Now().UTC()
	}
	if student.TotalLessonsRequired == 0 {
		student.TotalLessonsRequired = 20
	}

	const query = `INSERT INTO students (id, name, phone, email, current_location, latitude, longitude,
			license_type, instructor_id, registration_date, is_active, total_lessons_required,
			lessons_completed, account_balance)
		VALUES (:id, :name, :phone, :email, :current_location, :latitude, :longitude,
			:license_type, :instructor_id, :registration_date, :is_active, :total_lessons_required,
			:lessons_completed, :account_balance)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpdateLocation sets the student's current location.
func (r *StudentRepository) UpdateLocation(ctx context.Context, id, location string) error {
	const query = `UPDATE students SET current_location = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, location); err != nil {
		return fmt.Errorf("update student location: %w", err)
	}
	return nil
}

// UpdateEmail sets the student's email address.
func (r *StudentRepository) UpdateEmail(ctx context.Context, id, email string) error {
	const query = `UPDATE students SET email = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, email); err != nil {
		return fmt.Errorf("update student email: %w", err)
	}
	return nil
}

// UpdateInstructor reassigns the student to another instructor.
func (r *StudentRepository) UpdateInstructor(ctx context.Context, id, instructorID string) error {
	const query = `UPDATE students SET instructor_id = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, instructorID); err != nil {
		return fmt.Errorf("update student instructor: %w", err)
	}
	return nil
}

// ListActiveByInstructor returns the instructor's active students ordered by
// name.
func (r *StudentRepository) ListActiveByInstructor(ctx context.Context, instructorID string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students
		WHERE instructor_id = $1 AND is_active = TRUE
		ORDER BY name`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor students: %w", err)
	}
	return students, nil
}

// ListActive returns active students ordered by name.
func (r *StudentRepository) ListActive(ctx context.Context, limit int) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students
		WHERE is_active = TRUE
		ORDER BY name
		LIMIT $1`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, limit); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// CountActive counts all active students.
func (r *StudentRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM students WHERE is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// ListWithLowBalance returns active students whose balance no longer covers
// a 30-minute lesson at their license class pricing.
func (r *StudentRepository) ListWithLowBalance(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s
		WHERE s.is_active = TRUE AND EXISTS (
			SELECT 1 FROM lesson_pricing p
			WHERE p.license_class = s.license_type AND s.account_balance < p.price_per_30min
		)`, prefixColumns("s", studentColumns))
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list low balance students: %w", err)
	}
	return students, nil
}
