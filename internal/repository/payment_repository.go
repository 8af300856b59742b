package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/drivelink/drivelink-api/internal/models"
)

const paymentColumns = `id, student_id, amount, payment_type, payment_method, reference_number,
	processed_by, created_at`

// PaymentRepository reads the top-up history recorded by the admin portal.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// ListRecentByStudent returns the student's latest payments, newest first.
func (r *PaymentRepository) ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, paymentColumns)
	payments := []models.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, studentID, limit); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
