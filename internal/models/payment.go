package models

import "time"

// Payment records a balance top-up processed by an admin on the portal.
// This service only reads payments when summarising a student's account.
type Payment struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	Amount          float64   `db:"amount" json:"amount"`
	PaymentType     string    `db:"payment_type" json:"payment_type"`
	PaymentMethod   *string   `db:"payment_method" json:"payment_method,omitempty"`
	ReferenceNumber *string   `db:"reference_number" json:"reference_number,omitempty"`
	ProcessedBy     string    `db:"processed_by" json:"processed_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
