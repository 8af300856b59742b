package models

import "time"

// Vehicle is a training car owned by the school and assigned to an
// instructor. The matcher prefers instructors whose active vehicle matches
// the student's license class.
type Vehicle struct {
	ID                 string    `db:"id" json:"id"`
	RegistrationNumber string    `db:"registration_number" json:"registration_number"`
	Make               string    `db:"make" json:"make"`
	Model              string    `db:"model" json:"model"`
	Year               int       `db:"year" json:"year"`
	LicenseClass       string    `db:"license_class" json:"license_class"`
	InstructorID       *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
