package models

import "time"

// License classes offered by the school.
const (
	LicenseClass4     = "Class 4"
	LicenseClass2     = "Class 2"
	LicenseMotorcycle = "Motorcycle"
	LicenseOther      = "Other"
)

// LicenseTypeFromChoice maps a registration menu digit to a license class.
func LicenseTypeFromChoice(choice string) (string, bool) {
	switch choice {
	case "1":
		return LicenseClass4, true
	case "2":
		return LicenseClass2, true
	case "3":
		return LicenseMotorcycle, true
	case "4":
		return LicenseOther, true
	}
	return "", false
}

// Student represents a learner identified by their WhatsApp phone number.
// Students are never deleted, only deactivated.
type Student struct {
	ID                   string    `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	Phone                string    `db:"phone" json:"phone"`
	Email                *string   `db:"email" json:"email,omitempty"`
	CurrentLocation      *string   `db:"current_location" json:"current_location,omitempty"`
	Latitude             *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude            *float64  `db:"longitude" json:"longitude,omitempty"`
	LicenseType          string    `db:"license_type" json:"license_type"`
	InstructorID         *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	RegistrationDate     time.Time `db:"registration_date" json:"registration_date"`
	IsActive             bool      `db:"is_active" json:"is_active"`
	TotalLessonsRequired int       `db:"total_lessons_required" json:"total_lessons_required"`
	LessonsCompleted     int       `db:"lessons_completed" json:"lessons_completed"`
	AccountBalance       float64   `db:"account_balance" json:"account_balance"`
}

// ProgressPercentage returns completion toward the required lesson count,
// capped at 100.
func (s *Student) ProgressPercentage() float64 {
	if s.TotalLessonsRequired == 0 {
		return 0
	}
	pct := float64(s.LessonsCompleted) / float64(s.TotalLessonsRequired) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
