package models

import "time"

// Staff roles.
const (
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// User represents a staff member: instructor, admin or super admin.
// Staff are never deleted, only deactivated.
type User struct {
	ID              string     `db:"id" json:"id"`
	Username        string     `db:"username" json:"username"`
	Email           string     `db:"email" json:"email"`
	FirstName       *string    `db:"first_name" json:"first_name,omitempty"`
	LastName        *string    `db:"last_name" json:"last_name,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Role            string     `db:"role" json:"role"`
	Active          bool       `db:"active" json:"active"`
	BaseLocation    *string    `db:"base_location" json:"base_location,omitempty"`
	ServiceAreas    *string    `db:"service_areas" json:"service_areas,omitempty"`
	Latitude        *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude       *float64   `db:"longitude" json:"longitude,omitempty"`
	HourlyRate30Min *float64   `db:"hourly_rate_30min" json:"hourly_rate_30min,omitempty"`
	HourlyRate60Min *float64   `db:"hourly_rate_60min" json:"hourly_rate_60min,omitempty"`
	IsVerified      bool       `db:"is_verified" json:"is_verified"`
	ExperienceYears *int       `db:"experience_years" json:"experience_years,omitempty"`
	AverageRating   *float64   `db:"average_rating" json:"average_rating,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName returns the display name, falling back to the username.
func (u *User) FullName() string {
	if u.FirstName != nil && u.LastName != nil {
		return *u.FirstName + " " + *u.LastName
	}
	return u.Username
}

// IsStaffRole reports whether the given role names a staff member.
func IsStaffRole(role string) bool {
	switch role {
	case RoleInstructor, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}
