package models

import "time"

// Conversation state tags. Each names a position in the per-phone state
// machine; payload-bearing states carry structured data in Payload.
const (
	StateMainMenu             = "main_menu"
	StateAwaitingDuration     = "awaiting_duration"
	StateAwaitingBookingSlot  = "awaiting_booking_slot"
	StateAwaitingCancelSelect = "awaiting_cancel_selection"
	StateAwaitingLocation     = "awaiting_location_update"
	StateAwaitingEmail        = "awaiting_email_update"
	StateAwaitingInstructor   = "awaiting_instructor_selection"
)

// Session is the per-phone conversation record, keyed by
// session_<phone>_<yyyymmdd> in the session store.
type Session struct {
	Phone        string         `json:"phone"`
	State        string         `json:"state"`
	Payload      SessionPayload `json:"payload"`
	LastActivity time.Time      `json:"last_activity"`
	IsActive     bool           `json:"is_active"`
}

// SessionPayload holds per-state context. The cached slot list keeps an
// implicit numeric reply pointing at the same enumeration the student saw.
type SessionPayload struct {
	DurationMinutes int         `json:"duration_minutes,omitempty"`
	Slots           []time.Time `json:"slots,omitempty"`
	LessonIDs       []string    `json:"lesson_ids,omitempty"`
	InstructorIDs   []string    `json:"instructor_ids,omitempty"`
}

// Empty reports whether the payload carries no cached context.
func (p SessionPayload) Empty() bool {
	return p.DurationMinutes == 0 && len(p.Slots) == 0 && len(p.LessonIDs) == 0 && len(p.InstructorIDs) == 0
}

// Registration steps for unknown phones.
const (
	RegStepName         = "awaiting_name"
	RegStepEmail        = "awaiting_email"
	RegStepLocation     = "awaiting_location"
	RegStepLicenseType  = "awaiting_license_type"
	RegStepConfirmation = "awaiting_confirmation"
)

// RegistrationState accumulates onboarding answers for a phone that has no
// student record yet. Keyed by registration_<phone> in the session store.
type RegistrationState struct {
	Phone       string    `json:"phone"`
	Step        string    `json:"step"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Location    string    `json:"location,omitempty"`
	LicenseType string    `json:"license_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
