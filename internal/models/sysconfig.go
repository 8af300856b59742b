package models

import "time"

// SystemConfig keys recognised by this service.
const (
	ConfigTwilioAccountSID     = "TWILIO_ACCOUNT_SID"
	ConfigTwilioAuthToken      = "TWILIO_AUTH_TOKEN"
	ConfigTwilioWhatsAppNumber = "TWILIO_WHATSAPP_NUMBER"
)

// SystemConfig is a key/value override table maintained on the admin portal.
type SystemConfig struct {
	ID          string    `db:"id" json:"id"`
	Key         string    `db:"key" json:"key"`
	Value       *string   `db:"value" json:"value,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
