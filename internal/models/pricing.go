package models

import "time"

// LessonPricing holds the per-duration prices for a license class. It is
// consulted at booking time only; completed lessons keep their frozen cost.
type LessonPricing struct {
	ID            string    `db:"id" json:"id"`
	LicenseClass  string    `db:"license_class" json:"license_class"`
	PricePer30Min float64   `db:"price_per_30min" json:"price_per_30min"`
	PricePer60Min float64   `db:"price_per_60min" json:"price_per_60min"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// PriceFor returns the price for the requested duration.
func (p *LessonPricing) PriceFor(durationMinutes int) float64 {
	if durationMinutes <= 30 {
		return p.PricePer30Min
	}
	return p.PricePer60Min
}
