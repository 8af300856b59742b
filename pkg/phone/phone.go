// Package phone canonicalizes inbound WhatsApp sender identifiers into
// E.164-shaped numbers with the Zimbabwe country code implied.
package phone

import "strings"

const countryCode = "263"

// Normalize strips everything but digits from the input and prefixes the
// country code: "263..." gains a "+", a leading "0" is swapped for "+263",
// and anything else is prefixed with "+263". The function is total and
// idempotent on its own output.
func Normalize(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	clean := digits.String()
	switch {
	case strings.HasPrefix(clean, countryCode):
		return "+" + clean
	case strings.HasPrefix(clean, "0"):
		return "+" + countryCode + clean[1:]
	default:
		return "+" + countryCode + clean
	}
}
