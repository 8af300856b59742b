package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already e164", "+263771234567", "+263771234567"},
		{"country code without plus", "263771234567", "+263771234567"},
		{"local leading zero", "0771234567", "+263771234567"},
		{"bare subscriber number", "771234567", "+263771234567"},
		{"whatsapp prefix", "whatsapp:+263771234567", "+263771234567"},
		{"spaces and dashes", "077 123-4567", "+263771234567"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"+263771234567", "0771234567", "771234567", "whatsapp:0771234567"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}
