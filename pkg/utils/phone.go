package utils

import (
	"errors"
	"strings"
)

// ErrInvalidPhone indicates the phone number could not be normalized
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts a phone number into bare international digits the
// way the WhatsApp bridge expects them: no plus sign, no separators, and a
// leading "0" rewritten to the default country code (62).
//
//	+62 812-3456-789 -> 628123456789
//	08123456789      -> 628123456789
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r != '+' && r != '-' && r != ' ' && r != '(' && r != ')' && r != '.' {
			return "", ErrInvalidPhone
		}
	}

	digits := b.String()
	if strings.HasPrefix(digits, "0") {
		digits = "62" + digits[1:]
	}

	// WhatsApp numbers are 8-15 digits including country code
	if len(digits) < 8 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}

	return digits, nil
}
