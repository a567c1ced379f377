// Package phone normalizes guardian phone numbers to the WhatsApp
// destination format for Chilean mobiles ("56" + 9 digits starting with 9).
package phone

import (
	"errors"
	"strings"
)

var (
	ErrEmpty     = errors.New("phone: empty number")
	ErrNotMobile = errors.New("phone: not a mobile number")
	ErrBadLength = errors.New("phone: wrong number of digits")
)

// Normalize strips formatting, the national trunk "0" and the country code
// "56", and validates the remainder as a 9-digit Chilean mobile. The result
// is the full international form without "+".
func Normalize(input string) (string, error) {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", ErrEmpty
	}

	digits = strings.TrimPrefix(digits, "0")
	digits = strings.TrimPrefix(digits, "56")

	if !strings.HasPrefix(digits, "9") {
		return "", ErrNotMobile
	}
	if len(digits) != 9 {
		return "", ErrBadLength
	}
	return "56" + digits, nil
}
