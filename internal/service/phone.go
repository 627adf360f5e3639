package service

import (
	"strings"

	"github.com/dockmap/auth-service/internal/apperror"
)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

// NormalizePhone strips everything but digits and rewrites a leading 8 of an
// 11-digit Russian number to 7, so "+7 (900) 123-45-67" and "89001234567" both
// become "79001234567".
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) == 11 && digits[0] == '8' {
		digits = "7" + digits[1:]
	}

	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", apperror.New(apperror.KindInvalidInput, "invalid phone number")
	}

	return digits, nil
}

// maskTail keeps the last four characters of a subject for logs
func maskTail(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
