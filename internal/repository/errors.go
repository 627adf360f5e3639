package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found or a conditional update matched nothing
	ErrNotFound = errors.New("record not found")

	// ErrDuplicatePhone is returned when the phone (real or synthetic) is already taken
	ErrDuplicatePhone = errors.New("user with this phone already exists")

	// ErrDuplicateEmail is returned when trying to create a user with an existing email
	ErrDuplicateEmail = errors.New("user with this email already exists")

	// ErrDuplicateProvider is returned when the provider account is already linked to a user
	ErrDuplicateProvider = errors.New("provider account already linked")
)

const uniqueViolation = "23505"

// mapUniqueViolation converts a unique_violation into the matching sentinel, or returns nil
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}

	switch {
	case strings.Contains(pqErr.Constraint, "email"):
		return ErrDuplicateEmail
	case strings.Contains(pqErr.Constraint, "provider"):
		return ErrDuplicateProvider
	default:
		return ErrDuplicatePhone
	}
}
