package repository

import (
	"github.com/dockmap/auth-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User             UserRepository
	VerificationCode VerificationCodeRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:             NewUserRepository(db),
		VerificationCode: NewVerificationCodeRepository(db),
	}
}
