package repository

import (
	"context"
	"time"

	"github.com/dockmap/auth-service/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByProvider(ctx context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error)
	// Update writes profile and verification fields. It never touches the refresh-token fingerprint.
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, userID, ip string, at time.Time) error
	// SetRefreshTokenHash overwrites the fingerprint; nil clears it.
	SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error
	// RotateRefreshTokenHash replaces oldHash with newHash and returns ErrNotFound if oldHash is no longer stored.
	RotateRefreshTokenHash(ctx context.Context, userID, oldHash, newHash string) error
}

// VerificationCodeRepository defines methods for one-time code operations
type VerificationCodeRepository interface {
	Create(ctx context.Context, code *domain.VerificationCode) error
	// FindLatestUnused returns the newest unused code for subject, type and value, expired or not.
	FindLatestUnused(ctx context.Context, subject domain.Subject, codeType domain.CodeType, code string) (*domain.VerificationCode, error)
	// MarkUsed flips is_used only if it is still false and returns ErrNotFound otherwise.
	MarkUsed(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
