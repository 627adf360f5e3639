package service

import (
	"context"
	"time"

	"github.com/dockmap/auth-service/internal/domain"
	"github.com/dockmap/auth-service/internal/dto"
)

// AuthService defines methods for authentication operations
type AuthService interface {
	SendOTP(ctx context.Context, phone string) (*dto.SuccessResponse, error)
	VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest, ip string) (*AuthResponseWithRefreshToken, error)
	RegisterEmail(ctx context.Context, req *dto.RegisterEmailRequest, ip string) (*AuthResponseWithRefreshToken, error)
	LoginEmail(ctx context.Context, req *dto.LoginEmailRequest, ip string) (*AuthResponseWithRefreshToken, error)
	TelegramOAuthLink() (string, error)
	AuthenticateTelegram(ctx context.Context, fields map[string]string, ip string) (*AuthResponseWithRefreshToken, error)
	AuthenticateVK(ctx context.Context, req *dto.VKCallbackRequest, ip string) (*AuthResponseWithRefreshToken, error)

	RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*AuthResponseWithRefreshToken, error)
	ValidateRefreshToken(ctx context.Context, refreshToken string) bool
	ValidateAccessToken(ctx context.Context, accessToken string) (*domain.TokenClaims, error)
	Logout(ctx context.Context, userID string) error
	RevokeAllTokens(ctx context.Context, userID string) error

	GetUser(ctx context.Context, userID string) (*dto.UserResponse, error)
	CompleteRegistration(ctx context.Context, userID string, req *dto.CompleteRegistrationRequest) (*dto.UserResponse, error)
	RequestEmailVerification(ctx context.Context, userID string) (*dto.SuccessResponse, error)
	ConfirmEmail(ctx context.Context, userID, code string) (*dto.UserResponse, error)

	RequestPasswordReset(ctx context.Context, email string) (*dto.StatusResponse, error)
	VerifyPasswordResetCode(ctx context.Context, email, code string) (*dto.StatusResponse, error)
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) (*dto.StatusResponse, error)

	CleanupExpiredCodes(ctx context.Context) (int64, error)
}

// SMSSender delivers a text message to a normalized phone number
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// EmailSender delivers an HTML message to an address
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// EventPublisher ships auth lifecycle events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event domain.AuthEvent) error
}

// SessionRevoker remembers the instant after which a user's access tokens are no longer accepted
type SessionRevoker interface {
	RevokeBefore(ctx context.Context, userID string, at time.Time, ttl time.Duration) error
	RevokedAt(ctx context.Context, userID string) (time.Time, bool, error)
}

// Metrics records auth outcomes
type Metrics interface {
	RecordAuthAttempt(ctx context.Context, provider, outcome string)
	RecordCodeIssued(ctx context.Context, codeType string)
}

type nopMetrics struct{}

func (nopMetrics) RecordAuthAttempt(context.Context, string, string) {}
func (nopMetrics) RecordCodeIssued(context.Context, string)          {}

type nopEvents struct{}

func (nopEvents) Publish(context.Context, domain.AuthEvent) error { return nil }
