package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// claims is the signed payload of both access and refresh tokens
type claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Type   string `json:"typ"`

	// IssuedAtMilli is iat at millisecond precision, compared against session revocations
	IssuedAtMilli int64 `json:"iat_ms,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager manages JWT token operations.
// Access and refresh tokens are signed with distinct secrets.
type JWTManager struct {
	accessSecret       []byte
	refreshSecret      []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	now                func() time.Time
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(accessSecret, refreshSecret string, accessTokenExpiry, refreshTokenExpiry time.Duration) *JWTManager {
	return &JWTManager{
		accessSecret:       []byte(accessSecret),
		refreshSecret:      []byte(refreshSecret),
		accessTokenExpiry:  accessTokenExpiry,
		refreshTokenExpiry: refreshTokenExpiry,
		now:                time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating tokens
func (j *JWTManager) WithClock(now func() time.Time) *JWTManager {
	j.now = now
	return j
}

// GenerateAccessToken generates a new access token
func (j *JWTManager) GenerateAccessToken(userID, email string) (string, error) {
	return j.sign(userID, email, domain.TokenTypeAccess, j.accessSecret, j.accessTokenExpiry)
}

// GenerateRefreshToken generates a new refresh token
func (j *JWTManager) GenerateRefreshToken(userID, email string) (string, error) {
	return j.sign(userID, email, domain.TokenTypeRefresh, j.refreshSecret, j.refreshTokenExpiry)
}

// GeneratePair mints a fresh access and refresh token for the user
func (j *JWTManager) GeneratePair(userID, email string) (*domain.TokenPair, error) {
	accessToken, err := j.GenerateAccessToken(userID, email)
	if err != nil {
		return nil, err
	}

	refreshToken, err := j.GenerateRefreshToken(userID, email)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// ValidateAccessToken validates an access token and returns its claims
func (j *JWTManager) ValidateAccessToken(tokenString string) (*domain.TokenClaims, error) {
	return j.validate(tokenString, domain.TokenTypeAccess, j.accessSecret)
}

// ValidateRefreshToken validates a refresh token and returns its claims
func (j *JWTManager) ValidateRefreshToken(tokenString string) (*domain.TokenClaims, error) {
	return j.validate(tokenString, domain.TokenTypeRefresh, j.refreshSecret)
}

// GetAccessTokenExpiry returns the access token expiry duration in seconds
func (j *JWTManager) GetAccessTokenExpiry() int {
	return int(j.accessTokenExpiry.Seconds())
}

// AccessTokenTTL returns the access token lifetime
func (j *JWTManager) AccessTokenTTL() time.Duration {
	return j.accessTokenExpiry
}

// RefreshTokenTTL returns the refresh token lifetime
func (j *JWTManager) RefreshTokenTTL() time.Duration {
	return j.refreshTokenExpiry
}

func (j *JWTManager) sign(userID, email, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserID:        userID,
		Email:         email,
		Type:          tokenType,
		IssuedAtMilli: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return tokenString, nil
}

func (j *JWTManager) validate(tokenString, tokenType string, secret []byte) (*domain.TokenClaims, error) {
	parsed := &claims{}
	_, err := jwt.ParseWithClaims(tokenString, parsed, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.Wrap(err, apperror.KindTokenExpired, "token expired")
		}
		return nil, apperror.Wrap(err, apperror.KindTokenInvalid, "invalid token")
	}

	if parsed.Type != tokenType {
		return nil, apperror.New(apperror.KindTokenInvalid, "invalid token type")
	}
	if parsed.UserID == "" {
		return nil, apperror.New(apperror.KindTokenInvalid, "invalid id in token")
	}

	result := &domain.TokenClaims{
		UserID:    parsed.UserID,
		Email:     parsed.Email,
		Type:      parsed.Type,
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	switch {
	case parsed.IssuedAtMilli > 0:
		result.IssuedAt = time.UnixMilli(parsed.IssuedAtMilli)
	case parsed.IssuedAt != nil:
		result.IssuedAt = parsed.IssuedAt.Time
	}

	return result, nil
}
