package domain

import "time"

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims represents verified JWT claims
type TokenClaims struct {
	UserID    string
	Email     string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair represents a freshly minted access and refresh token
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
