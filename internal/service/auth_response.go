package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/domain"
	"github.com/dockmap/auth-service/internal/dto"
	"github.com/dockmap/auth-service/internal/repository"
	"github.com/dockmap/auth-service/internal/utils"
)

// AuthResponseWithRefreshToken contains auth response and refresh token
type AuthResponseWithRefreshToken struct {
	AuthResponse *dto.AuthResponse
	RefreshToken string
	ExpiresIn    int // Refresh token expiry in seconds
}

// issueSession mints a new token pair and overwrites the stored refresh fingerprint
func (s *authService) issueSession(ctx context.Context, user *domain.User) (*AuthResponseWithRefreshToken, error) {
	pair, err := s.tokens.GeneratePair(user.ID, user.EmailOrEmpty())
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	hash := utils.HashToken(pair.RefreshToken)
	if err := s.users.SetRefreshTokenHash(ctx, user.ID, &hash); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}
	user.RefreshTokenHash = &hash

	return s.authResponse(user, pair), nil
}

// rotateSession replaces the refresh fingerprint only if oldHash is still the stored one
func (s *authService) rotateSession(ctx context.Context, user *domain.User, oldHash string) (*AuthResponseWithRefreshToken, error) {
	pair, err := s.tokens.GeneratePair(user.ID, user.EmailOrEmpty())
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	hash := utils.HashToken(pair.RefreshToken)
	if err := s.users.RotateRefreshTokenHash(ctx, user.ID, oldHash, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.New(apperror.KindUnauthorized, "refresh token is no longer valid")
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	user.RefreshTokenHash = &hash

	return s.authResponse(user, pair), nil
}

func (s *authService) authResponse(user *domain.User, pair *domain.TokenPair) *AuthResponseWithRefreshToken {
	return &AuthResponseWithRefreshToken{
		AuthResponse: &dto.AuthResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			User:         toUserInfo(user),
		},
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(s.tokens.RefreshTokenTTL().Seconds()),
	}
}

func toUserInfo(user *domain.User) dto.UserInfo {
	info := dto.UserInfo{
		ID:           user.ID,
		Name:         user.Name,
		Phone:        user.Phone,
		Email:        user.Email,
		AuthProvider: string(user.AuthProvider),
	}
	if user.Role != nil {
		role := string(*user.Role)
		info.Role = &role
	}
	return info
}

func toUserResponse(user *domain.User) *dto.UserResponse {
	response := &dto.UserResponse{
		UserInfo:         toUserInfo(user),
		TelegramUsername: user.TelegramUsername,
		CityID:           user.CityID,
		IsPhoneVerified:  user.IsPhoneVerified,
		IsEmailVerified:  user.IsEmailVerified,
		CreatedAt:        user.CreatedAt.Format(time.RFC3339),
	}

	if user.LastLoginAt != nil {
		lastLogin := user.LastLoginAt.Format(time.RFC3339)
		response.LastLoginAt = &lastLogin
	}

	return response
}
