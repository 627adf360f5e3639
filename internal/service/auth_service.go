package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/domain"
	"github.com/dockmap/auth-service/internal/dto"
	"github.com/dockmap/auth-service/internal/repository"
	"github.com/dockmap/auth-service/internal/utils"
	"go.uber.org/zap"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// AuthServiceParams groups the collaborators of the auth service
type AuthServiceParams struct {
	Users      repository.UserRepository
	Codes      *CodeEngine
	Tokens     *utils.JWTManager
	Revoker    SessionRevoker
	Telegram   *TelegramVerifier
	VK         VKClient
	SMS        SMSSender
	Email      EmailSender
	Events     EventPublisher
	Metrics    Metrics
	Logger     *zap.Logger
	BCryptCost int
	Now        func() time.Time
}

// authService implements AuthService interface
type authService struct {
	users      repository.UserRepository
	codes      *CodeEngine
	tokens     *utils.JWTManager
	revoker    SessionRevoker
	telegram   *TelegramVerifier
	vk         VKClient
	sms        SMSSender
	email      EmailSender
	events     EventPublisher
	metrics    Metrics
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time

	// unknown accounts are checked against dummyHash so they cost the same bcrypt round
	dummyHash     string
	checkPassword func(password, hash string) bool
}

// NewAuthService creates a new auth service
func NewAuthService(p AuthServiceParams) AuthService {
	s := &authService{
		users:      p.Users,
		codes:      p.Codes,
		tokens:     p.Tokens,
		revoker:    p.Revoker,
		telegram:   p.Telegram,
		vk:         p.VK,
		sms:        p.SMS,
		email:      p.Email,
		events:     p.Events,
		metrics:    p.Metrics,
		logger:     p.Logger,
		bcryptCost: p.BCryptCost,
		now:        p.Now,

		checkPassword: utils.CheckPasswordHash,
	}

	if s.events == nil {
		s.events = nopEvents{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	dummy, err := utils.HashPassword("dockmap-unknown-account", s.bcryptCost)
	if err != nil {
		s.logger.Warn("Failed to prepare dummy password hash", zap.Error(err))
	}
	s.dummyHash = dummy

	return s
}

// SendOTP issues an SMS code for the phone and attempts delivery
func (s *authService) SendOTP(ctx context.Context, phone string) (*dto.SuccessResponse, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	code, err := s.codes.Issue(ctx, domain.PhoneSubject(normalized), domain.CodeTypeSMS)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to issue code")
	}
	s.metrics.RecordCodeIssued(ctx, string(domain.CodeTypeSMS))

	// the code stays valid even when delivery fails
	if err := s.sms.SendSMS(ctx, normalized, smsCodeText(code)); err != nil {
		s.logger.Warn("failed to deliver sms code",
			zap.String("phone", maskTail(normalized)),
			zap.Error(err),
		)
	}

	return &dto.SuccessResponse{Message: "Code sent"}, nil
}

// VerifyOTP consumes an SMS code and signs the phone owner in, creating the account on first use
func (s *authService) VerifyOTP(ctx context.Context, req *dto.VerifyOTPRequest, ip string) (result *AuthResponseWithRefreshToken, err error) {
	defer s.observe(ctx, domain.AuthProviderSMS, &err)

	normalized, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if !utils.ValidateCode(req.Code) {
		return nil, apperror.New(apperror.KindInvalidInput, "code must be 6 digits")
	}

	if err := s.codes.Verify(ctx, domain.PhoneSubject(normalized), domain.CodeTypeSMS, req.Code); err != nil {
		return nil, codeRejection(err, apperror.KindUnauthorized, "invalid code")
	}

	identity := &domain.Identity{Provider: domain.AuthProviderSMS, Phone: normalized}
	user, created, err := s.findOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	if !created && !user.IsPhoneVerified {
		user.IsPhoneVerified = true
		if err := s.users.Update(ctx, user); err != nil {
			return nil, apperror.Wrap(err, apperror.KindInternal, "failed to update user")
		}
	}

	return s.completeLogin(ctx, user, created, ip)
}

// RegisterEmail creates an email/password account and signs it in
func (s *authService) RegisterEmail(ctx context.Context, req *dto.RegisterEmailRequest, ip string) (result *AuthResponseWithRefreshToken, err error) {
	defer s.observe(ctx, domain.AuthProviderEmail, &err)

	email := utils.SanitizeEmail(req.Email)
	if !utils.ValidateEmail(email) {
		return nil, apperror.New(apperror.KindInvalidInput, "invalid email format")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.New(apperror.KindInvalidInput, "name is required")
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, apperror.New(apperror.KindInvalidInput,
			fmt.Sprintf("password must be %d to %d characters long", utils.MinPasswordLength, utils.MaxPasswordLength))
	}

	_, err = s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, apperror.New(apperror.KindConflict, "user with this email already exists")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to check user existence")
	}

	passwordHash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to hash password")
	}

	user := &domain.User{
		Name:         name,
		Phone:        "email_" + email,
		Email:        &email,
		AuthProvider: domain.AuthProviderEmail,
		PasswordHash: &passwordHash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if isDuplicate(err) {
			return nil, apperror.New(apperror.KindConflict, "user with this email already exists")
		}
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to create user")
	}

	return s.completeLogin(ctx, user, true, ip)
}

// LoginEmail authenticates an email/password account
func (s *authService) LoginEmail(ctx context.Context, req *dto.LoginEmailRequest, ip string) (result *AuthResponseWithRefreshToken, err error) {
	defer s.observe(ctx, domain.AuthProviderEmail, &err)

	invalid := apperror.New(apperror.KindUnauthorized, "invalid credentials")

	user, err := s.users.GetByEmail(ctx, utils.SanitizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Wrap(err, apperror.KindInternal, "failed to get user")
		}
		user = nil
	}

	hash := s.dummyHash
	usable := user != nil && user.AuthProvider == domain.AuthProviderEmail && user.PasswordHash != nil
	if usable {
		hash = *user.PasswordHash
	}
	if !s.checkPassword(req.Password, hash) || !usable {
		return nil, invalid
	}

	return s.completeLogin(ctx, user, false, ip)
}

// TelegramOAuthLink returns the Telegram login URL
func (s *authService) TelegramOAuthLink() (string, error) {
	return s.telegram.OAuthLink()
}

// AuthenticateTelegram verifies widget fields and signs the Telegram account in
func (s *authService) AuthenticateTelegram(ctx context.Context, fields map[string]string, ip string) (result *AuthResponseWithRefreshToken, err error) {
	defer s.observe(ctx, domain.AuthProviderTelegram, &err)

	identity, err := s.telegram.Resolve(fields)
	if err != nil {
		return nil, err
	}

	user, created, err := s.findOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	if !created && identity.Username != "" && (user.TelegramUsername == nil || *user.TelegramUsername != identity.Username) {
		username := identity.Username
		user.TelegramUsername = &username
		if err := s.users.Update(ctx, user); err != nil {
			s.logger.Warn("failed to refresh telegram username", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	return s.completeLogin(ctx, user, created, ip)
}

// AuthenticateVK exchanges a VK ID authorization code and signs the VK account in
func (s *authService) AuthenticateVK(ctx context.Context, req *dto.VKCallbackRequest, ip string) (result *AuthResponseWithRefreshToken, err error) {
	defer s.observe(ctx, domain.AuthProviderVK, &err)

	identity, err := s.vk.Exchange(ctx, VKAuthorization{
		Code:         req.Code,
		State:        req.State,
		DeviceID:     req.DeviceID,
		CodeVerifier: req.CodeVerifier,
	})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindUnauthorized {
			return nil, err
		}
		s.logger.Warn("vk authorization failed", zap.Error(err))
		return nil, apperror.Wrap(err, apperror.KindUnauthorized, "VK authorization failed")
	}

	user, created, err := s.findOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	return s.completeLogin(ctx, user, created, ip)
}

// RefreshTokens rotates the token pair of a valid, current refresh token
func (s *authService) RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*AuthResponseWithRefreshToken, error) {
	if accessToken != "" {
		// expired access tokens are expected here
		if _, err := s.tokens.ValidateAccessToken(accessToken); err != nil {
			s.logger.Debug("access token presented with refresh is not valid", zap.Error(err))
		}
	}

	user, err := s.currentSessionUser(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	return s.rotateSession(ctx, user, *user.RefreshTokenHash)
}

// ValidateRefreshToken checks a refresh token without rotating it
func (s *authService) ValidateRefreshToken(ctx context.Context, refreshToken string) bool {
	_, err := s.currentSessionUser(ctx, refreshToken)
	return err == nil
}

// ValidateAccessToken verifies an access token and that it was not revoked
func (s *authService) ValidateAccessToken(ctx context.Context, accessToken string) (*domain.TokenClaims, error) {
	claims, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	if s.revoker != nil {
		revokedAt, ok, err := s.revoker.RevokedAt(ctx, claims.UserID)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.KindInternal, "failed to check token revocation")
		}
		// a token minted in the same millisecond as the revocation is treated as revoked
		if ok && !claims.IssuedAt.After(revokedAt) {
			return nil, apperror.New(apperror.KindTokenInvalid, "token has been revoked")
		}
	}

	return claims, nil
}

// Logout clears the stored refresh fingerprint
func (s *authService) Logout(ctx context.Context, userID string) error {
	if err := s.revokeSessions(ctx, userID); err != nil {
		return err
	}
	s.publish(ctx, domain.EventUserLoggedOut, userID, "", "")
	return nil
}

// RevokeAllTokens invalidates every session of the user
func (s *authService) RevokeAllTokens(ctx context.Context, userID string) error {
	if err := s.revokeSessions(ctx, userID); err != nil {
		return err
	}
	s.publish(ctx, domain.EventUserSessionsRevoked, userID, "", "")
	return nil
}

// GetUser gets user information
func (s *authService) GetUser(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

// CompleteRegistration sets the role chosen during onboarding
func (s *authService) CompleteRegistration(ctx context.Context, userID string, req *dto.CompleteRegistrationRequest) (*dto.UserResponse, error) {
	role := domain.Role(req.Role)
	if !role.SelfAssignable() {
		return nil, apperror.New(apperror.KindInvalidInput, "role must be owner or club_admin")
	}
	if req.CityID != nil && *req.CityID <= 0 {
		return nil, apperror.New(apperror.KindInvalidInput, "cityId must be positive")
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != nil {
		return nil, apperror.New(apperror.KindConflict, "registration already completed")
	}

	user.Role = &role
	if req.CityID != nil {
		user.CityID = req.CityID
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to update user")
	}

	return toUserResponse(user), nil
}

// RequestEmailVerification sends an EMAIL code to the user's address
func (s *authService) RequestEmailVerification(ctx context.Context, userID string) (*dto.SuccessResponse, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Email == nil {
		return nil, apperror.New(apperror.KindInvalidInput, "user has no email address")
	}
	if user.IsEmailVerified {
		return nil, apperror.New(apperror.KindConflict, "email is already verified")
	}

	code, err := s.codes.Issue(ctx, domain.EmailSubject(*user.Email), domain.CodeTypeEmail)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to issue code")
	}
	s.metrics.RecordCodeIssued(ctx, string(domain.CodeTypeEmail))

	subject, html, err := emailVerificationEmail(code, s.codes.TTL(domain.CodeTypeEmail))
	if err == nil {
		err = s.email.SendEmail(ctx, *user.Email, subject, html)
	}
	if err != nil {
		s.logger.Warn("failed to deliver email verification code",
			zap.String("email", maskTail(*user.Email)),
			zap.Error(err),
		)
	}

	return &dto.SuccessResponse{Message: "Verification code sent"}, nil
}

// ConfirmEmail consumes an EMAIL code and marks the address verified
func (s *authService) ConfirmEmail(ctx context.Context, userID, code string) (*dto.UserResponse, error) {
	if !utils.ValidateCode(code) {
		return nil, apperror.New(apperror.KindInvalidInput, "code must be 6 digits")
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Email == nil {
		return nil, apperror.New(apperror.KindInvalidInput, "user has no email address")
	}

	if err := s.codes.Verify(ctx, domain.EmailSubject(*user.Email), domain.CodeTypeEmail, code); err != nil {
		return nil, codeRejection(err, apperror.KindInvalidCode, "invalid or expired code")
	}

	user.IsEmailVerified = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to update user")
	}

	return toUserResponse(user), nil
}

// CleanupExpiredCodes removes expired verification codes
func (s *authService) CleanupExpiredCodes(ctx context.Context) (int64, error) {
	return s.codes.CleanupExpired(ctx)
}

// findOrCreate fetches the user for the identity's canonical key, provisioning one on first sight
func (s *authService) findOrCreate(ctx context.Context, identity *domain.Identity) (*domain.User, bool, error) {
	user, err := s.lookup(ctx, identity)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperror.Wrap(err, apperror.KindInternal, "failed to get user")
	}

	user = newUserFromIdentity(identity)
	if err := s.users.Create(ctx, user); err != nil {
		if !isDuplicate(err) {
			return nil, false, apperror.Wrap(err, apperror.KindInternal, "failed to create user")
		}
		// a concurrent first login created the row
		existing, lookupErr := s.lookup(ctx, identity)
		if lookupErr != nil {
			return nil, false, apperror.Wrap(err, apperror.KindConflict, "account already exists")
		}
		return existing, false, nil
	}

	return user, true, nil
}

func (s *authService) lookup(ctx context.Context, identity *domain.Identity) (*domain.User, error) {
	switch identity.Provider {
	case domain.AuthProviderSMS:
		return s.users.GetByPhone(ctx, identity.Phone)
	case domain.AuthProviderEmail:
		return s.users.GetByEmail(ctx, identity.Email)
	default:
		return s.users.GetByProvider(ctx, identity.Provider, identity.ProviderID)
	}
}

// newUserFromIdentity builds a user without a role; onboarding sets it later
func newUserFromIdentity(identity *domain.Identity) *domain.User {
	user := &domain.User{AuthProvider: identity.Provider}

	switch identity.Provider {
	case domain.AuthProviderSMS:
		user.Phone = identity.Phone
		user.Name = "User_" + lastDigits(identity.Phone)
		user.IsPhoneVerified = true
	case domain.AuthProviderTelegram:
		providerID := identity.ProviderID
		user.Phone = "telegram_" + providerID
		user.ProviderID = &providerID
		if identity.Username != "" {
			username := identity.Username
			user.TelegramUsername = &username
		}
	case domain.AuthProviderVK:
		providerID := identity.ProviderID
		user.Phone = "vk_" + providerID
		user.ProviderID = &providerID
		user.VKID = &providerID
	}

	user.Name = firstNonEmpty(user.Name, identity.DisplayName, "User_"+lastDigits(identity.ProviderID))
	return user
}

// completeLogin records the login and issues a fresh session
func (s *authService) completeLogin(ctx context.Context, user *domain.User, created bool, ip string) (*AuthResponseWithRefreshToken, error) {
	if ip != "" {
		at := s.now()
		if err := s.users.UpdateLastLogin(ctx, user.ID, ip, at); err != nil {
			s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
		} else {
			user.LastLoginIP = &ip
			user.LastLoginAt = &at
		}
	}

	response, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to issue tokens")
	}

	eventType := domain.EventUserLoggedIn
	if created {
		eventType = domain.EventUserRegistered
	}
	s.publish(ctx, eventType, user.ID, user.AuthProvider, ip)

	return response, nil
}

// currentSessionUser returns the owner of refreshToken when it is still the stored session
func (s *authService) currentSessionUser(ctx context.Context, refreshToken string) (*domain.User, error) {
	if refreshToken == "" {
		return nil, apperror.New(apperror.KindUnauthorized, "refresh token is required")
	}

	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindUnauthorized, "invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.New(apperror.KindUnauthorized, "user not found")
		}
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to get user")
	}

	if !user.HasActiveSession() {
		return nil, apperror.New(apperror.KindUnauthorized, "refresh token not found")
	}
	if !utils.TokenMatchesHash(refreshToken, *user.RefreshTokenHash) {
		return nil, apperror.New(apperror.KindUnauthorized, "refresh token is no longer valid")
	}

	return user, nil
}

// revokeSessions clears the refresh fingerprint and rejects outstanding access tokens
func (s *authService) revokeSessions(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshTokenHash(ctx, userID, nil); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.New(apperror.KindNotFound, "user not found")
		}
		return apperror.Wrap(err, apperror.KindInternal, "failed to revoke session")
	}

	if s.revoker != nil {
		if err := s.revoker.RevokeBefore(ctx, userID, s.now(), s.tokens.AccessTokenTTL()); err != nil {
			s.logger.Warn("failed to revoke access tokens", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return nil
}

func (s *authService) getUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.New(apperror.KindNotFound, "user not found")
		}
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to get user")
	}
	return user, nil
}

func (s *authService) publish(ctx context.Context, eventType domain.EventType, userID string, provider domain.AuthProvider, ip string) {
	event := domain.AuthEvent{
		Type:       eventType,
		UserID:     userID,
		Provider:   provider,
		IPAddress:  ip,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish auth event", zap.String("type", string(eventType)), zap.Error(err))
	}
}

func (s *authService) observe(ctx context.Context, provider domain.AuthProvider, err *error) {
	outcome := outcomeSuccess
	if *err != nil {
		outcome = outcomeFailure
	}
	s.metrics.RecordAuthAttempt(ctx, string(provider), outcome)
}

// codeRejection collapses NotFound and Expired into kind, keeping the engine error as cause
func codeRejection(err error, kind apperror.Kind, message string) error {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound, apperror.KindExpired:
		return apperror.Wrap(err, kind, message)
	default:
		return apperror.Wrap(err, apperror.KindInternal, "failed to verify code")
	}
}

func isDuplicate(err error) bool {
	return errors.Is(err, repository.ErrDuplicatePhone) ||
		errors.Is(err, repository.ErrDuplicateEmail) ||
		errors.Is(err, repository.ErrDuplicateProvider)
}

func lastDigits(s string) string {
	if len(s) <= 4 {
		return s
	}
	return s[len(s)-4:]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
