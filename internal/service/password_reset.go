package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/domain"
	"github.com/dockmap/auth-service/internal/dto"
	"github.com/dockmap/auth-service/internal/repository"
	"github.com/dockmap/auth-service/internal/utils"
	"go.uber.org/zap"
)

const resetRequestedMessage = "If the email is registered, a reset code has been sent"

// RequestPasswordReset issues a PASSWORD_RESET code for an email account.
// The answer is the same whether or not the address belongs to an account.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) (*dto.StatusResponse, error) {
	email = utils.SanitizeEmail(email)
	if !utils.ValidateEmail(email) {
		return nil, apperror.New(apperror.KindInvalidInput, "invalid email format")
	}

	accepted := &dto.StatusResponse{Success: true, Message: resetRequestedMessage}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return accepted, nil
		}
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to get user")
	}
	if user.AuthProvider != domain.AuthProviderEmail {
		s.logger.Debug("password reset requested for non-email account", zap.String("user_id", user.ID))
		return accepted, nil
	}

	code, err := s.codes.Issue(ctx, domain.EmailSubject(email), domain.CodeTypePasswordReset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to issue code")
	}
	s.metrics.RecordCodeIssued(ctx, string(domain.CodeTypePasswordReset))

	subject, html, err := passwordResetEmail(code, s.codes.TTL(domain.CodeTypePasswordReset))
	if err == nil {
		err = s.email.SendEmail(ctx, email, subject, html)
	}
	if err != nil {
		s.logger.Warn("failed to deliver password reset code",
			zap.String("email", maskTail(email)),
			zap.Error(err),
		)
	}

	return accepted, nil
}

// VerifyPasswordResetCode checks a reset code without consuming it
func (s *authService) VerifyPasswordResetCode(ctx context.Context, email, code string) (*dto.StatusResponse, error) {
	if !utils.ValidateCode(code) {
		return nil, apperror.New(apperror.KindInvalidCode, "invalid or expired code")
	}

	err := s.codes.Check(ctx, domain.EmailSubject(utils.SanitizeEmail(email)), domain.CodeTypePasswordReset, code)
	if err != nil {
		return nil, codeRejection(err, apperror.KindInvalidCode, "invalid or expired code")
	}

	return &dto.StatusResponse{Success: true, Message: "Code is valid"}, nil
}

// ResetPassword consumes a reset code, stores the new password and signs the user out everywhere
func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) (*dto.StatusResponse, error) {
	if !utils.ValidatePassword(req.NewPassword) {
		return nil, apperror.New(apperror.KindInvalidInput,
			fmt.Sprintf("password must be %d to %d characters long", utils.MinPasswordLength, utils.MaxPasswordLength))
	}
	if !utils.ValidateCode(req.Code) {
		return nil, apperror.New(apperror.KindInvalidCode, "invalid or expired code")
	}

	email := utils.SanitizeEmail(req.Email)
	if err := s.codes.Verify(ctx, domain.EmailSubject(email), domain.CodeTypePasswordReset, req.Code); err != nil {
		return nil, codeRejection(err, apperror.KindInvalidCode, "invalid or expired code")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.New(apperror.KindInvalidCode, "invalid or expired code")
		}
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to get user")
	}

	passwordHash, err := utils.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return nil, apperror.Wrap(err, apperror.KindInternal, "failed to update password")
	}

	// receiving the code proves control of the mailbox
	if !user.IsEmailVerified {
		user.IsEmailVerified = true
		if err := s.users.Update(ctx, user); err != nil {
			s.logger.Warn("failed to mark email verified", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	if err := s.revokeSessions(ctx, user.ID); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventUserPasswordReset, user.ID, user.AuthProvider, "")

	return &dto.StatusResponse{Success: true, Message: "Password has been reset"}, nil
}
