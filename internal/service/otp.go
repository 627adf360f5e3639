package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/domain"
	"github.com/dockmap/auth-service/internal/repository"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// CodeTTLs holds the validity window per code type
type CodeTTLs struct {
	SMS           time.Duration
	Email         time.Duration
	PasswordReset time.Duration
}

func (t CodeTTLs) forType(codeType domain.CodeType) time.Duration {
	switch codeType {
	case domain.CodeTypeEmail:
		return t.Email
	case domain.CodeTypePasswordReset:
		return t.PasswordReset
	default:
		return t.SMS
	}
}

// CodeEngine issues and consumes one-time numeric codes
type CodeEngine struct {
	codes repository.VerificationCodeRepository
	ttls  CodeTTLs
	now   func() time.Time
}

// NewCodeEngine creates a new one-time code engine
func NewCodeEngine(codes repository.VerificationCodeRepository, ttls CodeTTLs) *CodeEngine {
	return &CodeEngine{
		codes: codes,
		ttls:  ttls,
		now:   time.Now,
	}
}

// WithClock replaces the engine time source
func (e *CodeEngine) WithClock(now func() time.Time) *CodeEngine {
	e.now = now
	return e
}

// TTL returns the validity window of a code type
func (e *CodeEngine) TTL(codeType domain.CodeType) time.Duration {
	return e.ttls.forType(codeType)
}

// Issue persists a fresh code for the subject and returns it for delivery.
// Earlier codes for the same subject stay valid until they expire or are used.
func (e *CodeEngine) Issue(ctx context.Context, subject domain.Subject, codeType domain.CodeType) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	vc := domain.NewVerificationCode(subject, codeType, code, e.now().Add(e.ttls.forType(codeType)))
	vc.CreatedAt = e.now()

	if err := e.codes.Create(ctx, vc); err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}

	return code, nil
}

// Verify consumes the newest matching unused code
func (e *CodeEngine) Verify(ctx context.Context, subject domain.Subject, codeType domain.CodeType, code string) error {
	vc, err := e.find(ctx, subject, codeType, code)
	if err != nil {
		return err
	}

	if err := e.codes.MarkUsed(ctx, vc.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.New(apperror.KindNotFound, "code not found")
		}
		return fmt.Errorf("failed to consume verification code: %w", err)
	}

	return nil
}

// Check validates a code without consuming it
func (e *CodeEngine) Check(ctx context.Context, subject domain.Subject, codeType domain.CodeType, code string) error {
	_, err := e.find(ctx, subject, codeType, code)
	return err
}

// CleanupExpired removes codes whose expiry has passed
func (e *CodeEngine) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, err := e.codes.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", err)
	}
	return deleted, nil
}

func (e *CodeEngine) find(ctx context.Context, subject domain.Subject, codeType domain.CodeType, code string) (*domain.VerificationCode, error) {
	vc, err := e.codes.FindLatestUnused(ctx, subject, codeType, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.New(apperror.KindNotFound, "code not found")
		}
		return nil, fmt.Errorf("failed to find verification code: %w", err)
	}

	if vc.IsExpired(e.now()) {
		return nil, apperror.New(apperror.KindExpired, "code expired")
	}

	return vc, nil
}

// generateCode returns a uniform random code in [100000, 999999]
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}
