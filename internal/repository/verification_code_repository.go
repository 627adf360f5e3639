package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dockmap/auth-service/internal/domain"
	"github.com/dockmap/auth-service/pkg/database"
	"github.com/google/uuid"
)

// verificationCodeRepository implements VerificationCodeRepository interface
type verificationCodeRepository struct {
	db *database.Postgres
}

// NewVerificationCodeRepository creates a new verification code repository
func NewVerificationCodeRepository(db *database.Postgres) VerificationCodeRepository {
	return &verificationCodeRepository{db: db}
}

// Create stores a new code. Earlier codes for the same subject stay valid.
func (r *verificationCodeRepository) Create(ctx context.Context, code *domain.VerificationCode) error {
	query := `
		INSERT INTO verification_codes (id, phone_number, email, code, type, is_used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		code.ID,
		code.PhoneNumber,
		code.Email,
		code.Code,
		string(code.Type),
		code.IsUsed,
		code.ExpiresAt,
		code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification code: %w", err)
	}

	return nil
}

// FindLatestUnused retrieves the most recent unused code matching subject, type and value
func (r *verificationCodeRepository) FindLatestUnused(ctx context.Context, subject domain.Subject, codeType domain.CodeType, code string) (*domain.VerificationCode, error) {
	column, err := subjectColumn(subject)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, phone_number, email, code, type, is_used, expires_at, created_at
		FROM verification_codes
		WHERE ` + column + ` = $1 AND type = $2 AND code = $3 AND is_used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`

	vc := &domain.VerificationCode{}
	var phone, email sql.NullString
	var typ string

	err = r.db.DB.QueryRowContext(ctx, query, subject.Value, string(codeType), code).Scan(
		&vc.ID,
		&phone,
		&email,
		&vc.Code,
		&typ,
		&vc.IsUsed,
		&vc.ExpiresAt,
		&vc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification code for %s not found: %w", subject.Channel, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get verification code: %w", err)
	}

	vc.Type = domain.CodeType(typ)
	vc.PhoneNumber = nullString(phone)
	vc.Email = nullString(email)

	return vc, nil
}

// MarkUsed consumes a code with a single conditional update
func (r *verificationCodeRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE verification_codes SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`

	result, err := r.db.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark verification code used: %w", err)
	}

	return expectOneRow(result, fmt.Sprintf("unused verification code %s", id))
}

// DeleteExpired deletes all codes past their expiry and returns how many were removed
func (r *verificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM verification_codes WHERE expires_at < $1`

	result, err := r.db.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification codes: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

func subjectColumn(subject domain.Subject) (string, error) {
	switch subject.Channel {
	case domain.ChannelPhone:
		return "phone_number", nil
	case domain.ChannelEmail:
		return "email", nil
	default:
		return "", fmt.Errorf("unknown verification channel %q", subject.Channel)
	}
}
