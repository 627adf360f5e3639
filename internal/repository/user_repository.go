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

const userColumns = `id, name, phone, email, role, auth_provider, provider_id, password_hash,
	telegram_username, vk_id, city_id, is_phone_verified, is_email_verified,
	refresh_token_hash, last_login_ip, last_login_at, created_at, updated_at`

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, phone, email, role, auth_provider, provider_id, password_hash,
			telegram_username, vk_id, city_id, is_phone_verified, is_email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Phone,
		user.Email,
		roleValue(user.Role),
		string(user.AuthProvider),
		user.ProviderID,
		user.PasswordHash,
		user.TelegramUsername,
		user.VKID,
		user.CityID,
		user.IsPhoneVerified,
		user.IsEmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if dup := mapUniqueViolation(err); dup != nil {
			return fmt.Errorf("failed to create user: %w", dup)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
	}
	return r.getOne(ctx, "id = $1", id)
}

// GetByPhone retrieves a user by normalized or synthetic phone
func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getOne(ctx, "phone = $1", phone)
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email = $1", email)
}

// GetByProvider retrieves a user by external provider account
func (r *userRepository) GetByProvider(ctx context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error) {
	return r.getOne(ctx, "auth_provider = $1 AND provider_id = $2", string(provider), providerID)
}

func (r *userRepository) getOne(ctx context.Context, where string, args ...any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(r.db.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user where %s %v not found: %w", where, args, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Update updates profile and verification fields of an existing user
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, role = $4, telegram_username = $5, vk_id = $6, city_id = $7,
			is_phone_verified = $8, is_email_verified = $9, updated_at = $10
		WHERE id = $1
	`

	user.UpdatedAt = time.Now()
	result, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		roleValue(user.Role),
		user.TelegramUsername,
		user.VKID,
		user.CityID,
		user.IsPhoneVerified,
		user.IsEmailVerified,
		user.UpdatedAt,
	)
	if err != nil {
		if dup := mapUniqueViolation(err); dup != nil {
			return fmt.Errorf("failed to update user: %w", dup)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	return expectOneRow(result, fmt.Sprintf("user with id %s", user.ID))
}

// UpdatePassword stores a new password hash
func (r *userRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, userID, passwordHash, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	return expectOneRow(result, fmt.Sprintf("user with id %s", userID))
}

// UpdateLastLogin updates the last login address and timestamp for a user
func (r *userRepository) UpdateLastLogin(ctx context.Context, userID, ip string, at time.Time) error {
	query := `UPDATE users SET last_login_ip = $2, last_login_at = $3 WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, userID, ip, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return expectOneRow(result, fmt.Sprintf("user with id %s", userID))
}

// SetRefreshTokenHash overwrites the stored refresh-token fingerprint
func (r *userRepository) SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error {
	query := `UPDATE users SET refresh_token_hash = $2 WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, userID, hash)
	if err != nil {
		return fmt.Errorf("failed to set refresh token hash: %w", err)
	}

	return expectOneRow(result, fmt.Sprintf("user with id %s", userID))
}

// RotateRefreshTokenHash swaps the fingerprint only if the presented one is still current
func (r *userRepository) RotateRefreshTokenHash(ctx context.Context, userID, oldHash, newHash string) error {
	query := `UPDATE users SET refresh_token_hash = $3 WHERE id = $1 AND refresh_token_hash = $2`

	result, err := r.db.DB.ExecContext(ctx, query, userID, oldHash, newHash)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token hash: %w", err)
	}

	return expectOneRow(result, fmt.Sprintf("refresh token of user %s", userID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var (
		email, role, providerID, passwordHash sql.NullString
		telegramUsername, vkID                sql.NullString
		refreshTokenHash, lastLoginIP         sql.NullString
		cityID                                sql.NullInt64
		lastLoginAt                           sql.NullTime
		authProvider                          string
	)

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Phone,
		&email,
		&role,
		&authProvider,
		&providerID,
		&passwordHash,
		&telegramUsername,
		&vkID,
		&cityID,
		&user.IsPhoneVerified,
		&user.IsEmailVerified,
		&refreshTokenHash,
		&lastLoginIP,
		&lastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.AuthProvider = domain.AuthProvider(authProvider)
	user.Email = nullString(email)
	user.ProviderID = nullString(providerID)
	user.PasswordHash = nullString(passwordHash)
	user.TelegramUsername = nullString(telegramUsername)
	user.VKID = nullString(vkID)
	user.RefreshTokenHash = nullString(refreshTokenHash)
	user.LastLoginIP = nullString(lastLoginIP)

	if role.Valid {
		r := domain.Role(role.String)
		user.Role = &r
	}
	if cityID.Valid {
		c := int(cityID.Int64)
		user.CityID = &c
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return user, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func roleValue(role *domain.Role) *string {
	if role == nil {
		return nil
	}
	s := string(*role)
	return &s
}

func expectOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %w", what, ErrNotFound)
	}

	return nil
}
