package domain

import "time"

// AuthProvider identifies how a user authenticates
type AuthProvider string

const (
	AuthProviderSMS      AuthProvider = "sms"
	AuthProviderTelegram AuthProvider = "telegram"
	AuthProviderVK       AuthProvider = "vk"
	AuthProviderEmail    AuthProvider = "email"
)

// Role is the marketplace role chosen during onboarding
type Role string

const (
	RoleOwner      Role = "owner"       // boat owner
	RoleClubAdmin  Role = "club_admin"  // yacht club administrator
	RoleManager    Role = "manager"     // club manager
	RoleWorker     Role = "worker"      // mooring worker
	RoleSuperAdmin Role = "super_admin" // platform moderator
)

// SelfAssignable reports whether a user may pick this role when completing registration
func (r Role) SelfAssignable() bool {
	return r == RoleOwner || r == RoleClubAdmin
}

// User represents a user in the system.
// Phone is unique across providers; non-phone providers store a synthetic placeholder.
type User struct {
	ID               string       `json:"id" db:"id"`
	Name             string       `json:"name" db:"name"`
	Phone            string       `json:"phone" db:"phone"`
	Email            *string      `json:"email" db:"email"`
	Role             *Role        `json:"role" db:"role"`
	AuthProvider     AuthProvider `json:"auth_provider" db:"auth_provider"`
	ProviderID       *string      `json:"provider_id" db:"provider_id"`
	PasswordHash     *string      `json:"-" db:"password_hash"`
	TelegramUsername *string      `json:"telegram_username" db:"telegram_username"`
	VKID             *string      `json:"vk_id" db:"vk_id"`
	CityID           *int         `json:"city_id" db:"city_id"`
	IsPhoneVerified  bool         `json:"is_phone_verified" db:"is_phone_verified"`
	IsEmailVerified  bool         `json:"is_email_verified" db:"is_email_verified"`
	RefreshTokenHash *string      `json:"-" db:"refresh_token_hash"`
	LastLoginIP      *string      `json:"last_login_ip" db:"last_login_ip"`
	LastLoginAt      *time.Time   `json:"last_login_at" db:"last_login_at"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// EmailOrEmpty returns the email address or an empty string
func (u *User) EmailOrEmpty() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// HasActiveSession reports whether a refresh-token fingerprint is stored
func (u *User) HasActiveSession() bool {
	return u.RefreshTokenHash != nil && *u.RefreshTokenHash != ""
}
