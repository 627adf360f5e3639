package dto

// AuthResponse represents an authentication response
type AuthResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         UserInfo `json:"user"`
}

// UserInfo is the public view of a user embedded in auth responses
type UserInfo struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Email        *string `json:"email"`
	Role         *string `json:"role"`
	AuthProvider string  `json:"authProvider"`
}

// UserResponse represents the current user profile
type UserResponse struct {
	UserInfo
	TelegramUsername *string `json:"telegramUsername,omitempty"`
	CityID           *int    `json:"cityId,omitempty"`
	IsPhoneVerified  bool    `json:"isPhoneVerified"`
	IsEmailVerified  bool    `json:"isEmailVerified"`
	CreatedAt        string  `json:"createdAt"`
	LastLoginAt      *string `json:"lastLoginAt,omitempty"`
}

// TelegramLinkResponse carries the Telegram OAuth URL
type TelegramLinkResponse struct {
	URL string `json:"url"`
}

// ValidateRefreshResponse reports whether a refresh token is usable
type ValidateRefreshResponse struct {
	Valid bool `json:"valid"`
}

// StatusResponse is returned by the password reset operations
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
