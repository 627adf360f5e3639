package dto

// SendOTPRequest represents a request for an SMS code
type SendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
}

// VerifyOTPRequest represents an SMS code confirmation
type VerifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	Code        string `json:"code" binding:"required"`
}

// RegisterEmailRequest represents an email/password registration request
type RegisterEmailRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginEmailRequest represents an email/password login request
type LoginEmailRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TelegramCallbackRequest carries the base64url encoded widget payload
type TelegramCallbackRequest struct {
	Payload string `json:"payload" form:"payload" binding:"required"`
}

// VKCallbackRequest represents the VK ID redirect parameters
type VKCallbackRequest struct {
	Code         string `json:"code" form:"code"`
	State        string `json:"state" form:"state"`
	DeviceID     string `json:"device_id" form:"device_id"`
	CodeVerifier string `json:"codeVerifier" form:"codeVerifier"`
}

// RefreshRequest represents a token refresh request.
// RefreshToken may be omitted when the refresh cookie is present.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	AccessToken  string `json:"accessToken"`
}

// ValidateRefreshRequest represents a refresh token pre-flight check
type ValidateRefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// CompleteRegistrationRequest represents the onboarding step choosing a role
type CompleteRegistrationRequest struct {
	Role   string `json:"role" binding:"required"`
	CityID *int   `json:"cityId"`
}

// ConfirmEmailRequest represents an email verification code confirmation
type ConfirmEmailRequest struct {
	Code string `json:"code" binding:"required"`
}

// PasswordResetRequest starts the password reset flow
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyResetCodeRequest checks a password reset code
type VerifyResetCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// ResetPasswordRequest completes the password reset flow
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}
