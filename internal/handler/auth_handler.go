package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/dto"
	"github.com/dockmap/auth-service/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth/refresh"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// writeSession sets the refresh cookie and writes the auth response
func writeSession(c *gin.Context, status int, response *service.AuthResponseWithRefreshToken) {
	c.SetCookie(refreshCookieName, response.RefreshToken, response.ExpiresIn, refreshCookiePath, "", true, true)
	c.JSON(status, response.AuthResponse)
}

// SendOTP handles SMS code requests
// @Summary Send SMS code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.SendOTPRequest true "Phone number"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/sms/send [post]
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req dto.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	response, err := h.authService.SendOTP(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// VerifyOTP handles SMS code confirmation
// @Summary Verify SMS code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.VerifyOTPRequest true "Phone number and code"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/sms/verify [post]
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	response, err := h.authService.VerifyOTP(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	writeSession(c, http.StatusOK, response)
}

// RegisterEmail handles email/password registration
// @Summary Register with email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterEmailRequest true "Registration request"
// @Success 201 {object} dto.AuthResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/email/register [post]
func (h *AuthHandler) RegisterEmail(c *gin.Context) {
	var req dto.RegisterEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	response, err := h.authService.RegisterEmail(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	writeSession(c, http.StatusCreated, response)
}

// LoginEmail handles email/password login
// @Summary Login with email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginEmailRequest true "Login request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/email/login [post]
func (h *AuthHandler) LoginEmail(c *gin.Context) {
	var req dto.LoginEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	response, err := h.authService.LoginEmail(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	writeSession(c, http.StatusOK, response)
}

// RequestEmailVerification sends a confirmation code to the user's email
// @Summary Send email verification code
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/email/verify/send [post]
func (h *AuthHandler) RequestEmailVerification(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	response, err := h.authService.RequestEmailVerification(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ConfirmEmail marks the user's email as verified
// @Summary Confirm email
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.ConfirmEmailRequest true "Verification code"
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/email/verify [post]
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.ConfirmEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	user, err := h.authService.ConfirmEmail(c.Request.Context(), userID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// TelegramOAuthLink returns the Telegram login URL
// @Summary Telegram OAuth link
// @Tags auth
// @Produce json
// @Success 200 {object} dto.TelegramLinkResponse
// @Router /auth/telegram/oauth-link [get]
func (h *AuthHandler) TelegramOAuthLink(c *gin.Context) {
	url, err := h.authService.TelegramOAuthLink()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TelegramLinkResponse{URL: url})
}

// TelegramCallback accepts the encoded widget payload, or the raw widget fields as query parameters
// @Summary Telegram login callback
// @Tags auth
// @Produce json
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/telegram/callback [get]
// @Router /auth/telegram/callback [post]
func (h *AuthHandler) TelegramCallback(c *gin.Context) {
	fields, err := telegramFields(c)
	if err != nil {
		respondError(c, err)
		return
	}

	response, err := h.authService.AuthenticateTelegram(c.Request.Context(), fields, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	writeSession(c, http.StatusOK, response)
}

func telegramFields(c *gin.Context) (map[string]string, error) {
	if c.Request.Method == http.MethodGet {
		query := c.Request.URL.Query()
		if payload := query.Get("payload"); payload != "" {
			return service.DecodeTelegramPayload(payload)
		}
		if query.Get("hash") == "" {
			return nil, apperror.New(apperror.KindInvalidInput, "payload is required")
		}

		fields := make(map[string]string, len(query))
		for key := range query {
			fields[key] = query.Get(key)
		}
		return fields, nil
	}

	var req dto.TelegramCallbackRequest
	if err := c.ShouldBind(&req); err != nil {
		return nil, apperror.Wrap(err, apperror.KindInvalidInput, "payload is required")
	}
	return service.DecodeTelegramPayload(req.Payload)
}

// VKCallback exchanges the VK ID authorization code
// @Summary VK ID callback
// @Tags auth
// @Produce json
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/vk/callback [get]
// @Router /auth/vk/callback [post]
func (h *AuthHandler) VKCallback(c *gin.Context) {
	var req dto.VKCallbackRequest
	if err := c.ShouldBind(&req); err != nil {
		respondValidation(c, err)
		return
	}

	response, err := h.authService.AuthenticateVK(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	writeSession(c, http.StatusOK, response)
}

// Refresh handles token refresh
// @Summary Refresh tokens
// @Description Rotates the token pair; the refresh token comes from the body or the refresh cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshRequest false "Refresh request"
// @Success 200 {object} dto.AuthResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondValidation(c, err)
		return
	}

	refreshToken := req.RefreshToken
	if refreshToken == "" {
		refreshToken, _ = c.Cookie(refreshCookieName)
	}
	if refreshToken == "" {
		respondError(c, apperror.New(apperror.KindUnauthorized, "refresh token not found"))
		return
	}

	response, err := h.authService.RefreshTokens(c.Request.Context(), refreshToken, req.AccessToken)
	if err != nil {
		respondError(c, err)
		return
	}

	writeSession(c, http.StatusOK, response)
}

// ValidateRefresh reports whether a refresh token is still usable
// @Summary Validate refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ValidateRefreshRequest true "Refresh token"
// @Success 200 {object} dto.ValidateRefreshResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/refresh/validate [post]
func (h *AuthHandler) ValidateRefresh(c *gin.Context) {
	var req dto.ValidateRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ValidateRefreshResponse{
		Valid: h.authService.ValidateRefreshToken(c.Request.Context(), req.RefreshToken),
	})
}

// Logout handles user logout
// @Summary Logout user
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.authService.Logout(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", true, true)

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Logged out successfully",
	})
}

// RevokeAll ends every session of the current user
// @Summary Revoke all sessions
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/revoke-all [post]
func (h *AuthHandler) RevokeAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.authService.RevokeAllTokens(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", true, true)

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "All sessions revoked",
	})
}

// GetMe handles getting current user profile
// @Summary Get current user profile
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// CompleteRegistration sets the role of a newly registered user
// @Summary Complete registration
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.CompleteRegistrationRequest true "Role and city"
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /auth/complete-registration [post]
func (h *AuthHandler) CompleteRegistration(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.CompleteRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	user, err := h.authService.CompleteRegistration(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// RequestPasswordReset sends a reset code when the email belongs to an account
// @Summary Request password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.PasswordResetRequest true "Email"
// @Success 200 {object} dto.StatusResponse
// @Router /auth/password/reset-request [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	response, err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// VerifyResetCode checks a reset code without consuming it
// @Summary Verify password reset code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.VerifyResetCodeRequest true "Email and code"
// @Success 200 {object} dto.StatusResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/password/verify-code [post]
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var req dto.VerifyResetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	response, err := h.authService.VerifyPasswordResetCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ResetPassword sets a new password and ends all sessions
// @Summary Reset password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Email, code and new password"
// @Success 200 {object} dto.StatusResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/password/reset [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	response, err := h.authService.ResetPassword(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
