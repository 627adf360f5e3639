package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dockmap/auth-service/internal/domain"
	"github.com/dockmap/auth-service/internal/dto"
	"github.com/dockmap/auth-service/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

const testAccessToken = "valid-access-token"

// stubAuthService overrides the methods a test needs; calling anything else panics on the nil embed
type stubAuthService struct {
	service.AuthService

	verifyOTP    func(req *dto.VerifyOTPRequest) (*service.AuthResponseWithRefreshToken, error)
	register     func(req *dto.RegisterEmailRequest) (*service.AuthResponseWithRefreshToken, error)
	refresh      func(refreshToken, accessToken string) (*service.AuthResponseWithRefreshToken, error)
	telegram     func(fields map[string]string) (*service.AuthResponseWithRefreshToken, error)
	confirmEmail func(userID, code string) (*dto.UserResponse, error)
	verifyReset  func(email, code string) (*dto.StatusResponse, error)
	resetPass    func(req *dto.ResetPasswordRequest) (*dto.StatusResponse, error)
	validRefresh map[string]bool
	validateErr  error
	loggedOut    []string
	revokedAll   []string
	verifySent   []string
	getUserCalls []string
}

func (s *stubAuthService) VerifyOTP(_ context.Context, req *dto.VerifyOTPRequest, _ string) (*service.AuthResponseWithRefreshToken, error) {
	return s.verifyOTP(req)
}

func (s *stubAuthService) RegisterEmail(_ context.Context, req *dto.RegisterEmailRequest, _ string) (*service.AuthResponseWithRefreshToken, error) {
	return s.register(req)
}

func (s *stubAuthService) RefreshTokens(_ context.Context, refreshToken, accessToken string) (*service.AuthResponseWithRefreshToken, error) {
	return s.refresh(refreshToken, accessToken)
}

func (s *stubAuthService) AuthenticateTelegram(_ context.Context, fields map[string]string, _ string) (*service.AuthResponseWithRefreshToken, error) {
	return s.telegram(fields)
}

func (s *stubAuthService) ValidateAccessToken(_ context.Context, accessToken string) (*domain.TokenClaims, error) {
	if s.validateErr != nil {
		return nil, s.validateErr
	}
	if accessToken != testAccessToken {
		return nil, errTokenInvalid
	}
	return &domain.TokenClaims{UserID: "user-1", Email: "jane@x.com", Type: domain.TokenTypeAccess}, nil
}

func (s *stubAuthService) Logout(_ context.Context, userID string) error {
	s.loggedOut = append(s.loggedOut, userID)
	return nil
}

func (s *stubAuthService) RevokeAllTokens(_ context.Context, userID string) error {
	s.revokedAll = append(s.revokedAll, userID)
	return nil
}

func (s *stubAuthService) ValidateRefreshToken(_ context.Context, refreshToken string) bool {
	return s.validRefresh[refreshToken]
}

func (s *stubAuthService) RequestEmailVerification(_ context.Context, userID string) (*dto.SuccessResponse, error) {
	s.verifySent = append(s.verifySent, userID)
	return &dto.SuccessResponse{Message: "Verification code sent"}, nil
}

func (s *stubAuthService) ConfirmEmail(_ context.Context, userID, code string) (*dto.UserResponse, error) {
	return s.confirmEmail(userID, code)
}

func (s *stubAuthService) VerifyPasswordResetCode(_ context.Context, email, code string) (*dto.StatusResponse, error) {
	return s.verifyReset(email, code)
}

func (s *stubAuthService) ResetPassword(_ context.Context, req *dto.ResetPasswordRequest) (*dto.StatusResponse, error) {
	return s.resetPass(req)
}

func (s *stubAuthService) GetUser(_ context.Context, userID string) (*dto.UserResponse, error) {
	s.getUserCalls = append(s.getUserCalls, userID)
	return &dto.UserResponse{UserInfo: dto.UserInfo{ID: userID, Name: "Jane"}}, nil
}

func session(userID string) *service.AuthResponseWithRefreshToken {
	return &service.AuthResponseWithRefreshToken{
		AuthResponse: &dto.AuthResponse{
			AccessToken:  "access-" + userID,
			RefreshToken: "refresh-" + userID,
			User:         dto.UserInfo{ID: userID},
		},
		RefreshToken: "refresh-" + userID,
		ExpiresIn:    int((7 * 24 * time.Hour).Seconds()),
	}
}

type HandlerSuite struct {
	suite.Suite
	auth   *stubAuthService
	router *gin.Engine
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *HandlerSuite) SetupTest() {
	s.auth = &stubAuthService{}
	h := NewAuthHandler(s.auth)

	router := gin.New()
	auth := router.Group("/api/v1/auth")
	auth.POST("/sms/verify", h.VerifyOTP)
	auth.POST("/email/register", h.RegisterEmail)
	auth.GET("/telegram/callback", h.TelegramCallback)
	auth.POST("/telegram/callback", h.TelegramCallback)
	auth.POST("/email/verify/send", AuthMiddleware(s.auth), h.RequestEmailVerification)
	auth.POST("/email/verify", AuthMiddleware(s.auth), h.ConfirmEmail)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/refresh/validate", h.ValidateRefresh)
	auth.POST("/logout", AuthMiddleware(s.auth), h.Logout)
	auth.POST("/revoke-all", AuthMiddleware(s.auth), h.RevokeAll)
	auth.GET("/me", AuthMiddleware(s.auth), h.GetMe)
	auth.POST("/password/verify-code", h.VerifyResetCode)
	auth.POST("/password/reset", h.ResetPassword)
	s.router = router
}

func (s *HandlerSuite) do(method, target string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decodeError(rec *httptest.ResponseRecorder) (dto.ErrorResponse, string) {
	var resp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Details struct {
			Code string `json:"code"`
		} `json:"details"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return dto.ErrorResponse{Error: resp.Error, Message: resp.Message}, resp.Details.Code
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	return nil
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", token)
	}
}
