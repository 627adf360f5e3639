package handler

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/dto"
	"github.com/dockmap/auth-service/internal/service"
)

var errTokenInvalid = apperror.New(apperror.KindTokenInvalid, "invalid token")

func (s *HandlerSuite) TestVerifyOTP_SetsRefreshCookie() {
	var got *dto.VerifyOTPRequest
	s.auth.verifyOTP = func(req *dto.VerifyOTPRequest) (*service.AuthResponseWithRefreshToken, error) {
		got = req
		return session("user-1"), nil
	}

	rec := s.do(http.MethodPost, "/api/v1/auth/sms/verify", dto.VerifyOTPRequest{PhoneNumber: "+7 900 123 45 67", Code: "123456"})

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("123456", got.Code)

	cookie := refreshCookie(rec)
	s.Require().NotNil(cookie)
	s.Equal("refresh-user-1", cookie.Value)
	s.Equal(refreshCookiePath, cookie.Path)
	s.True(cookie.HttpOnly)
	s.True(cookie.Secure)
	s.Equal(7*24*60*60, cookie.MaxAge)

	s.Contains(rec.Body.String(), `"accessToken":"access-user-1"`)
}

func (s *HandlerSuite) TestVerifyOTP_MissingFields() {
	rec := s.do(http.MethodPost, "/api/v1/auth/sms/verify", map[string]string{"phoneNumber": "79001234567"})

	s.Equal(http.StatusBadRequest, rec.Code)
	resp, code := s.decodeError(rec)
	s.Equal("Validation failed", resp.Error)
	s.Equal(string(apperror.KindInvalidInput), code)
}

func (s *HandlerSuite) TestErrorMapping() {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
		code    apperror.Kind
	}{
		{"invalid code", apperror.New(apperror.KindInvalidCode, "Invalid code"), http.StatusBadRequest, "Invalid code", apperror.KindInvalidCode},
		{"expired", apperror.New(apperror.KindExpired, "code expired"), http.StatusUnauthorized, "code expired", apperror.KindExpired},
		{"upstream", apperror.New(apperror.KindUpstreamUnavailable, "VK is unavailable"), http.StatusBadGateway, "VK is unavailable", apperror.KindUpstreamUnavailable},
		{"internal hides cause", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error", apperror.KindInternal},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.auth.verifyOTP = func(*dto.VerifyOTPRequest) (*service.AuthResponseWithRefreshToken, error) {
				return nil, tc.err
			}

			rec := s.do(http.MethodPost, "/api/v1/auth/sms/verify", dto.VerifyOTPRequest{PhoneNumber: "79001234567", Code: "000000"})

			s.Equal(tc.status, rec.Code)
			resp, code := s.decodeError(rec)
			s.Equal(http.StatusText(tc.status), resp.Error)
			s.Equal(tc.message, resp.Message)
			s.Equal(string(tc.code), code)
			s.Nil(refreshCookie(rec))
		})
	}
}

func (s *HandlerSuite) TestRegisterEmail_Created() {
	s.auth.register = func(req *dto.RegisterEmailRequest) (*service.AuthResponseWithRefreshToken, error) {
		s.Equal("jane@x.com", req.Email)
		return session("user-2"), nil
	}

	rec := s.do(http.MethodPost, "/api/v1/auth/email/register", dto.RegisterEmailRequest{Name: "Jane", Email: "jane@x.com", Password: "Secr3t!"})

	s.Equal(http.StatusCreated, rec.Code)
	s.NotNil(refreshCookie(rec))
}

func (s *HandlerSuite) TestRefresh_FromCookie() {
	var gotRefresh string
	s.auth.refresh = func(refreshToken, _ string) (*service.AuthResponseWithRefreshToken, error) {
		gotRefresh = refreshToken
		return session("user-1"), nil
	}

	rec := s.do(http.MethodPost, "/api/v1/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "cookie-token"})
	})

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("cookie-token", gotRefresh)
	s.Equal("refresh-user-1", refreshCookie(rec).Value)
}

func (s *HandlerSuite) TestRefresh_BodyWinsOverCookie() {
	var gotRefresh, gotAccess string
	s.auth.refresh = func(refreshToken, accessToken string) (*service.AuthResponseWithRefreshToken, error) {
		gotRefresh, gotAccess = refreshToken, accessToken
		return session("user-1"), nil
	}

	rec := s.do(http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{RefreshToken: "body-token", AccessToken: "old-access"}, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "cookie-token"})
	})

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("body-token", gotRefresh)
	s.Equal("old-access", gotAccess)
}

func (s *HandlerSuite) TestRefresh_MissingToken() {
	rec := s.do(http.MethodPost, "/api/v1/auth/refresh", nil)

	s.Equal(http.StatusUnauthorized, rec.Code)
	resp, _ := s.decodeError(rec)
	s.Equal("refresh token not found", resp.Message)
}

func (s *HandlerSuite) TestAuthMiddleware() {
	s.Run("missing header", func() {
		rec := s.do(http.MethodGet, "/api/v1/auth/me", nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("malformed header", func() {
		rec := s.do(http.MethodGet, "/api/v1/auth/me", nil, withBearer("Token "+testAccessToken))
		s.Equal(http.StatusUnauthorized, rec.Code)
		resp, _ := s.decodeError(rec)
		s.Equal("Invalid authorization header format", resp.Message)
	})

	s.Run("invalid token", func() {
		rec := s.do(http.MethodGet, "/api/v1/auth/me", nil, withBearer("Bearer nope"))
		s.Equal(http.StatusUnauthorized, rec.Code)
		_, code := s.decodeError(rec)
		s.Equal(string(apperror.KindTokenInvalid), code)
	})

	s.Run("scheme is case insensitive", func() {
		rec := s.do(http.MethodGet, "/api/v1/auth/me", nil, withBearer("bearer "+testAccessToken))
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"id":"user-1"`)
	})

	s.Equal([]string{"user-1"}, s.auth.getUserCalls)
}

func (s *HandlerSuite) TestAuthMiddleware_ExpiredToken() {
	s.auth.validateErr = apperror.New(apperror.KindTokenExpired, "token expired")

	rec := s.do(http.MethodGet, "/api/v1/auth/me", nil, withBearer("Bearer "+testAccessToken))

	s.Equal(http.StatusUnauthorized, rec.Code)
	_, code := s.decodeError(rec)
	s.Equal(string(apperror.KindTokenExpired), code)
	s.Empty(s.auth.getUserCalls)
}

func (s *HandlerSuite) TestLogout_ClearsCookie() {
	rec := s.do(http.MethodPost, "/api/v1/auth/logout", nil, withBearer("Bearer "+testAccessToken))

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal([]string{"user-1"}, s.auth.loggedOut)

	cookie := refreshCookie(rec)
	s.Require().NotNil(cookie)
	s.Empty(cookie.Value)
	s.Less(cookie.MaxAge, 0)
}

func (s *HandlerSuite) TestTelegramCallback_RawQueryFields() {
	var got map[string]string
	s.auth.telegram = func(fields map[string]string) (*service.AuthResponseWithRefreshToken, error) {
		got = fields
		return session("user-3"), nil
	}

	rec := s.do(http.MethodGet, "/api/v1/auth/telegram/callback?id=42&first_name=Ivan&auth_date=1700000000&hash=abc", nil)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(map[string]string{
		"id":         "42",
		"first_name": "Ivan",
		"auth_date":  "1700000000",
		"hash":       "abc",
	}, got)
}

func (s *HandlerSuite) TestTelegramCallback_EncodedPayload() {
	var got map[string]string
	s.auth.telegram = func(fields map[string]string) (*service.AuthResponseWithRefreshToken, error) {
		got = fields
		return session("user-3"), nil
	}
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"id":42,"username":"ivan","hash":"abc"}`))

	s.Run("get", func() {
		rec := s.do(http.MethodGet, "/api/v1/auth/telegram/callback?payload="+payload, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("ivan", got["username"])
		s.Equal("abc", got["hash"])
	})

	s.Run("post", func() {
		got = nil
		rec := s.do(http.MethodPost, "/api/v1/auth/telegram/callback", dto.TelegramCallbackRequest{Payload: payload})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal("42", got["id"])
	})
}

func (s *HandlerSuite) TestTelegramCallback_MissingPayload() {
	rec := s.do(http.MethodGet, "/api/v1/auth/telegram/callback?id=42", nil)

	s.Equal(http.StatusBadRequest, rec.Code)
	resp, code := s.decodeError(rec)
	s.True(strings.Contains(resp.Message, "payload"))
	s.Equal(string(apperror.KindInvalidInput), code)
}

func (s *HandlerSuite) TestRequestEmailVerification_UsesTokenSubject() {
	rec := s.do(http.MethodPost, "/api/v1/auth/email/verify/send", nil, withBearer("Bearer "+testAccessToken))

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal([]string{"user-1"}, s.auth.verifySent)
	s.Contains(rec.Body.String(), "Verification code sent")
}

func (s *HandlerSuite) TestConfirmEmail() {
	s.auth.confirmEmail = func(userID, code string) (*dto.UserResponse, error) {
		if code != "654321" {
			return nil, apperror.New(apperror.KindInvalidCode, "Invalid code")
		}
		return &dto.UserResponse{UserInfo: dto.UserInfo{ID: userID}, IsEmailVerified: true}, nil
	}

	s.Run("verified", func() {
		rec := s.do(http.MethodPost, "/api/v1/auth/email/verify", dto.ConfirmEmailRequest{Code: "654321"}, withBearer("Bearer "+testAccessToken))
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), `"id":"user-1"`)
	})

	s.Run("wrong code", func() {
		rec := s.do(http.MethodPost, "/api/v1/auth/email/verify", dto.ConfirmEmailRequest{Code: "111111"}, withBearer("Bearer "+testAccessToken))
		s.Equal(http.StatusBadRequest, rec.Code)
		_, code := s.decodeError(rec)
		s.Equal(string(apperror.KindInvalidCode), code)
	})

	s.Run("no token", func() {
		rec := s.do(http.MethodPost, "/api/v1/auth/email/verify", dto.ConfirmEmailRequest{Code: "654321"})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *HandlerSuite) TestValidateRefresh() {
	s.auth.validRefresh = map[string]bool{"live-token": true}

	rec := s.do(http.MethodPost, "/api/v1/auth/refresh/validate", dto.ValidateRefreshRequest{RefreshToken: "live-token"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"valid":true}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/auth/refresh/validate", dto.ValidateRefreshRequest{RefreshToken: "revoked-token"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"valid":false}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/auth/refresh/validate", map[string]string{})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestRevokeAll_ClearsCookie() {
	rec := s.do(http.MethodPost, "/api/v1/auth/revoke-all", nil, withBearer("Bearer "+testAccessToken))

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal([]string{"user-1"}, s.auth.revokedAll)

	cookie := refreshCookie(rec)
	s.Require().NotNil(cookie)
	s.Empty(cookie.Value)
	s.Less(cookie.MaxAge, 0)
}

func (s *HandlerSuite) TestPasswordResetRoutes() {
	s.auth.verifyReset = func(email, code string) (*dto.StatusResponse, error) {
		s.Equal("jane@x.com", email)
		s.Equal("123456", code)
		return &dto.StatusResponse{Success: true, Message: "Code is valid"}, nil
	}
	var got *dto.ResetPasswordRequest
	s.auth.resetPass = func(req *dto.ResetPasswordRequest) (*dto.StatusResponse, error) {
		got = req
		return &dto.StatusResponse{Success: true, Message: "Password updated"}, nil
	}

	rec := s.do(http.MethodPost, "/api/v1/auth/password/verify-code", dto.VerifyResetCodeRequest{Email: "jane@x.com", Code: "123456"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"success":true`)

	rec = s.do(http.MethodPost, "/api/v1/auth/password/reset", dto.ResetPasswordRequest{Email: "jane@x.com", Code: "123456", NewPassword: "N3wPass!"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NotNil(got)
	s.Equal("N3wPass!", got.NewPassword)

	rec = s.do(http.MethodPost, "/api/v1/auth/password/reset", map[string]string{"email": "jane@x.com"})
	s.Equal(http.StatusBadRequest, rec.Code)
}
