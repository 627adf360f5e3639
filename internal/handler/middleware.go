package handler

import (
	"strings"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	contextUserID = "user_id"
	contextEmail  = "email"
	contextClaims = "claims"
)

// AuthMiddleware validates the bearer access token and adds user info to context
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondError(c, apperror.New(apperror.KindUnauthorized, "Authorization header is required"))
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			respondError(c, apperror.New(apperror.KindUnauthorized, "Invalid authorization header format"))
			return
		}

		claims, err := authService.ValidateAccessToken(c.Request.Context(), parts[1])
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(contextUserID, claims.UserID)
		c.Set(contextEmail, claims.Email)
		c.Set(contextClaims, claims)

		c.Next()
	}
}

// currentUserID reads the authenticated user id, answering 401 when it is missing
func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(contextUserID)
	if userID == "" {
		respondError(c, apperror.New(apperror.KindUnauthorized, "User ID not found in context"))
		return "", false
	}
	return userID, true
}
