package handler

import (
	"net/http"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes the status and caller-safe message for err
func respondError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	kind := apperror.KindOf(err)

	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   http.StatusText(status),
		Message: apperror.MessageOf(err),
		Details: gin.H{"code": string(kind)},
	})
}

func respondValidation(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Validation failed",
		Message: err.Error(),
		Details: gin.H{"code": string(apperror.KindInvalidInput)},
	})
}
