package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lockerhub/internal/service"
)

// StatusFor maps a service error kind to its HTTP status.
func StatusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindConflict:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError writes err as {"error": code, "message": text}. Errors that
// are not *service.Error become a bare 500 so internals do not leak.
func AbortWithError(c *gin.Context, err error) {
	var serr *service.Error
	if !errors.As(err, &serr) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_server_error",
			"message": "internal server error",
		})
		return
	}

	if serr.Err != nil {
		_ = c.Error(serr.Err)
	}
	c.AbortWithStatusJSON(StatusFor(serr.Kind), gin.H{
		"error":   serr.Code,
		"message": serr.Message,
	})
}
