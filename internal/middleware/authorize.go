package middleware

import (
	"github.com/gin-gonic/gin"

	"lockerhub/internal/service"
)

// RequireCapability rejects callers whose role lacks capability. It must run
// after Auth.
func RequireCapability(capability service.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			AbortWithError(c, service.ErrTokenMalformed.With("unauthenticated"))
			return
		}

		if err := service.Authorize(identity, capability); err != nil {
			AbortWithError(c, err)
			return
		}

		c.Next()
	}
}
