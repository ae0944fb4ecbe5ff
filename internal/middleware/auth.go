package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"lockerhub/internal/service"
)

const identityKey = "identity"

type IdentityDecoder interface {
	Decode(accessToken string) (service.Identity, error)
}

// Auth validates the bearer token on every request and stores the caller
// identity in the context.
func Auth(decoder IdentityDecoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			AbortWithError(c, service.ErrTokenMalformed.With("missing bearer token"))
			return
		}

		identity, err := decoder.Decode(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// CurrentIdentity returns the identity Auth stored for this request.
func CurrentIdentity(c *gin.Context) (service.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return service.Identity{}, false
	}
	identity, ok := v.(service.Identity)
	return identity, ok
}
