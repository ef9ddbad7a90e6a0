package middleware

import (
	"net/http"
	"strings"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/services"
	"streamgate/pkg/errors"
	"streamgate/pkg/logger"

	"github.com/gin-gonic/gin"
)

const broadcasterKey = "broadcaster"

// TokenValidator resolves a bearer token to session claims.
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

func AuthMiddleware(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		b := claims.Broadcaster()
		c.Set(broadcasterKey, b)
		c.Set("user_id", string(b.ID))
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), string(b.ID)))
		c.Next()
	}
}

// BroadcasterFromContext returns the broadcaster set by AuthMiddleware.
func BroadcasterFromContext(c *gin.Context) (domain.Broadcaster, bool) {
	v, exists := c.Get(broadcasterKey)
	if !exists {
		return domain.Broadcaster{}, false
	}
	b, ok := v.(domain.Broadcaster)
	return b, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errors.NewUnauthorizedError(message).Response())
}
