package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/auth"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/errors"
)

// AuthMiddleware guards the admin API with operator bearer tokens.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			errors.Unauthorized(c, "authorization header required")
			c.Abort()
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || strings.ToLower(bearerToken[0]) != "bearer" {
			errors.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(bearerToken[1], jwtSecret)
		if err != nil {
			errors.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set("operator", claims.Operator)
		c.Set("operator_role", claims.Role)
		c.Next()
	}
}
