package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/prism-router/pkg/api"
)

// Auth checks for a Bearer token matching one of the configured keys. With
// no keys configured the API is open.
func Auth(staticKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(staticKeys))
	for _, k := range staticKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			_ = c.Error(api.UnauthorizedError("Missing Authorization header"))
			c.Abort()
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			_ = c.Error(api.UnauthorizedError("Invalid Authorization header format"))
			c.Abort()
			return
		}

		for _, k := range keys {
			if subtle.ConstantTimeCompare([]byte(token), k) == 1 {
				c.Next()
				return
			}
		}

		_ = c.Error(api.UnauthorizedError("Invalid API key"))
		c.Abort()
	}
}
