package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader is the header carrying the caller's secret.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns a middleware comparing the caller-supplied key
// against the configured one in constant time. An empty configured key
// means auth is disabled; the binary warns about that at startup so a
// production deployment never passes silently with a spoofable key.
func APIKeyAuth(configuredKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if configuredKey == "" {
			c.Next()
			return
		}

		supplied := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(configuredKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
			})
			return
		}

		c.Next()
	}
}
