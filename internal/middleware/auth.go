package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ownafarm/ownafarm-gateway/internal/apikey"
	"github.com/ownafarm/ownafarm-gateway/internal/logger"
)

// APIKeyAuth validates the X-API-Key header against the configured bcrypt
// hashes. With no hashes configured the gateway runs open, which is only
// acceptable for local development.
func APIKeyAuth(hashes []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(hashes) == 0 {
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		for _, hash := range hashes {
			if apikey.Compare(key, hash) == nil {
				c.Set("api_key_prefix", apikey.DisplayPrefix(key))
				c.Next()
				return
			}
		}

		if logger.Log != nil {
			logger.Log.Warn("rejected request with invalid API key",
				zap.String("key_prefix", apikey.DisplayPrefix(key)),
				zap.String("path", c.Request.URL.Path))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
		c.Abort()
	}
}
