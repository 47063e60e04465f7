package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jafarshop/delifast/internal/shopify"
)

// AdminAuthMiddleware authenticates admin API requests. The Bearer credential is
// either a Shopify session token (when sessions is set), which must be for the
// :shop in the path, or the admin key checked against a bcrypt hash.
func AdminAuthMiddleware(apiKeyHash string, sessions *SessionVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKeyHash == "" && sessions == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin API not configured"})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		// Extract Bearer token
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		apiKey := strings.TrimSpace(parts[1])
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		if sessions != nil && looksLikeJWT(apiKey) {
			claims, err := sessions.Verify(apiKey)
			if err != nil {
				logger.Warn("Rejected session token", zap.String("path", c.Request.URL.Path), zap.Error(err))
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
				c.Abort()
				return
			}
			if shop := c.Param("shop"); shop != "" && shopify.NormalizeShopDomain(shop) != claims.Shop() {
				c.JSON(http.StatusForbidden, gin.H{"error": "session token is for another shop"})
				c.Abort()
				return
			}
			c.Set(ContextKeySessionShop, claims.Shop())
			c.Next()
			return
		}

		if apiKeyHash == "" || !VerifyAPIKey(apiKey, apiKeyHash) {
			logger.Warn("Rejected admin API key", zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// HashAPIKey hashes an API key using bcrypt
func HashAPIKey(apiKey string) (string, error) {
	// Use a cost of 10 for API keys (faster than passwords)
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), 10)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAPIKey verifies an API key against a hash
func VerifyAPIKey(apiKey, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey))
	return err == nil
}
