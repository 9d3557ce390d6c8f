package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/countersight/counter-cloud/internal/auth"
	"github.com/countersight/counter-cloud/internal/credentials"
	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middlewares.
const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
	RoleKey     = "role"

	DeviceIDKey  = "device_id"
	TenantIDKey  = "tenant_id"
	SiteIDKey    = "site_id"
	APIKeyIDKey  = "api_key_id"
	apiKeyHeader = "X-API-Key"
)

func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := auth.ValidateToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole gates a route group to the listed roles. It matches on the
// closed auth.Role type placed in the context by JWTAuth.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(RoleKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		userRole, ok := value.(auth.Role)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		for _, r := range roles {
			if r == userRole {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// RoleFromContext returns the authenticated role, or RoleViewer when the
// context has none.
func RoleFromContext(c *gin.Context) auth.Role {
	if value, ok := c.Get(RoleKey); ok {
		if role, ok := value.(auth.Role); ok {
			return role
		}
	}
	return auth.RoleViewer
}

// KeyLookup resolves a presented API key hash to its active record.
type KeyLookup interface {
	FindActiveByHash(ctx context.Context, keyHash string) (credentials.APIKey, error)
	TouchLastUsed(ctx context.Context, keyID string) error
}

// DeviceAPIKeyAuth authenticates device telemetry requests. The presented
// key is hashed and looked up; the plaintext is never stored or logged.
func DeviceAPIKeyAuth(keys KeyLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(apiKeyHeader)
		if presented == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}

		key, err := keys.FindActiveByHash(c.Request.Context(), credentials.HashKey(presented))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		if err := keys.TouchLastUsed(c.Request.Context(), key.KeyID); err == nil {
			c.Set(APIKeyIDKey, key.KeyID)
		}
		c.Set(DeviceIDKey, key.DeviceID)
		c.Set(TenantIDKey, key.TenantID)
		c.Set(SiteIDKey, key.SiteID)
		c.Next()
	}
}

// WebhookAuth guards webhook endpoints with a static bearer token.
func WebhookAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "webhook is not configured"})
			return
		}

		header := c.GetHeader("Authorization")
		presented := strings.TrimPrefix(header, "Bearer ")
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
		c.Next()
	}
}
