package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/countersight/counter-cloud/internal/auth"
	"github.com/countersight/counter-cloud/internal/credentials"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

func protectedRouter(roles ...auth.Role) *gin.Engine {
	r := gin.New()
	group := r.Group("/", JWTAuth(testSecret))
	if len(roles) > 0 {
		group.Use(RequireRole(roles...))
	}
	group.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(UserIDKey)})
	})
	return r
}

func get(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	token, err := auth.GenerateToken(auth.JWTConfig{Secret: testSecret}, "u1", "alice", auth.RoleSuperadmin)
	require.NoError(t, err)

	r := protectedRouter()
	w := get(r, "/protected", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "/protected", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/protected", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	viewerToken, err := auth.GenerateToken(auth.JWTConfig{Secret: testSecret}, "u1", "bob", auth.RoleViewer)
	require.NoError(t, err)
	adminToken, err := auth.GenerateToken(auth.JWTConfig{Secret: testSecret}, "u2", "alice", auth.RoleSuperadmin)
	require.NoError(t, err)

	r := protectedRouter(auth.RoleSuperadmin, auth.RoleSubadmin)

	w := get(r, "/protected", map[string]string{"Authorization": "Bearer " + viewerToken})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(r, "/protected", map[string]string{"Authorization": "Bearer " + adminToken})
	assert.Equal(t, http.StatusOK, w.Code)
}

type fakeKeyLookup struct {
	key credentials.APIKey
}

func (f *fakeKeyLookup) FindActiveByHash(ctx context.Context, keyHash string) (credentials.APIKey, error) {
	if keyHash != f.key.KeyHash {
		return credentials.APIKey{}, credentials.ErrKeyNotFound
	}
	return f.key, nil
}

func (f *fakeKeyLookup) TouchLastUsed(ctx context.Context, keyID string) error { return nil }

func TestDeviceAPIKeyAuth(t *testing.T) {
	plaintext := "sk_live_deadbeef"
	lookup := &fakeKeyLookup{key: credentials.APIKey{
		KeyID:    "k1",
		KeyHash:  credentials.HashKey(plaintext),
		DeviceID: "dev1",
		SiteID:   "site1",
	}}

	r := gin.New()
	r.GET("/device", DeviceAPIKeyAuth(lookup), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"device": c.GetString(DeviceIDKey),
			"site":   c.GetString(SiteIDKey),
		})
	})

	w := get(r, "/device", map[string]string{"X-API-Key": plaintext})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dev1")

	w = get(r, "/device", map[string]string{"X-API-Key": "sk_live_wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/device", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookAuth(t *testing.T) {
	r := gin.New()
	r.GET("/hook", WebhookAuth("hook-token"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := get(r, "/hook", map[string]string{"Authorization": "Bearer hook-token"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "/hook", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/hook", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookAuthUnconfigured(t *testing.T) {
	r := gin.New()
	r.GET("/hook", WebhookAuth(""), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := get(r, "/hook", map[string]string{"Authorization": "Bearer anything"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
