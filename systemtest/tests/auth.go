package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/countersight/counter-cloud/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAuth(t *testing.T, router *gin.Engine) {
	t.Run("login success", func(t *testing.T) {
		token := loginAdmin(t, router)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/auth/login",
			dto.LoginRequest{Username: "admin", Password: "wrong"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rr := doJSON(router, "POST", "/api/v1/auth/login",
			dto.LoginRequest{Username: "ghost", Password: "password123"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("superadmin creates users", func(t *testing.T) {
		adminToken := loginAdmin(t, router)

		rr := doJSON(router, "POST", "/api/v1/auth/register",
			dto.RegisterUserRequest{Username: "viewer1", Password: "password123", Role: "viewer"},
			bearer(adminToken))
		require.Equal(t, http.StatusCreated, rr.Code)

		var resp dto.RegisterUserResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "viewer", resp.Role)

		// Duplicate username conflicts.
		rr = doJSON(router, "POST", "/api/v1/auth/register",
			dto.RegisterUserRequest{Username: "viewer1", Password: "password123", Role: "viewer"},
			bearer(adminToken))
		assert.Equal(t, http.StatusConflict, rr.Code)

		// Unknown roles are rejected at the boundary.
		rr = doJSON(router, "POST", "/api/v1/auth/register",
			dto.RegisterUserRequest{Username: "weird", Password: "password123", Role: "root"},
			bearer(adminToken))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("viewer cannot create users", func(t *testing.T) {
		adminToken := loginAdmin(t, router)
		rr := doJSON(router, "POST", "/api/v1/auth/register",
			dto.RegisterUserRequest{Username: "viewer2", Password: "password123", Role: "viewer"},
			bearer(adminToken))
		require.Equal(t, http.StatusCreated, rr.Code)

		rr = doJSON(router, "POST", "/api/v1/auth/login",
			dto.LoginRequest{Username: "viewer2", Password: "password123"}, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var login dto.LoginResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))

		rr = doJSON(router, "POST", "/api/v1/auth/register",
			dto.RegisterUserRequest{Username: "sneaky", Password: "password123", Role: "superadmin"},
			bearer(login.Token))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
