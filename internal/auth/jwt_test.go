package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	config := JWTConfig{Secret: "test-secret", ExpiryMinutes: 60}

	token, err := GenerateToken(config, "user-1", "alice", RoleSuperadmin)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, RoleSuperadmin, claims.Role)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	config := JWTConfig{Secret: "test-secret", ExpiryMinutes: 60}

	token, err := GenerateToken(config, "user-1", "alice", RoleViewer)
	require.NoError(t, err)

	_, err = ValidateToken("other-secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenGarbage(t *testing.T) {
	_, err := ValidateToken("test-secret", "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("subadmin")
	require.NoError(t, err)
	assert.Equal(t, RoleSubadmin, role)

	_, err = ParseRole("superduperadmin")
	assert.Error(t, err)
}

func TestCanControlDetection(t *testing.T) {
	assert.True(t, RoleSuperadmin.CanControlDetection(false))
	assert.True(t, RoleSubadmin.CanControlDetection(true))
	assert.False(t, RoleSubadmin.CanControlDetection(false))
	assert.False(t, RoleViewer.CanControlDetection(true))
}
