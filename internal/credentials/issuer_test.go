package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceIDDeterministic(t *testing.T) {
	id1 := DeviceID("S1", "C1")
	id2 := DeviceID("S1", "C1")
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 24)
}

func TestDeviceIDDistinct(t *testing.T) {
	assert.NotEqual(t, DeviceID("S1", "C1"), DeviceID("S1", "C2"))
	assert.NotEqual(t, DeviceID("S1", "C1"), DeviceID("S2", "C1"))
	// Length prefixes keep the field boundary unambiguous; inputs that
	// concatenate to the same string must still yield distinct ids.
	assert.NotEqual(t, DeviceID("S1:C", "1"), DeviceID("S1", "C:1"))
	assert.NotEqual(t, DeviceID("", "S1:C1"), DeviceID("S1", "C1"))
}

func TestNewAPIKey(t *testing.T) {
	plaintext, hash, err := NewAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plaintext, "sk_live_"))
	assert.Len(t, plaintext, len("sk_live_")+64) // 32 bytes hex
	assert.Equal(t, HashKey(plaintext), hash)
	assert.NotContains(t, hash, "sk_live_")
	assert.Len(t, hash, 64)
}

func TestNewAPIKeyUnique(t *testing.T) {
	k1, _, err := NewAPIKey()
	require.NoError(t, err)
	k2, _, err := NewAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestNewToken(t *testing.T) {
	token, err := NewToken(ProvisioningTokenPrefix, 8)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "PT_"))
	assert.Len(t, token, 3+16)
}

func TestNewKeyID(t *testing.T) {
	id, err := NewKeyID()
	require.NoError(t, err)
	assert.Len(t, id, 32)
}
