package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// APIKeyPrefix marks device API keys handed out at enrollment.
	APIKeyPrefix = "sk_live_"
	// DeviceTokenPrefix marks per-camera tokens from the named-camera flow.
	DeviceTokenPrefix = "DEV"
	// ProvisioningTokenPrefix marks short-lived named-camera provisioning tokens.
	ProvisioningTokenPrefix = "PT"

	apiKeyLength   = 32 // 32 bytes = 256 bits
	deviceIDLength = 24 // hex chars
)

// DeviceID derives a stable identifier from the site and camera identity.
// Calling it twice with the same inputs yields the same id, so repeated
// registrations of the same device upsert instead of duplicating. Each
// field is length-prefixed so no pair of inputs can produce the same
// preimage across the field boundary.
func DeviceID(siteID, cameraID string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%s:%d:%s", len(siteID), siteID, len(cameraID), cameraID)
	return hex.EncodeToString(h.Sum(nil))[:deviceIDLength]
}

// NewAPIKey generates a device API key. The plaintext is returned to the
// caller exactly once; only the SHA-256 hash is ever stored.
func NewAPIKey() (plaintext, hash string, err error) {
	b := make([]byte, apiKeyLength)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	plaintext = APIKeyPrefix + hex.EncodeToString(b)
	return plaintext, HashKey(plaintext), nil
}

// NewToken generates a prefixed random token such as PT_c0ffee... or
// DEV_deadbeef... with nBytes of entropy.
func NewToken(prefix string, nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return prefix + "_" + hex.EncodeToString(b), nil
}

// NewKeyID generates a random identifier for a stored API key record.
func NewKeyID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashKey computes the SHA-256 hash of a key, hex encoded. This is the only
// form in which secrets are persisted.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
