package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/countersight/counter-cloud/internal/credentials"
	"github.com/countersight/counter-cloud/internal/devices"
)

var (
	ErrMissingParams  = errors.New("missing siteId or cameraId")
	ErrTokenNotFound  = errors.New("enrollment token not found")
	ErrTokenInactive  = errors.New("enrollment token is inactive")
	ErrTokenExpired   = errors.New("enrollment token has expired")
	ErrTokenExhausted = errors.New("enrollment token has reached maximum uses")
	ErrSiteMismatch   = errors.New("site id does not match enrollment token")
)

// TokenStore is the durable registry of enrollment tokens. ConsumeOnce must
// be a conditional write: it fails with ErrTokenExhausted instead of pushing
// uses past max_uses under concurrency.
type TokenStore interface {
	GetByHash(ctx context.Context, tokenHash string) (Token, error)
	ConsumeOnce(ctx context.Context, tokenHash string) error
}

// DeviceRegistry is the subset of the device store the protocol writes to.
type DeviceRegistry interface {
	Upsert(ctx context.Context, d devices.Device) error
}

// KeyStore persists issued API key records (hash only).
type KeyStore interface {
	Insert(ctx context.Context, key credentials.APIKey) error
}

// Service runs the device provisioning protocol: it turns an untrusted
// device holding an enrollment token into a tenant-scoped principal with
// durable credentials.
type Service struct {
	tokens  TokenStore
	devices DeviceRegistry
	keys    KeyStore
}

func NewService(tokens TokenStore, registry DeviceRegistry, keys KeyStore) *Service {
	return &Service{tokens: tokens, devices: registry, keys: keys}
}

// RegisterDevice validates and consumes an enrollment token, then issues
// device credentials. The token consumption commits before credentials are
// issued; if credential issuance fails afterwards the token stays consumed
// and the error is surfaced for administrative remediation rather than
// silently retried (the plaintext key can only be sent once).
func (s *Service) RegisterDevice(ctx context.Context, enrollToken, siteID, cameraID string) (RegisterResult, error) {
	if siteID == "" || cameraID == "" {
		return RegisterResult{}, ErrMissingParams
	}

	// Lookup is always by hash; plaintext tokens never touch storage.
	tokenHash := credentials.HashKey(enrollToken)

	token, err := s.tokens.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			slog.Warn("Registration attempt with unknown enrollment token", "site_id", siteID)
		}
		return RegisterResult{}, err
	}

	if !token.Active {
		return RegisterResult{}, ErrTokenInactive
	}
	if token.ExpiresAt != nil && time.Now().After(*token.ExpiresAt) {
		return RegisterResult{}, ErrTokenExpired
	}
	if token.SiteID != "" && token.SiteID != siteID {
		slog.Warn("Registration site mismatch",
			"token_site", token.SiteID, "claimed_site", siteID)
		return RegisterResult{}, ErrSiteMismatch
	}
	if token.MaxUses != nil && token.Uses >= *token.MaxUses {
		return RegisterResult{}, ErrTokenExhausted
	}

	// The conditional increment is the authoritative exhaustion check; the
	// pre-check above only short-circuits the obvious case.
	if err := s.tokens.ConsumeOnce(ctx, tokenHash); err != nil {
		return RegisterResult{}, err
	}

	deviceID := credentials.DeviceID(siteID, cameraID)

	if err := s.devices.Upsert(ctx, devices.Device{
		DeviceID: deviceID,
		TenantID: token.TenantID,
		SiteID:   siteID,
		CameraID: cameraID,
		Status:   devices.StatusActive,
	}); err != nil {
		return RegisterResult{}, fmt.Errorf("upsert device: %w", err)
	}

	plaintext, keyHash, err := credentials.NewAPIKey()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("issue api key: %w", err)
	}
	keyID, err := credentials.NewKeyID()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("issue key id: %w", err)
	}

	if err := s.keys.Insert(ctx, credentials.APIKey{
		KeyID:    keyID,
		KeyHash:  keyHash,
		TenantID: token.TenantID,
		SiteID:   siteID,
		DeviceID: deviceID,
	}); err != nil {
		return RegisterResult{}, fmt.Errorf("store api key: %w", err)
	}

	slog.Info("Device registered",
		"device_id", deviceID,
		"tenant_id", token.TenantID,
		"site_id", siteID,
		"camera_id", cameraID)

	return RegisterResult{
		DeviceID:        deviceID,
		APIKeyPlaintext: plaintext,
		TenantID:        token.TenantID,
		SiteID:          siteID,
	}, nil
}
