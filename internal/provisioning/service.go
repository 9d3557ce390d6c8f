package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/countersight/counter-cloud/internal/auth"
	"github.com/countersight/counter-cloud/internal/credentials"
)

var (
	ErrTokenNotFound     = errors.New("provisioning token not found")
	ErrTokenUsed         = errors.New("provisioning token already used")
	ErrTokenExpired      = errors.New("provisioning token has expired")
	ErrBadTokenFormat    = errors.New("malformed provisioning token")
	ErrSiteNotFound      = errors.New("site not found")
	ErrNotSiteOwner      = errors.New("site is not assigned to this admin")
	ErrCameraNotFound    = errors.New("camera not found")
	ErrPendingNotFound   = errors.New("pending camera not found")
	ErrMissingCameraName = errors.New("camera name is required")
)

type TokenStore interface {
	Create(ctx context.Context, t Token) error
	Get(ctx context.Context, token string) (Token, error)
	MarkUsed(ctx context.Context, token, cameraID string, usedAt time.Time) error
	MarkExpired(ctx context.Context, token string) error
}

type CameraStore interface {
	Insert(ctx context.Context, c Camera) error
}

type PendingStore interface {
	Upsert(ctx context.Context, p PendingCamera) error
	Get(ctx context.Context, deviceID string) (PendingCamera, error)
	List(ctx context.Context) ([]PendingCamera, error)
	Delete(ctx context.Context, deviceID string) error
}

type SiteStore interface {
	Get(ctx context.Context, id string) (Site, error)
	AppendCamera(ctx context.Context, siteID, cameraID string) error
}

// Service runs the named-camera flow: admins mint single-use tokens for
// cameras they name up front, installers redeem them from the device agent.
type Service struct {
	tokens  TokenStore
	cameras CameraStore
	pending PendingStore
	sites   SiteStore
}

func NewService(tokens TokenStore, cameras CameraStore, pending PendingStore, sites SiteStore) *Service {
	return &Service{tokens: tokens, cameras: cameras, pending: pending, sites: sites}
}

// GenerateToken mints a pending provisioning token bound to one named
// camera. Subadmins can only mint tokens for their own site.
func (s *Service) GenerateToken(ctx context.Context, userID string, role auth.Role, siteID, cameraName string, ttl time.Duration) (Token, error) {
	if strings.TrimSpace(cameraName) == "" {
		return Token{}, ErrMissingCameraName
	}

	site, err := s.sites.Get(ctx, siteID)
	if err != nil {
		return Token{}, err
	}
	if role == auth.RoleSubadmin && site.SubadminID != userID {
		return Token{}, ErrNotSiteOwner
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	raw, err := credentials.NewToken(credentials.ProvisioningTokenPrefix, 16)
	if err != nil {
		return Token{}, fmt.Errorf("generate provisioning token: %w", err)
	}

	token := Token{
		Token:      raw,
		CameraName: cameraName,
		SiteID:     siteID,
		SubadminID: site.SubadminID,
		Status:     TokenStatusPending,
		CreatedBy:  userID,
		ExpiresAt:  time.Now().Add(ttl),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return Token{}, err
	}

	slog.Info("Provisioning token generated",
		"site_id", siteID, "camera_name", cameraName, "expires_at", token.ExpiresAt)
	return token, nil
}

// Info is the public pre-redemption view. It never mutates the token; a
// token past expiry reports status expired even while the row still says
// pending.
func (s *Service) Info(ctx context.Context, token string) (TokenInfo, error) {
	t, err := s.tokens.Get(ctx, token)
	if err != nil {
		return TokenInfo{}, err
	}

	status := t.Status
	if status == TokenStatusPending && t.Expired(time.Now()) {
		status = TokenStatusExpired
	}
	return TokenInfo{
		CameraName: t.CameraName,
		SiteID:     t.SiteID,
		Status:     status,
		ExpiresAt:  t.ExpiresAt,
		Valid:      status == TokenStatusPending,
	}, nil
}

// HardwareDetails is what the device agent reports about itself when
// redeeming a token.
type HardwareDetails struct {
	MACAddress    string
	SerialNumber  string
	RaspberryPiIP string
}

// ProvisionCamera redeems a pending token: it creates the camera row with
// a fresh device token (plaintext returned once, hash stored) and marks
// the token used. An expired pending token is flipped to expired on this
// first post-expiry attempt.
func (s *Service) ProvisionCamera(ctx context.Context, rawToken string, hw HardwareDetails) (AgentConfig, error) {
	if !strings.HasPrefix(rawToken, credentials.ProvisioningTokenPrefix+"_") {
		return AgentConfig{}, ErrBadTokenFormat
	}

	token, err := s.tokens.Get(ctx, rawToken)
	if err != nil {
		return AgentConfig{}, err
	}

	switch token.Status {
	case TokenStatusUsed:
		return AgentConfig{}, ErrTokenUsed
	case TokenStatusExpired:
		return AgentConfig{}, ErrTokenExpired
	}
	if token.Expired(time.Now()) {
		if err := s.tokens.MarkExpired(ctx, rawToken); err != nil {
			slog.Warn("Failed to flip expired provisioning token", "error", err)
		}
		return AgentConfig{}, ErrTokenExpired
	}

	cameraID, err := credentials.NewToken("CAM", 8)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("generate camera id: %w", err)
	}
	deviceToken, err := credentials.NewToken(credentials.DeviceTokenPrefix, 24)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("generate device token: %w", err)
	}

	serial := hw.SerialNumber
	if serial == "" {
		serial = "unknown"
	}
	camera := Camera{
		ID:              cameraID,
		Name:            token.CameraName,
		SiteID:          token.SiteID,
		SubadminID:      token.SubadminID,
		MACAddress:      hw.MACAddress,
		SerialNumber:    serial,
		RaspberryPiIP:   hw.RaspberryPiIP,
		Status:          "offline",
		DeviceTokenHash: credentials.HashKey(deviceToken),
		RegisteredBy:    token.CreatedBy,
		Method:          RegisteredByToken,
	}
	if err := s.cameras.Insert(ctx, camera); err != nil {
		return AgentConfig{}, err
	}

	// The status guard inside MarkUsed decides the race between two agents
	// holding the same token; the one that loses gets ErrTokenUsed and the
	// orphan camera row it created is removed by admin review.
	if err := s.tokens.MarkUsed(ctx, rawToken, cameraID, time.Now()); err != nil {
		return AgentConfig{}, err
	}

	if err := s.sites.AppendCamera(ctx, token.SiteID, cameraID); err != nil {
		slog.Warn("Failed to append camera to site list",
			"site_id", token.SiteID, "camera_id", cameraID, "error", err)
	}

	slog.Info("Camera provisioned",
		"camera_id", cameraID, "site_id", token.SiteID, "camera_name", token.CameraName)

	return AgentConfig{
		CameraID:    cameraID,
		CameraName:  token.CameraName,
		SiteID:      token.SiteID,
		DeviceToken: deviceToken,
	}, nil
}

// ReportPending records an unauthenticated self-report from a device that
// has no token. It sits in the pending list until an admin reviews it.
func (s *Service) ReportPending(ctx context.Context, p PendingCamera) error {
	if p.DeviceID == "" {
		return ErrPendingNotFound
	}
	return s.pending.Upsert(ctx, p)
}

func (s *Service) ListPending(ctx context.Context) ([]PendingCamera, error) {
	return s.pending.List(ctx)
}

// ApproveResult carries the one-time device token for a manually approved
// camera.
type ApproveResult struct {
	Camera      Camera
	DeviceToken string
}

// ApprovePending turns a self-reported device into an active camera and
// removes the pending row.
func (s *Service) ApprovePending(ctx context.Context, deviceID, name, siteID, approvedBy string) (ApproveResult, error) {
	if strings.TrimSpace(name) == "" {
		return ApproveResult{}, ErrMissingCameraName
	}
	site, err := s.sites.Get(ctx, siteID)
	if err != nil {
		return ApproveResult{}, err
	}

	p, err := s.pending.Get(ctx, deviceID)
	if err != nil {
		return ApproveResult{}, err
	}

	cameraID, err := credentials.NewToken("CAM", 8)
	if err != nil {
		return ApproveResult{}, fmt.Errorf("generate camera id: %w", err)
	}
	deviceToken, err := credentials.NewToken(credentials.DeviceTokenPrefix, 24)
	if err != nil {
		return ApproveResult{}, fmt.Errorf("generate device token: %w", err)
	}

	camera := Camera{
		ID:              cameraID,
		Name:            name,
		SiteID:          siteID,
		SubadminID:      site.SubadminID,
		DeviceID:        p.DeviceID,
		MACAddress:      p.MACAddress,
		SerialNumber:    "unknown",
		RaspberryPiIP:   p.IPAddress,
		Status:          "offline",
		DeviceTokenHash: credentials.HashKey(deviceToken),
		RegisteredBy:    approvedBy,
		Method:          RegisteredByApproval,
	}
	if err := s.cameras.Insert(ctx, camera); err != nil {
		return ApproveResult{}, err
	}
	if err := s.pending.Delete(ctx, deviceID); err != nil {
		slog.Warn("Approved camera but failed to delete pending row",
			"device_id", deviceID, "error", err)
	}
	if err := s.sites.AppendCamera(ctx, siteID, cameraID); err != nil {
		slog.Warn("Failed to append camera to site list",
			"site_id", siteID, "camera_id", cameraID, "error", err)
	}

	slog.Info("Pending camera approved",
		"device_id", deviceID, "camera_id", cameraID, "site_id", siteID)
	return ApproveResult{Camera: camera, DeviceToken: deviceToken}, nil
}

func (s *Service) RejectPending(ctx context.Context, deviceID string) error {
	if err := s.pending.Delete(ctx, deviceID); err != nil {
		return err
	}
	slog.Info("Pending camera rejected", "device_id", deviceID)
	return nil
}
