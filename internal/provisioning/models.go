package provisioning

import "time"

// Provisioning token lifecycle. A token is single-use: generated by an
// admin for one named camera, redeemed once by the device agent.
const (
	TokenStatusPending = "pending"
	TokenStatusUsed    = "used"
	TokenStatusExpired = "expired"
)

// DefaultTokenTTL applies when the admin does not pick an expiry.
const DefaultTokenTTL = 7 * 24 * time.Hour

type Token struct {
	Token            string
	CameraName       string
	SiteID           string
	SubadminID       string
	Status           string
	CreatedAt        time.Time
	CreatedBy        string
	ExpiresAt        time.Time
	UsedAt           *time.Time
	AssignedCameraID string
}

// Expired reports whether the token is past its expiry regardless of the
// stored status. The stored status only flips lazily on redemption.
func (t Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Registration methods recorded on camera rows.
const (
	RegisteredByToken    = "provisioning_token"
	RegisteredByApproval = "manual_approval"
)

type Camera struct {
	ID              string
	Name            string
	SiteID          string
	SubadminID      string
	DeviceID        string
	MACAddress      string
	SerialNumber    string
	RaspberryPiIP   string
	Status          string
	DeviceTokenHash string
	RegisteredAt    time.Time
	RegisteredBy    string
	Method          string
	DetectionStatus string
	Activated       bool
	ActivatedAt     *time.Time
	LastSeenAt      time.Time
	LastStats       map[string]any
}

// PendingCamera is an unauthenticated self-report awaiting admin review.
type PendingCamera struct {
	DeviceID     string
	MACAddress   string
	IPAddress    string
	HardwareInfo map[string]any
	ReportedAt   time.Time
}

type Site struct {
	ID              string
	Name            string
	Location        string
	SubadminID      string
	AssignedCameras []string
	CreatedAt       time.Time
}

// AgentConfig is the payload handed to the device agent on successful
// provisioning. DeviceToken is plaintext and appears here exactly once.
type AgentConfig struct {
	CameraID    string `json:"cameraId"`
	CameraName  string `json:"cameraName"`
	SiteID      string `json:"siteId"`
	DeviceToken string `json:"deviceToken"`
}

// TokenInfo is the public read-only view served before redemption, so an
// installer can confirm which camera a token belongs to.
type TokenInfo struct {
	CameraName string    `json:"cameraName"`
	SiteID     string    `json:"siteId"`
	Status     string    `json:"status"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Valid      bool      `json:"valid"`
}
