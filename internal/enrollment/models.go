package enrollment

import "time"

// Token is an enrollment token row. The plaintext secret is burned into a
// device image; the backend only ever sees and stores its SHA-256 hash.
type Token struct {
	TokenHash  string
	TenantID   string
	SiteID     string // optional binding; empty means any site
	Active     bool
	ExpiresAt  *time.Time
	MaxUses    *int
	Uses       int
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// RegisterResult carries the credentials handed to a device exactly once.
type RegisterResult struct {
	DeviceID        string
	APIKeyPlaintext string
	TenantID        string
	SiteID          string
}
