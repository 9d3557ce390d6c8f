package devices

import "time"

// Status values are derived from lastSeenAt, never trusted from the device.
const (
	StatusActive  = "active"
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusPending = "pending"
)

// LivenessWindow is the maximum silence before a device counts as offline.
const LivenessWindow = 5 * time.Minute

type Device struct {
	DeviceID     string
	TenantID     string
	SiteID       string
	CameraID     string
	Status       string
	RegisteredAt time.Time
	LastSeenAt   time.Time
	FPS          *float64
	FrameCount   *int64
	SystemHealth map[string]any
	DetectorStat map[string]any
}

// HealthSnapshot is the per-report hardware and detector state. It replaces
// the stored snapshot wholesale on every heartbeat so an out-of-order report
// can never leave a half-merged state behind.
type HealthSnapshot struct {
	FPS            *float64       `json:"fps,omitempty"`
	FrameCount     *int64         `json:"frame_count,omitempty"`
	SystemHealth   map[string]any `json:"system_health,omitempty"`
	DetectorStatus map[string]any `json:"detector_status,omitempty"`
}

// Online reports whether a device seen at lastSeen counts as online at now.
func Online(lastSeen, now time.Time) bool {
	return now.Sub(lastSeen) < LivenessWindow
}
