package live

import "time"

// CountEvent is the real-time view of one ingested telemetry report.
type CountEvent struct {
	SiteID       string         `json:"siteId"`
	CameraID     string         `json:"cameraId"`
	Timestamp    time.Time      `json:"timestamp"`
	Counts       map[string]int `json:"counts"`
	TotalObjects int            `json:"totalObjects"`
}

// Publisher fans ingested reports out to live consumers. Failures are the
// caller's to log; live delivery is best effort and never blocks ingest.
type Publisher interface {
	PublishCounts(event CountEvent) error
}
