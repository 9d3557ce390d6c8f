package dto

import "github.com/countersight/counter-cloud/internal/telemetry"

// CountReportRequest mirrors the device agent's report payload.
type CountReportRequest struct {
	CameraID        string                           `json:"camera_id" binding:"required"`
	Timestamp       string                           `json:"timestamp" binding:"required"`
	Counts          map[string]telemetry.ClassCount  `json:"counts"`
	TotalObjects    int                              `json:"total_objects"`
	FramesProcessed int64                            `json:"frames_processed"`
	FPS             *float64                         `json:"fps"`
	RuntimeSeconds  *float64                         `json:"runtime_seconds"`
	SystemHealth    map[string]any                   `json:"system_health"`
	DetectorStatus  map[string]any                   `json:"detector_status"`
}

// CountReportResponse acknowledges an ingested report. Device agents key
// on the received flag, so it is always present on success.
type CountReportResponse struct {
	Success   bool                `json:"success"`
	Received  bool                `json:"received"`
	LogID     int64               `json:"logId"`
	Anomalies []telemetry.Anomaly `json:"anomalies,omitempty"`
}
