package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/countersight/counter-cloud/internal/alerts"
	"github.com/countersight/counter-cloud/internal/devices"
	"github.com/countersight/counter-cloud/internal/live"
)

var (
	ErrMissingCameraID  = errors.New("camera_id is required")
	ErrMissingTimestamp = errors.New("timestamp is required")
	ErrFutureTimestamp  = errors.New("timestamp is too far in the future")
)

// maxClockSkew bounds how far ahead of server time a report may claim to be.
const maxClockSkew = 5 * time.Minute

// baselineSize is how many prior reports feed the spike baseline.
const baselineSize = 10

// spikeFactor flags a class total exceeding this multiple of its baseline mean.
const spikeFactor = 3.0

// LogStore is the append-only detection log.
type LogStore interface {
	Append(ctx context.Context, e LogEntry) (int64, error)
	RecentCounts(ctx context.Context, cameraID string, n int) ([]map[string]ClassCount, error)
}

// DeviceHeartbeat refreshes liveness for enrollment-flow devices.
type DeviceHeartbeat interface {
	TouchHeartbeat(ctx context.Context, cameraID string, snap devices.HealthSnapshot) error
}

// CameraHeartbeat refreshes liveness for named-flow cameras.
type CameraHeartbeat interface {
	TouchHeartbeat(ctx context.Context, cameraID string, stats map[string]any) error
}

// AlertEvaluator checks a report against the site's alert rules.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, siteID, cameraID string, classTotals map[string]int, ts time.Time) ([]alerts.Alert, error)
}

// IngestResult reports what happened to an accepted report.
type IngestResult struct {
	LogID     int64
	Anomalies []Anomaly
	Alerts    []alerts.Alert
}

// Pipeline processes telemetry reports. Persisting the report is the only
// step that can fail the request; heartbeats, anomaly advisories, alert
// evaluation, and live fan-out are best effort and only logged on failure.
type Pipeline struct {
	logs      LogStore
	devices   DeviceHeartbeat
	cameras   CameraHeartbeat
	evaluator AlertEvaluator
	publisher live.Publisher
}

func NewPipeline(logs LogStore, deviceHB DeviceHeartbeat, cameraHB CameraHeartbeat, evaluator AlertEvaluator, publisher live.Publisher) *Pipeline {
	return &Pipeline{
		logs:      logs,
		devices:   deviceHB,
		cameras:   cameraHB,
		evaluator: evaluator,
		publisher: publisher,
	}
}

// Ingest validates and persists one report, then runs the best-effort
// tail. Reports with negative or implausible counts are accepted and
// persisted untouched; the anomalies in the result flag them for review.
func (p *Pipeline) Ingest(ctx context.Context, siteID string, report CountReport) (IngestResult, error) {
	if report.CameraID == "" {
		return IngestResult{}, ErrMissingCameraID
	}
	if report.Timestamp.IsZero() {
		return IngestResult{}, ErrMissingTimestamp
	}
	if report.Timestamp.After(time.Now().Add(maxClockSkew)) {
		return IngestResult{}, ErrFutureTimestamp
	}

	// Baseline is read before the append so the report does not count
	// toward its own spike detection.
	baseline, err := p.logs.RecentCounts(ctx, report.CameraID, baselineSize)
	if err != nil {
		slog.Warn("Failed to load anomaly baseline", "camera_id", report.CameraID, "error", err)
		baseline = nil
	}

	logID, err := p.logs.Append(ctx, LogEntry{
		CameraID:        report.CameraID,
		Timestamp:       report.Timestamp,
		Counts:          report.Counts,
		TotalObjects:    report.TotalObjects,
		FramesProcessed: report.FramesProcessed,
		FPS:             report.FPS,
		RuntimeSeconds:  report.RuntimeSeconds,
	})
	if err != nil {
		return IngestResult{}, err
	}

	p.touchHeartbeats(ctx, report)

	result := IngestResult{
		LogID:     logID,
		Anomalies: detectAnomalies(report, baseline),
	}
	for _, a := range result.Anomalies {
		slog.Warn("Anomalous count report",
			"camera_id", report.CameraID, "class", a.Class,
			"reason", a.Reason, "observed", a.Observed, "baseline", a.Baseline)
	}

	if p.evaluator != nil {
		fired, err := p.evaluator.Evaluate(ctx, siteID, report.CameraID, report.ClassTotals(), report.Timestamp)
		if err != nil {
			slog.Warn("Alert evaluation failed", "camera_id", report.CameraID, "error", err)
		}
		result.Alerts = fired
	}

	if p.publisher != nil {
		event := live.CountEvent{
			SiteID:       siteID,
			CameraID:     report.CameraID,
			Timestamp:    report.Timestamp,
			Counts:       report.ClassTotals(),
			TotalObjects: report.TotalObjects,
		}
		if err := p.publisher.PublishCounts(event); err != nil {
			slog.Warn("Live fan-out failed", "camera_id", report.CameraID, "error", err)
		}
	}

	return result, nil
}

func (p *Pipeline) touchHeartbeats(ctx context.Context, report CountReport) {
	if p.devices != nil {
		snap := devices.HealthSnapshot{
			FPS:            report.FPS,
			SystemHealth:   report.SystemHealth,
			DetectorStatus: report.DetectorStatus,
		}
		if report.FramesProcessed > 0 {
			frames := report.FramesProcessed
			snap.FrameCount = &frames
		}
		if err := p.devices.TouchHeartbeat(ctx, report.CameraID, snap); err != nil {
			slog.Warn("Device heartbeat failed", "camera_id", report.CameraID, "error", err)
		}
	}
	if p.cameras != nil {
		stats := map[string]any{
			"total_objects":    report.TotalObjects,
			"frames_processed": report.FramesProcessed,
		}
		if report.FPS != nil {
			stats["fps"] = *report.FPS
		}
		if err := p.cameras.TouchHeartbeat(ctx, report.CameraID, stats); err != nil {
			slog.Warn("Camera heartbeat failed", "camera_id", report.CameraID, "error", err)
		}
	}
}

// detectAnomalies flags negative counts and per-class spikes above
// spikeFactor times the mean of the camera's recent reports.
func detectAnomalies(report CountReport, baseline []map[string]ClassCount) []Anomaly {
	var anomalies []Anomaly

	for class, c := range report.Counts {
		if c.In < 0 || c.Out < 0 {
			anomalies = append(anomalies, Anomaly{
				Class:    class,
				Reason:   AnomalyNegativeCount,
				Observed: c.Total(),
			})
		}
	}

	if len(baseline) < 3 {
		return anomalies
	}
	for class, c := range report.Counts {
		mean := baselineMean(baseline, class)
		if mean <= 0 {
			continue
		}
		if float64(c.Total()) > spikeFactor*mean {
			anomalies = append(anomalies, Anomaly{
				Class:    class,
				Reason:   AnomalyCountSpike,
				Observed: c.Total(),
				Baseline: mean,
			})
		}
	}
	return anomalies
}

func baselineMean(baseline []map[string]ClassCount, class string) float64 {
	var sum int
	for _, counts := range baseline {
		sum += counts[class].Total()
	}
	return float64(sum) / float64(len(baseline))
}
