package telemetry

import "time"

// ClassCount is a directional tally for one object class in one report.
type ClassCount struct {
	In  int `json:"in"`
	Out int `json:"out"`
}

// Total is the combined traffic for the class, the number alert thresholds
// and anomaly baselines are computed on.
func (c ClassCount) Total() int {
	return c.In + c.Out
}

// CountReport is one telemetry report from a device agent.
type CountReport struct {
	CameraID        string
	Timestamp       time.Time
	Counts          map[string]ClassCount
	TotalObjects    int
	FramesProcessed int64
	FPS             *float64
	RuntimeSeconds  *float64
	SystemHealth    map[string]any
	DetectorStatus  map[string]any
}

// ClassTotals flattens the report into per-class in+out totals.
func (r CountReport) ClassTotals() map[string]int {
	totals := make(map[string]int, len(r.Counts))
	for class, c := range r.Counts {
		totals[class] = c.Total()
	}
	return totals
}

// LogEntry is a persisted detection_logs row.
type LogEntry struct {
	ID              int64
	CameraID        string
	Timestamp       time.Time
	Counts          map[string]ClassCount
	TotalObjects    int
	FramesProcessed int64
	FPS             *float64
	RuntimeSeconds  *float64
	CreatedAt       time.Time
}

// Stats aggregates a camera's logs over a time range.
type Stats struct {
	CameraID     string     `json:"cameraId"`
	Reports      int64      `json:"reports"`
	TotalObjects int64      `json:"totalObjects"`
	AvgFPS       *float64   `json:"avgFps,omitempty"`
	FirstReport  *time.Time `json:"firstReport,omitempty"`
	LastReport   *time.Time `json:"lastReport,omitempty"`
}

// Anomaly is an advisory attached to an accepted report. Anomalous reports
// are persisted as-is; the advisory only flags them for review.
type Anomaly struct {
	Class    string  `json:"class"`
	Reason   string  `json:"reason"`
	Observed int     `json:"observed"`
	Baseline float64 `json:"baseline,omitempty"`
}

const (
	AnomalyNegativeCount = "negative_count"
	AnomalyCountSpike    = "count_spike"
)
