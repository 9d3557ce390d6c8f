package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/countersight/counter-cloud/internal/alerts"
	"github.com/countersight/counter-cloud/internal/devices"
	"github.com/countersight/counter-cloud/internal/live"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLogs struct {
	entries []LogEntry
	fail    error
}

func (m *memLogs) Append(ctx context.Context, e LogEntry) (int64, error) {
	if m.fail != nil {
		return 0, m.fail
	}
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return e.ID, nil
}

func (m *memLogs) RecentCounts(ctx context.Context, cameraID string, n int) ([]map[string]ClassCount, error) {
	var out []map[string]ClassCount
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		if m.entries[i].CameraID == cameraID {
			out = append(out, m.entries[i].Counts)
		}
	}
	return out, nil
}

type memDeviceHB struct {
	touched []string
	fail    error
}

func (m *memDeviceHB) TouchHeartbeat(ctx context.Context, cameraID string, snap devices.HealthSnapshot) error {
	if m.fail != nil {
		return m.fail
	}
	m.touched = append(m.touched, cameraID)
	return nil
}

type memCameraHB struct {
	touched []string
}

func (m *memCameraHB) TouchHeartbeat(ctx context.Context, cameraID string, stats map[string]any) error {
	m.touched = append(m.touched, cameraID)
	return nil
}

type memEvaluator struct {
	calls []map[string]int
	fired []alerts.Alert
	fail  error
}

func (m *memEvaluator) Evaluate(ctx context.Context, siteID, cameraID string, classTotals map[string]int, ts time.Time) ([]alerts.Alert, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	m.calls = append(m.calls, classTotals)
	return m.fired, nil
}

type memPublisher struct {
	events []live.CountEvent
	fail   error
}

func (m *memPublisher) PublishCounts(event live.CountEvent) error {
	if m.fail != nil {
		return m.fail
	}
	m.events = append(m.events, event)
	return nil
}

func newTestPipeline() (*memLogs, *memDeviceHB, *memCameraHB, *memEvaluator, *memPublisher, *Pipeline) {
	logs := &memLogs{}
	dhb := &memDeviceHB{}
	chb := &memCameraHB{}
	eval := &memEvaluator{}
	pub := &memPublisher{}
	return logs, dhb, chb, eval, pub, NewPipeline(logs, dhb, chb, eval, pub)
}

func report(cameraID string, counts map[string]ClassCount) CountReport {
	total := 0
	for _, c := range counts {
		total += c.Total()
	}
	return CountReport{
		CameraID:     cameraID,
		Timestamp:    time.Now(),
		Counts:       counts,
		TotalObjects: total,
	}
}

func TestIngest(t *testing.T) {
	logs, dhb, chb, eval, pub, p := newTestPipeline()

	res, err := p.Ingest(context.Background(), "site1",
		report("cam1", map[string]ClassCount{"person": {In: 3, Out: 2}}))
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.LogID)
	assert.Empty(t, res.Anomalies)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, "cam1", logs.entries[0].CameraID)

	assert.Equal(t, []string{"cam1"}, dhb.touched)
	assert.Equal(t, []string{"cam1"}, chb.touched)
	require.Len(t, eval.calls, 1)
	assert.Equal(t, map[string]int{"person": 5}, eval.calls[0])
	require.Len(t, pub.events, 1)
	assert.Equal(t, "site1", pub.events[0].SiteID)
}

func TestIngestValidation(t *testing.T) {
	_, _, _, _, _, p := newTestPipeline()

	_, err := p.Ingest(context.Background(), "site1", CountReport{Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrMissingCameraID)

	_, err = p.Ingest(context.Background(), "site1", CountReport{CameraID: "cam1"})
	assert.ErrorIs(t, err, ErrMissingTimestamp)

	_, err = p.Ingest(context.Background(), "site1", CountReport{
		CameraID:  "cam1",
		Timestamp: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrFutureTimestamp)
}

func TestIngestPersistFailureFailsRequest(t *testing.T) {
	logs, _, _, _, pub, p := newTestPipeline()
	logs.fail = errors.New("db down")

	_, err := p.Ingest(context.Background(), "site1",
		report("cam1", map[string]ClassCount{"person": {In: 1}}))
	require.Error(t, err)
	assert.Empty(t, pub.events, "nothing fans out when the record of truth fails")
}

func TestIngestNegativeCountAcceptedWithAdvisory(t *testing.T) {
	logs, _, _, _, _, p := newTestPipeline()

	res, err := p.Ingest(context.Background(), "site1",
		report("cam1", map[string]ClassCount{"person": {In: -4, Out: 2}}))
	require.NoError(t, err)

	// The report is persisted untouched; the advisory flags it.
	require.Len(t, logs.entries, 1)
	assert.Equal(t, -4, logs.entries[0].Counts["person"].In)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, AnomalyNegativeCount, res.Anomalies[0].Reason)
}

func TestIngestSpikeAdvisory(t *testing.T) {
	_, _, _, _, _, p := newTestPipeline()

	// Build a baseline of ten reports averaging 10 per report.
	for i := 0; i < 10; i++ {
		_, err := p.Ingest(context.Background(), "site1",
			report("cam1", map[string]ClassCount{"person": {In: 6, Out: 4}}))
		require.NoError(t, err)
	}

	// 31 > 3 x 10: flagged.
	res, err := p.Ingest(context.Background(), "site1",
		report("cam1", map[string]ClassCount{"person": {In: 20, Out: 11}}))
	require.NoError(t, err)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, AnomalyCountSpike, res.Anomalies[0].Reason)
	assert.Equal(t, 31, res.Anomalies[0].Observed)
	assert.InDelta(t, 10.0, res.Anomalies[0].Baseline, 2.0)
}

func TestIngestNoSpikeWithoutHistory(t *testing.T) {
	_, _, _, _, _, p := newTestPipeline()

	res, err := p.Ingest(context.Background(), "site1",
		report("cam1", map[string]ClassCount{"person": {In: 500, Out: 500}}))
	require.NoError(t, err)
	assert.Empty(t, res.Anomalies, "a fresh camera has no baseline to spike against")
}

func TestIngestBestEffortTail(t *testing.T) {
	logs, dhb, _, eval, pub, p := newTestPipeline()
	dhb.fail = errors.New("device store down")
	eval.fail = errors.New("rules down")
	pub.fail = errors.New("broker down")

	res, err := p.Ingest(context.Background(), "site1",
		report("cam1", map[string]ClassCount{"person": {In: 1}}))
	require.NoError(t, err, "best-effort tail failures never fail ingest")
	assert.Equal(t, int64(1), res.LogID)
	assert.Len(t, logs.entries, 1)
}

func TestIngestForwardsFiredAlerts(t *testing.T) {
	_, _, _, eval, _, p := newTestPipeline()
	eval.fired = []alerts.Alert{{RuleID: "r1", Class: "person", Count: 60}}

	res, err := p.Ingest(context.Background(), "site1",
		report("cam1", map[string]ClassCount{"person": {In: 60}}))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, "r1", res.Alerts[0].RuleID)
}
