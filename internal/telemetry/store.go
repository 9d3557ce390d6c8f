package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Append writes one report to the detection log. The log is append-only
// and is the record of truth for everything downstream.
func (s *Store) Append(ctx context.Context, e LogEntry) (int64, error) {
	countsJSON, err := json.Marshal(e.Counts)
	if err != nil {
		return 0, fmt.Errorf("marshal counts: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO detection_logs
		   (camera_id, ts, counts, total_objects, frames_processed, fps, runtime_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		e.CameraID, e.Timestamp, countsJSON, e.TotalObjects,
		e.FramesProcessed, e.FPS, e.RuntimeSeconds,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append detection log: %w", err)
	}
	return id, nil
}

// RecentCounts returns the counts of the camera's latest n reports, newest
// first. Used as the anomaly baseline.
func (s *Store) RecentCounts(ctx context.Context, cameraID string, n int) ([]map[string]ClassCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT counts FROM detection_logs
		 WHERE camera_id = $1 ORDER BY ts DESC LIMIT $2`,
		cameraID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent counts: %w", err)
	}
	defer rows.Close()

	var result []map[string]ClassCount
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan recent counts: %w", err)
		}
		counts := make(map[string]ClassCount)
		if err := json.Unmarshal(raw, &counts); err != nil {
			return nil, fmt.Errorf("decode recent counts: %w", err)
		}
		result = append(result, counts)
	}
	return result, rows.Err()
}

// ListByCamera returns the camera's logs in a time range, newest first.
func (s *Store) ListByCamera(ctx context.Context, cameraID string, from, to time.Time, limit int) ([]LogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, camera_id, ts, counts, total_objects, frames_processed,
		        fps, runtime_seconds, created_at
		 FROM detection_logs
		 WHERE camera_id = $1 AND ts >= $2 AND ts <= $3
		 ORDER BY ts DESC LIMIT $4`,
		cameraID, from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list detection logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var raw []byte
		if err := rows.Scan(&e.ID, &e.CameraID, &e.Timestamp, &raw, &e.TotalObjects,
			&e.FramesProcessed, &e.FPS, &e.RuntimeSeconds, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan detection log: %w", err)
		}
		e.Counts = make(map[string]ClassCount)
		if err := json.Unmarshal(raw, &e.Counts); err != nil {
			return nil, fmt.Errorf("decode detection log counts: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// StatsByCamera aggregates a camera's logs over a time range.
func (s *Store) StatsByCamera(ctx context.Context, cameraID string, from, to time.Time) (Stats, error) {
	stats := Stats{CameraID: cameraID}
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), COALESCE(sum(total_objects), 0), avg(fps), min(ts), max(ts)
		 FROM detection_logs
		 WHERE camera_id = $1 AND ts >= $2 AND ts <= $3`,
		cameraID, from, to,
	).Scan(&stats.Reports, &stats.TotalObjects, &stats.AvgFPS,
		&stats.FirstReport, &stats.LastReport)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate detection logs: %w", err)
	}
	return stats, nil
}
