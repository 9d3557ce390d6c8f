package devices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrDeviceNotFound = errors.New("device not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Upsert registers a device or refreshes an existing registration. Repeated
// registrations with the same site and camera land on the same row.
func (s *Store) Upsert(ctx context.Context, d Device) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO devices (device_id, tenant_id, site_id, camera_id, status, registered_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (device_id) DO UPDATE SET
		   tenant_id = EXCLUDED.tenant_id,
		   site_id = EXCLUDED.site_id,
		   camera_id = EXCLUDED.camera_id,
		   status = EXCLUDED.status,
		   last_seen_at = now()`,
		d.DeviceID, d.TenantID, d.SiteID, d.CameraID, d.Status,
	)
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, deviceID string) (Device, error) {
	var d Device
	var health, detector []byte
	err := s.pool.QueryRow(ctx,
		`SELECT device_id, tenant_id, site_id, camera_id, status, registered_at,
		        last_seen_at, fps, frame_count, system_health, detector_status
		 FROM devices WHERE device_id = $1`,
		deviceID,
	).Scan(&d.DeviceID, &d.TenantID, &d.SiteID, &d.CameraID, &d.Status,
		&d.RegisteredAt, &d.LastSeenAt, &d.FPS, &d.FrameCount, &health, &detector)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, fmt.Errorf("query device: %w", err)
	}
	if len(health) > 0 {
		_ = json.Unmarshal(health, &d.SystemHealth)
	}
	if len(detector) > 0 {
		_ = json.Unmarshal(detector, &d.DetectorStat)
	}
	return d, nil
}

func (s *Store) ListBySite(ctx context.Context, siteID string) ([]Device, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT device_id, tenant_id, site_id, camera_id, status, registered_at, last_seen_at
		 FROM devices WHERE site_id = $1 ORDER BY registered_at`,
		siteID,
	)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var result []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.DeviceID, &d.TenantID, &d.SiteID, &d.CameraID,
			&d.Status, &d.RegisteredAt, &d.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// TouchHeartbeat refreshes liveness and replaces the health snapshot for the
// device reporting under cameraID. Last write wins per whole snapshot.
func (s *Store) TouchHeartbeat(ctx context.Context, cameraID string, snap HealthSnapshot) error {
	healthJSON, err := json.Marshal(snap.SystemHealth)
	if err != nil {
		return fmt.Errorf("marshal system health: %w", err)
	}
	detectorJSON, err := json.Marshal(snap.DetectorStatus)
	if err != nil {
		return fmt.Errorf("marshal detector status: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE devices SET
		   last_seen_at = now(),
		   status = 'online',
		   fps = $2,
		   frame_count = $3,
		   system_health = $4,
		   detector_status = $5
		 WHERE camera_id = $1`,
		cameraID, snap.FPS, snap.FrameCount, healthJSON, detectorJSON,
	)
	if err != nil {
		return fmt.Errorf("touch device heartbeat: %w", err)
	}
	return nil
}

// MarkStaleOffline flips every online device silent for longer than the
// liveness window to offline. One batch statement, safe to re-run.
func (s *Store) MarkStaleOffline(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE devices SET status = 'offline'
		 WHERE status = 'online' AND last_seen_at < now() - interval '5 minutes'`,
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale devices offline: %w", err)
	}
	return tag.RowsAffected(), nil
}
