package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CameraPgStore struct {
	pool *pgxpool.Pool
}

func NewCameraPgStore(pool *pgxpool.Pool) *CameraPgStore {
	return &CameraPgStore{pool: pool}
}

func (s *CameraPgStore) Insert(ctx context.Context, c Camera) error {
	subadmin := nullable(c.SubadminID)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cameras
		   (id, name, site_id, subadmin_id, device_id, mac_address, serial_number,
		    raspberry_pi_ip, status, device_token_hash, registered_by,
		    registration_method, detection_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'inactive')`,
		c.ID, c.Name, c.SiteID, subadmin, c.DeviceID, c.MACAddress,
		c.SerialNumber, c.RaspberryPiIP, c.Status, c.DeviceTokenHash,
		c.RegisteredBy, c.Method,
	)
	if err != nil {
		return fmt.Errorf("insert camera: %w", err)
	}
	return nil
}

func (s *CameraPgStore) Get(ctx context.Context, id string) (Camera, error) {
	var c Camera
	var subadmin *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, site_id, subadmin_id, device_id, mac_address, serial_number,
		        raspberry_pi_ip, status, registered_at, registered_by,
		        registration_method, detection_status, activated, activated_at,
		        last_seen_at, last_stats
		 FROM cameras WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.SiteID, &subadmin, &c.DeviceID, &c.MACAddress,
		&c.SerialNumber, &c.RaspberryPiIP, &c.Status, &c.RegisteredAt,
		&c.RegisteredBy, &c.Method, &c.DetectionStatus, &c.Activated,
		&c.ActivatedAt, &c.LastSeenAt, &c.LastStats)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Camera{}, ErrCameraNotFound
		}
		return Camera{}, fmt.Errorf("query camera: %w", err)
	}
	c.SubadminID = deref(subadmin)
	return c, nil
}

func (s *CameraPgStore) List(ctx context.Context, siteID string) ([]Camera, error) {
	query := `SELECT id, name, site_id, subadmin_id, device_id, status,
	                 registration_method, detection_status, activated, last_seen_at
	          FROM cameras ORDER BY registered_at DESC`
	args := []any{}
	if siteID != "" {
		query = `SELECT id, name, site_id, subadmin_id, device_id, status,
		                registration_method, detection_status, activated, last_seen_at
		         FROM cameras WHERE site_id = $1 ORDER BY registered_at DESC`
		args = append(args, siteID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	var cameras []Camera
	for rows.Next() {
		var c Camera
		var subadmin *string
		if err := rows.Scan(&c.ID, &c.Name, &c.SiteID, &subadmin, &c.DeviceID,
			&c.Status, &c.Method, &c.DetectionStatus, &c.Activated, &c.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan camera: %w", err)
		}
		c.SubadminID = deref(subadmin)
		cameras = append(cameras, c)
	}
	return cameras, rows.Err()
}

// TouchHeartbeat refreshes liveness and the latest stats snapshot for the
// camera that produced a telemetry report. Last write wins.
func (s *CameraPgStore) TouchHeartbeat(ctx context.Context, cameraID string, stats map[string]any) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE cameras
		 SET last_seen_at = now(), status = 'online', last_stats = $2, updated_at = now()
		 WHERE id = $1`,
		cameraID, stats,
	)
	if err != nil {
		return fmt.Errorf("touch camera heartbeat: %w", err)
	}
	return nil
}

func (s *CameraPgStore) SetDetectionStatus(ctx context.Context, cameraID, status string) error {
	col := "detection_started_at"
	if status != "active" {
		col = "detection_stopped_at"
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE cameras SET detection_status = $2, `+col+` = now(), updated_at = now()
		 WHERE id = $1`,
		cameraID, status,
	)
	if err != nil {
		return fmt.Errorf("set detection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCameraNotFound
	}
	return nil
}

// Activate records the activation webhook. Unknown cameras get a minimal
// row so an out-of-order webhook is not lost.
func (s *CameraPgStore) Activate(ctx context.Context, cameraID, siteID, status string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cameras (id, name, site_id, status, device_token_hash,
		                      registration_method, activated, activated_at)
		 VALUES ($1, $1, $2, $3, '', 'webhook', true, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET site_id = EXCLUDED.site_id, status = EXCLUDED.status,
		     activated = true, activated_at = EXCLUDED.activated_at, updated_at = now()`,
		cameraID, siteID, status, at,
	)
	if err != nil {
		return fmt.Errorf("activate camera: %w", err)
	}
	return nil
}

// MarkStaleOffline implements the liveness sweep for cameras.
func (s *CameraPgStore) MarkStaleOffline(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cameras SET status = 'offline', updated_at = now()
		 WHERE status = 'online' AND last_seen_at < now() - interval '5 minutes'`,
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale cameras offline: %w", err)
	}
	return tag.RowsAffected(), nil
}
