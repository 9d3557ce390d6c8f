package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PendingPgStore struct {
	pool *pgxpool.Pool
}

func NewPendingPgStore(pool *pgxpool.Pool) *PendingPgStore {
	return &PendingPgStore{pool: pool}
}

// Upsert records a self-report. Repeated reports from the same device
// refresh the row instead of piling up.
func (s *PendingPgStore) Upsert(ctx context.Context, p PendingCamera) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pending_cameras (device_id, mac_address, ip_address, hardware_info)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (device_id) DO UPDATE
		 SET mac_address = EXCLUDED.mac_address, ip_address = EXCLUDED.ip_address,
		     hardware_info = EXCLUDED.hardware_info, reported_at = now()`,
		p.DeviceID, p.MACAddress, p.IPAddress, p.HardwareInfo,
	)
	if err != nil {
		return fmt.Errorf("upsert pending camera: %w", err)
	}
	return nil
}

func (s *PendingPgStore) Get(ctx context.Context, deviceID string) (PendingCamera, error) {
	var p PendingCamera
	err := s.pool.QueryRow(ctx,
		`SELECT device_id, mac_address, ip_address, hardware_info, reported_at
		 FROM pending_cameras WHERE device_id = $1`,
		deviceID,
	).Scan(&p.DeviceID, &p.MACAddress, &p.IPAddress, &p.HardwareInfo, &p.ReportedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingCamera{}, ErrPendingNotFound
		}
		return PendingCamera{}, fmt.Errorf("query pending camera: %w", err)
	}
	return p, nil
}

func (s *PendingPgStore) List(ctx context.Context) ([]PendingCamera, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT device_id, mac_address, ip_address, hardware_info, reported_at
		 FROM pending_cameras ORDER BY reported_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending cameras: %w", err)
	}
	defer rows.Close()

	var pending []PendingCamera
	for rows.Next() {
		var p PendingCamera
		if err := rows.Scan(&p.DeviceID, &p.MACAddress, &p.IPAddress,
			&p.HardwareInfo, &p.ReportedAt); err != nil {
			return nil, fmt.Errorf("scan pending camera: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func (s *PendingPgStore) Delete(ctx context.Context, deviceID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pending_cameras WHERE device_id = $1`, deviceID)
	if err != nil {
		return fmt.Errorf("delete pending camera: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPendingNotFound
	}
	return nil
}
