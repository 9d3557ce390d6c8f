package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrKeyNotFound = errors.New("api key not found")

type APIKey struct {
	KeyID      string
	KeyHash    string
	TenantID   string
	SiteID     string
	DeviceID   string
	Status     string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Store persists API key records. Only hashes ever reach this layer.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Insert(ctx context.Context, key APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (key_id, key_hash, tenant_id, site_id, device_id, status)
		 VALUES ($1, $2, $3, $4, $5, 'active')`,
		key.KeyID, key.KeyHash, key.TenantID, key.SiteID, key.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// FindActiveByHash authenticates a device request. The caller hashes the
// presented plaintext first; plaintext never reaches the store.
func (s *Store) FindActiveByHash(ctx context.Context, keyHash string) (APIKey, error) {
	var k APIKey
	err := s.pool.QueryRow(ctx,
		`SELECT key_id, key_hash, tenant_id, site_id, device_id, status, created_at, last_used_at
		 FROM api_keys WHERE key_hash = $1 AND status = 'active'`,
		keyHash,
	).Scan(&k.KeyID, &k.KeyHash, &k.TenantID, &k.SiteID, &k.DeviceID, &k.Status, &k.CreatedAt, &k.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, ErrKeyNotFound
		}
		return APIKey{}, fmt.Errorf("query api key: %w", err)
	}
	return k, nil
}

func (s *Store) TouchLastUsed(ctx context.Context, keyID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE key_id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func (s *Store) Revoke(ctx context.Context, keyID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET status = 'revoked' WHERE key_id = $1`, keyID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}
