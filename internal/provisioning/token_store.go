package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokenPgStore struct {
	pool *pgxpool.Pool
}

func NewTokenPgStore(pool *pgxpool.Pool) *TokenPgStore {
	return &TokenPgStore{pool: pool}
}

func (s *TokenPgStore) Create(ctx context.Context, t Token) error {
	subadmin := nullable(t.SubadminID)
	createdBy := nullable(t.CreatedBy)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO provisioning_tokens
		   (token, camera_name, site_id, subadmin_id, status, created_by, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.Token, t.CameraName, t.SiteID, subadmin, t.Status, createdBy, t.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create provisioning token: %w", err)
	}
	return nil
}

func (s *TokenPgStore) Get(ctx context.Context, token string) (Token, error) {
	var t Token
	var subadmin, createdBy, assigned *string
	err := s.pool.QueryRow(ctx,
		`SELECT token, camera_name, site_id, subadmin_id, status, created_at,
		        created_by, expires_at, used_at, assigned_camera_id
		 FROM provisioning_tokens WHERE token = $1`,
		token,
	).Scan(&t.Token, &t.CameraName, &t.SiteID, &subadmin, &t.Status, &t.CreatedAt,
		&createdBy, &t.ExpiresAt, &t.UsedAt, &assigned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrTokenNotFound
		}
		return Token{}, fmt.Errorf("query provisioning token: %w", err)
	}
	t.SubadminID = deref(subadmin)
	t.CreatedBy = deref(createdBy)
	t.AssignedCameraID = deref(assigned)
	return t, nil
}

// MarkUsed flips a pending token to used. The status guard in the WHERE
// clause keeps two agents redeeming the same token from both succeeding.
func (s *TokenPgStore) MarkUsed(ctx context.Context, token, cameraID string, usedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE provisioning_tokens
		 SET status = 'used', used_at = $2, assigned_camera_id = $3
		 WHERE token = $1 AND status = 'pending'`,
		token, usedAt, cameraID,
	)
	if err != nil {
		return fmt.Errorf("mark provisioning token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenUsed
	}
	return nil
}

// MarkExpired is the lazy expiry flip on a post-expiry redemption attempt.
func (s *TokenPgStore) MarkExpired(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE provisioning_tokens SET status = 'expired'
		 WHERE token = $1 AND status = 'pending'`,
		token,
	)
	if err != nil {
		return fmt.Errorf("mark provisioning token expired: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
