package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetByHash(ctx context.Context, tokenHash string) (Token, error) {
	var t Token
	err := s.pool.QueryRow(ctx,
		`SELECT token_hash, tenant_id, COALESCE(site_id, ''), active, expires_at,
		        max_uses, uses, last_used_at, created_at
		 FROM enroll_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(&t.TokenHash, &t.TenantID, &t.SiteID, &t.Active, &t.ExpiresAt,
		&t.MaxUses, &t.Uses, &t.LastUsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrTokenNotFound
		}
		return Token{}, fmt.Errorf("query enroll token: %w", err)
	}
	return t, nil
}

// ConsumeOnce atomically increments the token's use count. The WHERE clause
// (active AND uses < max_uses) makes the increment conditional: two devices
// racing on a nearly exhausted token cannot both succeed. The loser's UPDATE
// matches zero rows and reports ErrTokenExhausted.
func (s *Store) ConsumeOnce(ctx context.Context, tokenHash string) error {
	var uses int
	err := s.pool.QueryRow(ctx,
		`UPDATE enroll_tokens
		 SET uses = uses + 1, last_used_at = now()
		 WHERE token_hash = $1
		   AND active
		   AND (expires_at IS NULL OR expires_at > now())
		   AND (max_uses IS NULL OR uses < max_uses)
		 RETURNING uses`,
		tokenHash,
	).Scan(&uses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Zero rows can mean exhausted, deactivated, or expired; the
			// token may have changed between the caller's pre-check and
			// this UPDATE. Re-read to report the right failure.
			t, lookupErr := s.GetByHash(ctx, tokenHash)
			if lookupErr != nil {
				return lookupErr
			}
			return classifyConsumeFailure(t, time.Now())
		}
		return fmt.Errorf("consume enroll token: %w", err)
	}
	return nil
}

// classifyConsumeFailure explains a conditional consume that matched no rows.
func classifyConsumeFailure(t Token, now time.Time) error {
	switch {
	case !t.Active:
		return ErrTokenInactive
	case t.ExpiresAt != nil && now.After(*t.ExpiresAt):
		return ErrTokenExpired
	default:
		return ErrTokenExhausted
	}
}

// CreateToken stores a new enrollment token hash. Used by administrative
// tooling; devices never create tokens.
func (s *Store) CreateToken(ctx context.Context, t Token) error {
	siteID := any(t.SiteID)
	if t.SiteID == "" {
		siteID = nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enroll_tokens (token_hash, tenant_id, site_id, active, expires_at, max_uses)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.TokenHash, t.TenantID, siteID, t.Active, t.ExpiresAt, t.MaxUses,
	)
	if err != nil {
		return fmt.Errorf("create enroll token: %w", err)
	}
	return nil
}
