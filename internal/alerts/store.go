package alerts

import (
	"context"
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

func (s *Store) Create(ctx context.Context, r Rule) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO alert_rules (name, site_id, cameras, threshold, cooldown_minutes, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		r.Name, r.SiteID, r.Cameras, r.Threshold, r.CooldownMinutes, r.Enabled,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create alert rule: %w", err)
	}
	return id, nil
}

// ListEnabledForCamera returns enabled rules on the site that either name
// the camera explicitly or apply to the whole site.
func (s *Store) ListEnabledForCamera(ctx context.Context, siteID, cameraID string) ([]Rule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, site_id, COALESCE(cameras, '{}'), threshold, cooldown_minutes, enabled,
		        last_triggered, created_at
		 FROM alert_rules
		 WHERE enabled AND site_id = $1
		   AND (cameras IS NULL OR cardinality(cameras) = 0 OR $2 = ANY(cameras))`,
		siteID, cameraID,
	)
	if err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.SiteID, &r.Cameras, &r.Threshold,
			&r.CooldownMinutes, &r.Enabled, &r.LastTriggered, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// StampTriggered records the firing time. The WHERE guard re-checks the
// cooldown so two racing evaluations do not both fire the same rule. A
// rule is eligible again once the full cooldown has elapsed, boundary
// included, matching Rule.InCooldown.
func (s *Store) StampTriggered(ctx context.Context, ruleID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alert_rules SET last_triggered = $2
		 WHERE id = $1
		   AND (last_triggered IS NULL
		        OR last_triggered <= $2 - make_interval(mins => cooldown_minutes))`,
		ruleID, at,
	)
	if err != nil {
		return false, fmt.Errorf("stamp alert rule: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
