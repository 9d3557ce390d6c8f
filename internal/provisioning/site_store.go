package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SitePgStore struct {
	pool *pgxpool.Pool
}

func NewSitePgStore(pool *pgxpool.Pool) *SitePgStore {
	return &SitePgStore{pool: pool}
}

func (s *SitePgStore) Create(ctx context.Context, site Site) error {
	subadmin := nullable(site.SubadminID)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sites (id, name, location, subadmin_id)
		 VALUES ($1, $2, $3, $4)`,
		site.ID, site.Name, site.Location, subadmin,
	)
	if err != nil {
		return fmt.Errorf("create site: %w", err)
	}
	return nil
}

func (s *SitePgStore) Get(ctx context.Context, id string) (Site, error) {
	var site Site
	var subadmin *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, location, subadmin_id, assigned_cameras, created_at
		 FROM sites WHERE id = $1`,
		id,
	).Scan(&site.ID, &site.Name, &site.Location, &subadmin,
		&site.AssignedCameras, &site.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Site{}, ErrSiteNotFound
		}
		return Site{}, fmt.Errorf("query site: %w", err)
	}
	site.SubadminID = deref(subadmin)
	return site, nil
}

// AppendCamera adds a camera id to the site's assigned list, skipping
// duplicates at the SQL level.
func (s *SitePgStore) AppendCamera(ctx context.Context, siteID, cameraID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sites
		 SET assigned_cameras = array_append(assigned_cameras, $2)
		 WHERE id = $1 AND NOT ($2 = ANY(assigned_cameras))`,
		siteID, cameraID,
	)
	if err != nil {
		return fmt.Errorf("append camera to site: %w", err)
	}
	return nil
}
