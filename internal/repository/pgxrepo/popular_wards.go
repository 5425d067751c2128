package pgxrepo

import (
	"context"
	"fmt"

	"wardrate-engine/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type popularWardSource struct {
	db *pgxpool.Pool
}

// NewPopularWardSource reads preheat targets from the popular_wards table,
// which the external analytics job refreshes from order history. The
// engine only reads it.
func NewPopularWardSource(db *pgxpool.Pool) domain.PopularWardSource {
	return &popularWardSource{db: db}
}

func (s *popularWardSource) PopularWards(ctx context.Context, limit int) ([]domain.PreheatTarget, error) {
	rows, err := s.db.Query(ctx,
		`SELECT instance_id, ward_code
		 FROM popular_wards
		 ORDER BY order_count DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular wards: %w", err)
	}
	defer rows.Close()

	var targets []domain.PreheatTarget
	for rows.Next() {
		var t domain.PreheatTarget
		if err := rows.Scan(&t.InstanceID, &t.WardCode); err != nil {
			return nil, fmt.Errorf("failed to scan popular ward: %w", err)
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}
