package pgxrepo

import (
	"context"
	"errors"
	"fmt"

	"wardrate-engine/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type locationRepository struct {
	db *pgxpool.Pool
}

func NewLocationRepository(db *pgxpool.Pool) domain.LocationRepository {
	return &locationRepository{db: db}
}

func (r *locationRepository) Lookup(ctx context.Context, code string) (*domain.Location, error) {
	var loc domain.Location
	err := r.db.QueryRow(ctx,
		`SELECT code, name, parent_code FROM locations WHERE code = $1`,
		code,
	).Scan(&loc.Code, &loc.Name, &loc.ParentCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLocationNotFound
		}
		return nil, fmt.Errorf("failed to lookup location: %w", err)
	}
	return &loc, nil
}
