package repo

import (
	"context"
	"fmt"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type locationPgRepository struct {
	pool *pgxpool.Pool
}

func NewLocationPgRepository(pool *pgxpool.Pool) out.LocationRepository {
	return &locationPgRepository{pool: pool}
}

func (r *locationPgRepository) ListByUser(ctx context.Context, userID string) ([]out.LocationRow, error) {
	// геометрия приходит из get_locations() как GeoJSON
	query := `
		SELECT id::text, user_id::text, name, description, coordinates, created_at
		FROM get_locations($1)
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var result []out.LocationRow
	for rows.Next() {
		var row out.LocationRow
		if err := rows.Scan(
			&row.ID,
			&row.UserID,
			&row.Name,
			&row.Description,
			&row.Coordinates,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}

	return result, nil
}

func (r *locationPgRepository) Insert(ctx context.Context, row out.NewLocationRow) (string, error) {
	query := `
		INSERT INTO locations (user_id, name, description, coordinates)
		VALUES ($1, $2, NULLIF($3, ''), ST_GeomFromText($4, 4326))
		RETURNING id::text
	`

	var id string
	if err := r.pool.QueryRow(ctx, query, row.UserID, row.Name, row.Description, row.Coordinates).Scan(&id); err != nil {
		return "", fmt.Errorf("insert location: %w", err)
	}
	return id, nil
}

func (r *locationPgRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM locations WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
