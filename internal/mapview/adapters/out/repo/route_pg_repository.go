package repo

import (
	"context"
	"fmt"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type routePgRepository struct {
	pool *pgxpool.Pool
}

func NewRoutePgRepository(pool *pgxpool.Pool) out.RouteRepository {
	return &routePgRepository{pool: pool}
}

func (r *routePgRepository) ListByUser(ctx context.Context, userID string) ([]out.RouteRow, error) {
	query := `
		SELECT id::text, user_id::text, name, description,
		       start_point, end_point, path, distance, duration, created_at
		FROM get_routes($1)
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var result []out.RouteRow
	for rows.Next() {
		var row out.RouteRow
		if err := rows.Scan(
			&row.ID,
			&row.UserID,
			&row.Name,
			&row.Description,
			&row.StartPoint,
			&row.EndPoint,
			&row.Path,
			&row.Distance,
			&row.Duration,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routes: %w", err)
	}

	return result, nil
}

func (r *routePgRepository) Insert(ctx context.Context, row out.NewRouteRow) (string, error) {
	// path может отсутствовать: ST_GeomFromText(NULL) дает NULL
	query := `
		INSERT INTO routes (user_id, name, description, start_point, end_point, path, distance, duration)
		VALUES (
			$1, $2, NULLIF($3, ''),
			ST_GeomFromText($4, 4326),
			ST_GeomFromText($5, 4326),
			ST_GeomFromText($6, 4326),
			NULLIF($7, 0::double precision),
			NULLIF($8, 0::double precision)
		)
		RETURNING id::text
	`

	var id string
	err := r.pool.QueryRow(ctx, query,
		row.UserID,
		row.Name,
		row.Description,
		row.StartPoint,
		row.EndPoint,
		row.Path,
		row.Distance,
		row.Duration,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert route: %w", err)
	}
	return id, nil
}

func (r *routePgRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM routes WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
