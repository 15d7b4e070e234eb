package out

import (
	"context"
	"time"
)

// RouteRow — строка get_routes(); геометрия в hex EWKB, GeoJSON или WKT
type RouteRow struct {
	ID          string
	UserID      string
	Name        string
	Description *string
	StartPoint  string
	EndPoint    string
	Path        *string
	Distance    *float64
	Duration    *float64
	CreatedAt   time.Time
}

// NewRouteRow — данные для вставки; геометрия в WKT, Path == nil если вершин < 2
type NewRouteRow struct {
	UserID      string
	Name        string
	Description string
	StartPoint  string
	EndPoint    string
	Path        *string
	Distance    float64
	Duration    float64
}

// RouteRepository — хранилище сохраненных маршрутов
type RouteRepository interface {
	ListByUser(ctx context.Context, userID string) ([]RouteRow, error)
	Insert(ctx context.Context, row NewRouteRow) (string, error)
	Delete(ctx context.Context, userID, id string) error
}
