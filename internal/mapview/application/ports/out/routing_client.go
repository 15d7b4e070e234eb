package out

import (
	"context"

	"taxirn/internal/mapview/domain"
)

// RoutingClient — внешний routing API (OSRM).
// Ошибки: domain.ErrRouteNotFound, domain.ErrServiceError.
type RoutingClient interface {
	FetchRoute(ctx context.Context, start, end domain.Point) (*domain.RouteGeometry, error)
}
