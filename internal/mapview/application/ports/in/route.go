package in

import (
	"context"

	"taxirn/internal/mapview/domain"
)

// RouteUseCase — сохраненные маршруты и пересчет линии
type RouteUseCase interface {
	LoadAll(ctx context.Context) ([]domain.SavedRoute, error)
	List() []domain.SavedRoute
	Recompute(ctx context.Context) error
	IsCurrentInDB() bool
	Save(ctx context.Context, input SaveInput) (*domain.SavedRoute, error)
	Delete(ctx context.Context) error
	Select(ctx context.Context, id string) error
}
