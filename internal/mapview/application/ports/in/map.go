package in

import (
	"context"

	"taxirn/internal/mapview/domain"
)

// MapView — наблюдаемое состояние карты пользователя
type MapView struct {
	Phase                domain.Phase          `json:"phase"`
	StartPos             *domain.Point         `json:"startPos"`
	EndPos               *domain.Point         `json:"endPos"`
	Path                 []domain.Point        `json:"path,omitempty"`
	CurrentLocation      *domain.SavedLocation `json:"currentLocation"`
	CurrentRoute         *domain.SavedRoute    `json:"currentRoute"`
	CurrentLocationSaved bool                  `json:"currentLocationSaved"`
	CurrentRouteSaved    bool                  `json:"currentRouteSaved"`
	Viewport             domain.Viewport       `json:"viewport"`
	TileLayer            string                `json:"tileLayer"`
}

// CreatePointInput — установка точки маршрута
type CreatePointInput struct {
	Role    string  `json:"role"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Persist bool    `json:"-"`
}

// MapUseCase — корневые операции карты
type MapUseCase interface {
	Initialize(ctx context.Context, containerID string) (*MapView, error)
	CreatePoint(ctx context.Context, input CreatePointInput) (*MapView, error)
	DeletePoint(ctx context.Context, role string, persist bool) (*MapView, error)
	Reset(ctx context.Context) (*MapView, error)
	GetCurrentLocation(ctx context.Context) (*MapView, error)
	HandleMapClick(ctx context.Context, lat, lng float64) error
	SetTileLayer(ctx context.Context, name string) (*MapView, error)
	SearchPlaces(ctx context.Context, query string, limit int) ([]domain.Place, error)
	HandleCommand(ctx context.Context, cmd Command) (any, error)
	View() *MapView
}
