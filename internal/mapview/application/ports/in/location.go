package in

import (
	"context"

	"taxirn/internal/mapview/domain"
)

// SaveInput — имя и описание сохраняемой записи
type SaveInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LocationUseCase — сохраненные места пользователя
type LocationUseCase interface {
	LoadAll(ctx context.Context) ([]domain.SavedLocation, error)
	List() []domain.SavedLocation
	ReconcileCurrent()
	IsCurrentInDB() bool
	Save(ctx context.Context, input SaveInput) (*domain.SavedLocation, error)
	Delete(ctx context.Context) error
	Select(ctx context.Context, id string) error
}
