package out

import (
	"context"

	"taxirn/internal/mapview/domain"
)

// PlaceSearcher — геокодирование строки в список мест
type PlaceSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Place, error)
}
