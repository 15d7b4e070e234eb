package out

import (
	"context"
	"time"
)

// LocationRow — строка get_locations(); Coordinates — hex EWKB, GeoJSON или WKT
type LocationRow struct {
	ID          string
	UserID      string
	Name        string
	Description *string
	Coordinates string
	CreatedAt   time.Time
}

// NewLocationRow — данные для вставки; Coordinates в WKT
type NewLocationRow struct {
	UserID      string
	Name        string
	Description string
	Coordinates string
}

// LocationRepository — хранилище сохраненных мест
type LocationRepository interface {
	// ListByUser возвращает места пользователя, новые первыми
	ListByUser(ctx context.Context, userID string) ([]LocationRow, error)

	// Insert сохраняет место и возвращает его ID
	Insert(ctx context.Context, row NewLocationRow) (string, error)

	// Delete удаляет место пользователя
	Delete(ctx context.Context, userID, id string) error
}
