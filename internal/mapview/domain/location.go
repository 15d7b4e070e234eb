package domain

import (
	"time"

	"taxirn/internal/shared/utils"
)

// SavedLocation — сохраненное место пользователя.
// Синтетическая запись (ID с префиксом "temp-") описывает несохраненную
// стартовую точку и в БД не существует.
type SavedLocation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Coordinates Point     `json:"coordinates"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsSynthetic — запись не сохранена на сервере
func (l *SavedLocation) IsSynthetic() bool {
	return utils.IsTempID(l.ID)
}

// NewSyntheticLocation создает временную запись для стартовой точки
func NewSyntheticLocation(userID string, p Point) *SavedLocation {
	return &SavedLocation{
		ID:          utils.NewTempID(),
		UserID:      userID,
		Name:        "Current location",
		Coordinates: p,
		CreatedAt:   time.Now().UTC(),
	}
}

// FindLocationAt ищет запись с точно совпадающими координатами
func FindLocationAt(list []SavedLocation, p Point) *SavedLocation {
	for i := range list {
		if list[i].Coordinates.Equal(p) {
			return &list[i]
		}
	}
	return nil
}

// FindLocation ищет запись по ID
func FindLocation(list []SavedLocation, id string) *SavedLocation {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}
