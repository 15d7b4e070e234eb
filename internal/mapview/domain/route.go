package domain

import (
	"time"

	"taxirn/internal/shared/utils"
)

// SavedRoute — сохраненный маршрут пользователя
type SavedRoute struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StartPoint  Point     `json:"start_point"`
	EndPoint    Point     `json:"end_point"`
	Path        []Point   `json:"path,omitempty"`
	Distance    float64   `json:"distance,omitempty"`
	Duration    float64   `json:"duration,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r *SavedRoute) IsSynthetic() bool {
	return utils.IsTempID(r.ID)
}

// Matches — обе конечные точки совпадают точно
func (r *SavedRoute) Matches(start, end Point) bool {
	return r.StartPoint.Equal(start) && r.EndPoint.Equal(end)
}

// NewSyntheticRoute — временный маршрут из результата routing API
func NewSyntheticRoute(userID string, start, end Point, g *RouteGeometry) *SavedRoute {
	r := &SavedRoute{
		ID:         utils.NewTempID(),
		UserID:     userID,
		Name:       "Current route",
		StartPoint: start,
		EndPoint:   end,
		CreatedAt:  time.Now().UTC(),
	}
	if g != nil {
		r.Path = g.Path
		r.Distance = g.Distance
		r.Duration = g.Duration
	}
	return r
}

func FindRouteBetween(list []SavedRoute, start, end Point) *SavedRoute {
	for i := range list {
		if list[i].Matches(start, end) {
			return &list[i]
		}
	}
	return nil
}

func FindRoute(list []SavedRoute, id string) *SavedRoute {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}
