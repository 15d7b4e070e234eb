package out

import "taxirn/internal/mapview/domain"

// LayerID — идентификатор слоя (маркер или линия) на канвасе
type LayerID string

// Canvas — поверхность отрисовки карты одного пользователя.
// Методы не возвращают ошибок: отрисовка не должна ломать состояние.
type Canvas interface {
	// Mount создает карту в контейнере с начальным viewport и слоем тайлов
	Mount(containerID string, view domain.Viewport, tiles domain.TileLayer)

	// SetTileLayer переключает активный слой тайлов
	SetTileLayer(tiles domain.TileLayer)

	// AddMarker добавляет маркер с иконкой роли
	AddMarker(role domain.Role, at domain.Point) LayerID

	// AddPolyline добавляет линию маршрута
	AddPolyline(path []domain.Point, style domain.LineStyle) LayerID

	// RemoveLayer удаляет маркер или линию
	RemoveLayer(id LayerID)

	SetView(view domain.Viewport)

	FitBounds(bounds domain.Bounds)

	// OfferPoint показывает popup в точке клика с действиями для свободных ролей
	OfferPoint(at domain.Point, free []domain.Role)
}

// CanvasFactory создает канвас для пользователя
type CanvasFactory interface {
	CanvasFor(userID string) Canvas
}
