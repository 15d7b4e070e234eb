package out

import (
	"context"

	"taxirn/internal/mapview/domain"
)

// EventPublisher — публикация событий коллекций в RabbitMQ
type EventPublisher interface {
	// PublishMapEvent публикует событие
	// eventType: LOCATION_SAVED | LOCATION_DELETED | ROUTE_SAVED | ROUTE_DELETED
	PublishMapEvent(ctx context.Context, event domain.MapEvent) error
}
