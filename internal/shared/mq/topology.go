package mq

import (
	"context"
	"fmt"

	"taxirn/internal/shared/logger"
)

const (
	// MapExchange — topic exchange для событий сохраненных локаций и маршрутов
	MapExchange = "map_topic"

	RoutingLocationSaved   = "location.saved"
	RoutingLocationDeleted = "location.deleted"
	RoutingRouteSaved      = "route.saved"
	RoutingRouteDeleted    = "route.deleted"
)

// MapQueues — durable очереди, привязанные к MapExchange по одноименному ключу
var MapQueues = []string{
	RoutingLocationSaved,
	RoutingLocationDeleted,
	RoutingRouteSaved,
	RoutingRouteDeleted,
}

// SetupTopology объявляет exchange и очереди map-сервиса
func SetupTopology(ctx context.Context, r *RabbitMQ, log *logger.Logger) error {
	ch := r.Channel()
	if ch == nil {
		return ErrChannelUnavailable
	}

	if err := ch.ExchangeDeclare(MapExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", MapExchange, err)
	}

	for _, q := range MapQueues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, MapExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}

	log.Info(logger.Entry{
		Action:     "topology_setup_complete",
		Message:    "map exchange and queues declared",
		Additional: map[string]any{"queues": len(MapQueues)},
	})
	return nil
}
