package out_amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/model"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/mq"
)

// Broker — часть mq.RabbitMQ, нужная publisher'у
type Broker interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// MapEventPublisher публикует события сохраненных мест и маршрутов в map_topic
type MapEventPublisher struct {
	broker Broker
	log    *logger.Logger
}

var _ out.EventPublisher = (*MapEventPublisher)(nil)

func NewMapEventPublisher(broker Broker, log *logger.Logger) *MapEventPublisher {
	return &MapEventPublisher{broker: broker, log: log}
}

type mapEventMessage struct {
	domain.MapEvent
	OccurredAt time.Time `json:"occurred_at"`
}

func (p *MapEventPublisher) PublishMapEvent(ctx context.Context, event domain.MapEvent) error {
	routingKey, err := getRoutingKey(event.Type)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(mapEventMessage{MapEvent: event, OccurredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal map event: %w", err)
	}

	if err := p.broker.Publish(ctx, mq.MapExchange, routingKey, payload); err != nil {
		p.log.Error(logger.Entry{
			Action:  "publish_map_event_failed",
			Message: err.Error(),
			UserID:  event.UserID,
			Error:   &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"event_type":  event.Type,
				"routing_key": routingKey,
			},
		})
		return fmt.Errorf("publish to %s: %w", mq.MapExchange, err)
	}

	p.log.Debug(logger.Entry{
		Action:  "map_event_published",
		Message: event.Type,
		UserID:  event.UserID,
		Additional: map[string]any{
			"routing_key": routingKey,
			"entity_id":   event.EntityID,
		},
	})
	return nil
}

func getRoutingKey(eventType string) (string, error) {
	switch eventType {
	case model.EventLocationSaved:
		return mq.RoutingLocationSaved, nil
	case model.EventLocationDeleted:
		return mq.RoutingLocationDeleted, nil
	case model.EventRouteSaved:
		return mq.RoutingRouteSaved, nil
	case model.EventRouteDeleted:
		return mq.RoutingRouteDeleted, nil
	}
	return "", fmt.Errorf("unknown map event type %q", eventType)
}
