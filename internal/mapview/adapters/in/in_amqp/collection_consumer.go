package in_amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taxirn/internal/mapview/application/usecase"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/model"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/mq"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

// MsgCollectionsChanged — коллекция пользователя изменилась в другой вкладке или инстансе
const MsgCollectionsChanged = "collections.changed"

const (
	consumerTag   = "map-service"
	reloadTimeout = 10 * time.Second
)

// Consumer — часть mq.RabbitMQ для чтения очередей
type Consumer interface {
	Consume(ctx context.Context, queue, consumer string, handler func(amqp091.Delivery)) error
}

// SessionLookup — живые сессии без создания новых
type SessionLookup interface {
	Lookup(userID string) (*usecase.Session, bool)
}

// Sender — часть ws.Hub
type Sender interface {
	SendTypedMessage(userID, msgType string, data any) error
}

type collectionsChanged struct {
	Event     string                 `json:"event"`
	EntityID  string                 `json:"entity_id"`
	Locations []domain.SavedLocation `json:"locations,omitempty"`
	Routes    []domain.SavedRoute    `json:"routes,omitempty"`
}

// CollectionSyncConsumer слушает очереди map_topic и перезагружает
// коллекции открытых сессий владельца события
type CollectionSyncConsumer struct {
	mq       Consumer
	sessions SessionLookup
	sender   Sender
	log      *logger.Logger
}

func NewCollectionSyncConsumer(mq Consumer, sessions SessionLookup, sender Sender, log *logger.Logger) *CollectionSyncConsumer {
	return &CollectionSyncConsumer{mq: mq, sessions: sessions, sender: sender, log: log}
}

// Start подписывается на все очереди map_topic
func (c *CollectionSyncConsumer) Start(ctx context.Context) error {
	c.log.Info(logger.Entry{
		Action:  "collection_consumer_starting",
		Message: "starting map event consumer",
	})

	for _, queue := range mq.MapQueues {
		if err := c.mq.Consume(ctx, queue, consumerTag, func(msg amqp091.Delivery) {
			c.handleDelivery(ctx, msg)
		}); err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}
	}
	return nil
}

func (c *CollectionSyncConsumer) handleDelivery(ctx context.Context, msg amqp091.Delivery) {
	var event domain.MapEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil || event.UserID == "" {
		reason := "user_id missing"
		if err != nil {
			reason = err.Error()
		}
		c.log.Warn(logger.Entry{
			Action:     "map_event_invalid",
			Message:    reason,
			Additional: map[string]any{"routing_key": msg.RoutingKey},
		})
		_ = msg.Nack(false, false) // dead letter
		return
	}

	if err := c.sync(ctx, event); err != nil {
		c.log.Error(logger.Entry{
			Action:  "map_event_sync_failed",
			Message: err.Error(),
			UserID:  event.UserID,
			Error:   &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"event_type": event.Type,
				"entity_id":  event.EntityID,
			},
		})
		// повторная доставка одна, дальше dead letter
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	_ = msg.Ack(false)
}

// sync перезагружает коллекцию события; без открытой сессии событие просто подтверждается
func (c *CollectionSyncConsumer) sync(ctx context.Context, event domain.MapEvent) error {
	s, ok := c.sessions.Lookup(event.UserID)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, reloadTimeout)
	defer cancel()

	payload := collectionsChanged{Event: event.Type, EntityID: event.EntityID}
	switch event.Type {
	case model.EventLocationSaved, model.EventLocationDeleted:
		list, err := s.Locations.LoadAll(ctx)
		if err != nil {
			return err
		}
		payload.Locations = list
	case model.EventRouteSaved, model.EventRouteDeleted:
		list, err := s.Routes.LoadAll(ctx)
		if err != nil {
			return err
		}
		payload.Routes = list
	default:
		c.log.Debug(logger.Entry{
			Action:     "map_event_unknown_type",
			Message:    event.Type,
			UserID:     event.UserID,
			Additional: map[string]any{"entity_id": event.EntityID},
		})
		return nil
	}

	if err := c.sender.SendTypedMessage(event.UserID, MsgCollectionsChanged, payload); err != nil {
		c.log.Warn(logger.Entry{
			Action:  "collections_changed_send_failed",
			Message: err.Error(),
			UserID:  event.UserID,
		})
	}
	return nil
}
