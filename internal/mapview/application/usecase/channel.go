package usecase

import (
	"context"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"
)

// userChannel — уведомления и события от имени пользователя сессии.
// Ошибки доставки логируются и не влияют на результат операции.
type userChannel struct {
	userID    string
	notifier  out.Notifier
	publisher out.EventPublisher
	log       *logger.Logger
}

func (c userChannel) notify(ctx context.Context, n domain.Notification) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, c.userID, n); err != nil {
		c.log.Warn(logger.Entry{
			Action:     "notify_failed",
			Message:    err.Error(),
			UserID:     c.userID,
			Additional: map[string]any{"notification": n.Message},
		})
	}
}

func (c userChannel) publish(ctx context.Context, eventType, entityID, name string) {
	if c.publisher == nil {
		return
	}
	event := domain.MapEvent{
		Type:     eventType,
		UserID:   c.userID,
		EntityID: entityID,
		Name:     name,
	}
	if err := c.publisher.PublishMapEvent(ctx, event); err != nil {
		c.log.Error(logger.Entry{
			Action:  "publish_map_event_failed",
			Message: err.Error(),
			UserID:  c.userID,
			Error:   &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"event_type": eventType,
				"entity_id":  entityID,
			},
		})
		// не возвращаем ошибку: запись уже сохранена
	}
}
