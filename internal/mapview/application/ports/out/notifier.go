package out

import (
	"context"

	"taxirn/internal/mapview/domain"
)

// Notifier — доставка уведомлений пользователю (WebSocket)
type Notifier interface {
	Notify(ctx context.Context, userID string, n domain.Notification) error
}
