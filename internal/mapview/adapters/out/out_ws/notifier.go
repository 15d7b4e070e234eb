package out_ws

import (
	"context"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"
)

// WsNotifier доставляет уведомления в браузер пользователя
type WsNotifier struct {
	sender Sender
	log    *logger.Logger
}

var _ out.Notifier = (*WsNotifier)(nil)

func NewWsNotifier(sender Sender, log *logger.Logger) *WsNotifier {
	return &WsNotifier{sender: sender, log: log}
}

func (n *WsNotifier) Notify(_ context.Context, userID string, note domain.Notification) error {
	if err := n.sender.SendTypedMessage(userID, MsgNotify, note); err != nil {
		n.log.Error(logger.Entry{
			Action:     "notify_user_failed",
			Message:    err.Error(),
			UserID:     userID,
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"type": note.Type},
		})
		return err
	}

	n.log.Debug(logger.Entry{
		Action:  "user_notified",
		Message: note.Message,
		UserID:  userID,
	})
	return nil
}
