package in_ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taxirn/internal/mapview/application/ports/in"
	"taxirn/internal/mapview/application/usecase"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/ws"
)

// Ответы на команды
const (
	MsgCommandResult = "command.result"
	MsgCommandError  = "command.error"
)

// Команды коллекций, которые обслуживают сервисы, а не контроллер
const (
	CmdSaveLocation   = "save_location"
	CmdDeleteLocation = "delete_location"
	CmdSaveRoute      = "save_route"
	CmdDeleteRoute    = "delete_route"
)

const commandTimeout = 30 * time.Second

// Sessions — открытие карты пользователя
type Sessions interface {
	Open(ctx context.Context, userID string) (*usecase.Session, error)
}

// SceneReplayer — повторная отправка сцены новому соединению
type SceneReplayer interface {
	Replay(userID string)
}

// Sender — часть ws.Hub для ответов
type Sender interface {
	SendTypedMessage(userID, msgType string, data any) error
}

type commandResult struct {
	Type   string `json:"type"`
	Result any    `json:"result,omitempty"`
}

type commandError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// CommandHandler — канал команд popup UI поверх WebSocket.
// Входящее сообщение {type, data}: type — тип команды, data — ее параметры.
type CommandHandler struct {
	sessions Sessions
	scenes   SceneReplayer
	sender   Sender
	log      *logger.Logger
}

func NewCommandHandler(sessions Sessions, scenes SceneReplayer, sender Sender, log *logger.Logger) *CommandHandler {
	return &CommandHandler{sessions: sessions, scenes: scenes, sender: sender, log: log}
}

// Register подключает обработчики к хабу
func (h *CommandHandler) Register(hub *ws.Hub) {
	hub.SetMessageHandler(h.HandleMessage)
	hub.SetConnectHandler(h.HandleConnect)
}

// HandleConnect открывает сессию и отправляет новой вкладке текущую сцену
func (h *CommandHandler) HandleConnect(client *ws.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, err := h.sessions.Open(ctx, client.UserID); err != nil {
		h.log.Error(logger.Entry{
			Action:     "ws_session_open_failed",
			Message:    err.Error(),
			UserID:     client.UserID,
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"client_id": client.ID},
		})
		return
	}
	h.scenes.Replay(client.UserID)
}

// HandleMessage выполняет команду и отвечает command.result либо command.error.
// Ошибки команды уходят клиенту; наверх возвращаются только ошибки отправки.
func (h *CommandHandler) HandleMessage(client *ws.Client, msgType string, data json.RawMessage) error {
	var cmd in.Command
	if len(data) > 0 {
		if err := json.Unmarshal(data, &cmd); err != nil {
			return h.reply(client.UserID, commandError{Type: msgType, Error: "invalid command payload"})
		}
	}
	cmd.Type = msgType

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := h.execute(ctx, client.UserID, cmd, data)
	if err != nil {
		h.logCommandError(client, cmd, err)
		return h.reply(client.UserID, commandError{Type: msgType, Error: err.Error()})
	}
	return h.reply(client.UserID, commandResult{Type: msgType, Result: result})
}

func (h *CommandHandler) execute(ctx context.Context, userID string, cmd in.Command, data json.RawMessage) (any, error) {
	s, err := h.sessions.Open(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch cmd.Type {
	case CmdSaveLocation:
		input, err := decodeSaveInput(data)
		if err != nil {
			return nil, err
		}
		return s.Locations.Save(ctx, input)
	case CmdDeleteLocation:
		if err := s.Locations.Delete(ctx); err != nil {
			return nil, err
		}
		return s.Controller.View(), nil
	case CmdSaveRoute:
		input, err := decodeSaveInput(data)
		if err != nil {
			return nil, err
		}
		return s.Routes.Save(ctx, input)
	case CmdDeleteRoute:
		if err := s.Routes.Delete(ctx); err != nil {
			return nil, err
		}
		return s.Controller.View(), nil
	}
	return s.Controller.HandleCommand(ctx, cmd)
}

func decodeSaveInput(data json.RawMessage) (in.SaveInput, error) {
	var input in.SaveInput
	if len(data) == 0 {
		return input, domain.ErrNameRequired
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return input, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return input, nil
}

func (h *CommandHandler) logCommandError(client *ws.Client, cmd in.Command, err error) {
	entry := logger.Entry{
		Action:  "ws_command_failed",
		Message: err.Error(),
		UserID:  client.UserID,
		Additional: map[string]any{
			"client_id": client.ID,
			"command":   cmd.Type,
		},
	}
	// пользовательские ошибки — обычный исход
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
		h.log.Debug(entry)
		return
	}
	entry.Error = &logger.ErrObj{Msg: err.Error()}
	h.log.Warn(entry)
}

func (h *CommandHandler) reply(userID string, payload any) error {
	msgType := MsgCommandResult
	if _, ok := payload.(commandError); ok {
		msgType = MsgCommandError
	}
	if err := h.sender.SendTypedMessage(userID, msgType, payload); err != nil {
		return fmt.Errorf("send %s: %w", msgType, err)
	}
	return nil
}
