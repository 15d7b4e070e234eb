// ============================================================================
// WEBSOCKET HUB - Менеджер WebSocket соединений браузеров
// ============================================================================
//
// 📡 НАЗНАЧЕНИЕ:
// Через Hub браузер пользователя получает команды отрисовки карты
// (маркеры, линия маршрута, viewport, popup) и уведомления, а обратно
// отправляет команды popup'ов ("create_point", "delete_point", ...).
//
// 🔐 БЕЗОПАСНОСТЬ:
// Первое сообщение после подключения — {"token": "<JWT>"}; на него дается
// authTimeout, без валидного токена соединение закрывается.
//
// 🏗️ ПОТОК:
//
//   Браузер ──ws──► ServeWS ──► auth ──► register ──► Run()
//                                             │
//                    readPump ◄───────────────┤──► MessageHandler(client, type, data)
//                    writePump ◄── client.send ◄── SendToUser / SendTypedMessage
//
// ============================================================================

package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"taxirn/internal/shared/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	authTimeout    = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 8192
	writeWait      = 10 * time.Second
	sendBuffer     = 256
)

// AuthFunc проверяет токен и возвращает userID и роль
type AuthFunc func(token string) (userID, role string, err error)

// MessageHandler вызывается на каждое входящее сообщение {type, data}
type MessageHandler func(client *Client, messageType string, data json.RawMessage) error

// ConnectHandler вызывается после успешной аутентификации клиента
type ConnectHandler func(client *Client)

// Envelope — формат всех сообщений в обе стороны
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client — одно WebSocket соединение
type Client struct {
	ID     string
	UserID string
	Role   string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

// Hub управляет всеми активными соединениями
type Hub struct {
	clients    map[string]*Client
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	upgrader   websocket.Upgrader
	authFunc   AuthFunc
	onMessage  MessageHandler
	onConnect  ConnectHandler
	log        *logger.Logger
}

// NewHub создает Hub. allowedOrigin == "*" разрешает любой Origin (dev).
// После создания нужно запустить hub.Run(ctx) в горутине.
func NewHub(authFunc AuthFunc, allowedOrigin string, log *logger.Logger) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 10),
		unregister: make(chan *Client, 10),
		broadcast:  make(chan []byte, sendBuffer),
		authFunc:   authFunc,
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return h
}

// SetMessageHandler устанавливает обработчик входящих сообщений
func (h *Hub) SetMessageHandler(handler MessageHandler) { h.onMessage = handler }

// SetConnectHandler устанавливает обработчик нового аутентифицированного клиента
func (h *Hub) SetConnectHandler(handler ConnectHandler) { h.onConnect = handler }

// Run — главный цикл хаба
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.log.Info(logger.Entry{Action: "hub_stopped", Message: "websocket hub stopped"})
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			h.log.Info(logger.Entry{
				Action:     "client_registered",
				Message:    c.ID,
				UserID:     c.UserID,
				Additional: map[string]any{"role": c.Role},
			})
			if h.onConnect != nil {
				h.onConnect(c)
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Info(logger.Entry{Action: "client_unregistered", Message: c.ID, UserID: c.UserID})

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// медленный клиент — отключаем
					close(c.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast отправляет сообщение всем клиентам
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Error(logger.Entry{Action: "broadcast_dropped", Message: "broadcast channel full"})
	}
}

// SendToUser отправляет сообщение во все соединения пользователя
func (h *Hub) SendToUser(userID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.UserID != userID {
			continue
		}
		select {
		case c.send <- message:
		default:
			h.log.Error(logger.Entry{Action: "send_to_user_failed", Message: c.ID, UserID: userID})
		}
	}
}

// IsUserConnected проверяет, есть ли у пользователя открытое соединение
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// SendTypedMessage отправляет {type, data} пользователю
func (h *Hub) SendTypedMessage(userID, msgType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(Envelope{Type: msgType, Data: payload})
	if err != nil {
		return err
	}
	h.SendToUser(userID, msg)
	return nil
}

// ServeWS апгрейдит HTTP запрос и аутентифицирует клиента
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error(logger.Entry{
			Action:  "ws_upgrade_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))

	var authMsg struct {
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&authMsg); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "auth timeout"))
		_ = conn.Close()
		h.log.Warn(logger.Entry{Action: "ws_auth_failed", Message: "no auth message received"})
		return
	}

	userID, role, err := h.authFunc(authMsg.Token)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": "invalid token"})
		_ = conn.Close()
		h.log.Warn(logger.Entry{
			Action:  "ws_auth_invalid_token",
			Message: err.Error(),
		})
		return
	}

	c := &Client{
		ID:     "ws_" + uuid.NewString(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	_ = conn.WriteJSON(map[string]string{"status": "authenticated", "user_id": userID})

	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Error(logger.Entry{
					Action:  "ws_read_error",
					Message: c.ID,
					UserID:  c.UserID,
					Error:   &logger.ErrObj{Msg: err.Error()},
				})
			}
			return
		}

		var msg Envelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.log.Warn(logger.Entry{
				Action:     "ws_parse_message_error",
				Message:    err.Error(),
				UserID:     c.UserID,
				Additional: map[string]any{"client_id": c.ID},
			})
			continue
		}

		if c.hub.onMessage == nil {
			continue
		}
		if err := c.hub.onMessage(c, msg.Type, msg.Data); err != nil {
			c.hub.log.Error(logger.Entry{
				Action:  "ws_handle_message_error",
				Message: err.Error(),
				UserID:  c.UserID,
				Error:   &logger.ErrObj{Msg: err.Error()},
				Additional: map[string]any{
					"client_id": c.ID,
					"msg_type":  msg.Type,
				},
			})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
