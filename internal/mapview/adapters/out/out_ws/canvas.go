package out_ws

import (
	"sync"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/utils"
)

// Типы сообщений отрисовки для браузера
const (
	MsgMount       = "map.mount"
	MsgTiles       = "map.tiles"
	MsgLayerAdd    = "map.layer_add"
	MsgLayerRemove = "map.layer_remove"
	MsgView        = "map.view"
	MsgFitBounds   = "map.fit_bounds"
	MsgOffer       = "map.offer"
	MsgScene       = "map.scene"
	MsgNotify      = "notify"
)

// Sender — часть ws.Hub, нужная адаптерам
type Sender interface {
	SendTypedMessage(userID, msgType string, data any) error
}

// Layer — маркер или линия на карте браузера
type Layer struct {
	ID    out.LayerID       `json:"id"`
	Kind  string            `json:"kind"` // marker | polyline
	Role  domain.Role       `json:"role,omitempty"`
	Color string            `json:"color,omitempty"`
	At    *domain.Point     `json:"at,omitempty"`
	Path  []domain.Point    `json:"path,omitempty"`
	Style *domain.LineStyle `json:"style,omitempty"`
}

// Scene — полное состояние карты; отправляется браузеру при подключении
type Scene struct {
	Container string           `json:"container"`
	View      domain.Viewport  `json:"view"`
	Tiles     domain.TileLayer `json:"tiles"`
	Layers    []Layer          `json:"layers"`
}

type offer struct {
	At   domain.Point  `json:"at"`
	Free []domain.Role `json:"free"`
}

// Canvas транслирует операции отрисовки в WebSocket пользователя
// и помнит сцену, чтобы восстановить ее в новой вкладке
type Canvas struct {
	userID string
	sender Sender
	log    *logger.Logger

	mu      sync.Mutex
	mounted bool
	scene   Scene
	order   []out.LayerID
	layers  map[out.LayerID]Layer
}

var _ out.Canvas = (*Canvas)(nil)

func NewCanvas(userID string, sender Sender, log *logger.Logger) *Canvas {
	return &Canvas{
		userID: userID,
		sender: sender,
		log:    log,
		layers: make(map[out.LayerID]Layer),
	}
}

func (c *Canvas) send(msgType string, data any) {
	if err := c.sender.SendTypedMessage(c.userID, msgType, data); err != nil {
		c.log.Warn(logger.Entry{
			Action:     "canvas_send_failed",
			Message:    err.Error(),
			UserID:     c.userID,
			Additional: map[string]any{"type": msgType},
		})
	}
}

func (c *Canvas) Mount(containerID string, view domain.Viewport, tiles domain.TileLayer) {
	c.mu.Lock()
	c.mounted = true
	c.scene = Scene{Container: containerID, View: view, Tiles: tiles}
	c.order = nil
	c.layers = make(map[out.LayerID]Layer)
	scene := c.snapshotLocked()
	c.mu.Unlock()

	c.send(MsgMount, scene)
}

func (c *Canvas) SetTileLayer(tiles domain.TileLayer) {
	c.mu.Lock()
	c.scene.Tiles = tiles
	c.mu.Unlock()

	c.send(MsgTiles, tiles)
}

func (c *Canvas) AddMarker(role domain.Role, at domain.Point) out.LayerID {
	p := at
	layer := Layer{
		ID:    out.LayerID(utils.NewUUID()),
		Kind:  "marker",
		Role:  role,
		Color: domain.MarkerColor(role),
		At:    &p,
	}
	c.addLayer(layer)
	return layer.ID
}

func (c *Canvas) AddPolyline(path []domain.Point, style domain.LineStyle) out.LayerID {
	st := style
	layer := Layer{
		ID:    out.LayerID(utils.NewUUID()),
		Kind:  "polyline",
		Path:  append([]domain.Point(nil), path...),
		Style: &st,
	}
	c.addLayer(layer)
	return layer.ID
}

func (c *Canvas) addLayer(layer Layer) {
	c.mu.Lock()
	c.layers[layer.ID] = layer
	c.order = append(c.order, layer.ID)
	c.mu.Unlock()

	c.send(MsgLayerAdd, layer)
}

func (c *Canvas) RemoveLayer(id out.LayerID) {
	c.mu.Lock()
	_, ok := c.layers[id]
	if ok {
		delete(c.layers, id)
		for i, lid := range c.order {
			if lid == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()

	if ok {
		c.send(MsgLayerRemove, map[string]any{"id": id})
	}
}

func (c *Canvas) SetView(view domain.Viewport) {
	c.mu.Lock()
	c.scene.View = view
	c.mu.Unlock()

	c.send(MsgView, view)
}

func (c *Canvas) FitBounds(bounds domain.Bounds) {
	c.send(MsgFitBounds, bounds)
}

func (c *Canvas) OfferPoint(at domain.Point, free []domain.Role) {
	c.send(MsgOffer, offer{At: at, Free: free})
}

// Scene возвращает текущую сцену; ok == false, если карта не смонтирована
func (c *Canvas) Scene() (Scene, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(), c.mounted
}

// Replay отправляет сцену целиком (новое подключение браузера)
func (c *Canvas) Replay() {
	scene, ok := c.Scene()
	if !ok {
		return
	}
	c.send(MsgScene, scene)
}

func (c *Canvas) snapshotLocked() Scene {
	s := c.scene
	s.Layers = make([]Layer, 0, len(c.order))
	for _, id := range c.order {
		s.Layers = append(s.Layers, c.layers[id])
	}
	return s
}

// CanvasFactory держит по одному Canvas на пользователя
type CanvasFactory struct {
	sender Sender
	log    *logger.Logger

	mu       sync.Mutex
	canvases map[string]*Canvas
}

var _ out.CanvasFactory = (*CanvasFactory)(nil)

func NewCanvasFactory(sender Sender, log *logger.Logger) *CanvasFactory {
	return &CanvasFactory{
		sender:   sender,
		log:      log,
		canvases: make(map[string]*Canvas),
	}
}

func (f *CanvasFactory) CanvasFor(userID string) out.Canvas {
	return f.canvas(userID)
}

func (f *CanvasFactory) canvas(userID string) *Canvas {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.canvases[userID]
	if !ok {
		c = NewCanvas(userID, f.sender, f.log)
		f.canvases[userID] = c
	}
	return c
}

// Replay повторяет сцену пользователя, если его карта уже существует
func (f *CanvasFactory) Replay(userID string) {
	f.mu.Lock()
	c, ok := f.canvases[userID]
	f.mu.Unlock()
	if ok {
		c.Replay()
	}
}
