package usecase

import (
	"context"
	"fmt"
	"sync"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/shared/logger"
)

// Session — карта одного пользователя со всеми сервисами
type Session struct {
	UserID     string
	State      *MapState
	Bridge     *PersistenceBridge
	Locations  *LocationService
	Routes     *RouteService
	Controller *MapController

	openMu sync.Mutex
	opened bool
}

// SessionDeps — порты, общие для всех сессий
type SessionDeps struct {
	Canvases   out.CanvasFactory
	Stores     out.SnapshotStoreFactory
	Locations  out.LocationRepository
	Routes     out.RouteRepository
	Routing    out.RoutingClient
	Notifier   out.Notifier
	Publisher  out.EventPublisher
	Geolocator out.Geolocator
	Places     out.PlaceSearcher
	Defaults   MapDefaults
}

// SessionRegistry создает и хранит сессии по userID
type SessionRegistry struct {
	deps SessionDeps
	log  *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionRegistry(deps SessionDeps, log *logger.Logger) *SessionRegistry {
	return &SessionRegistry{
		deps:     deps,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// NewSession собирает сессию пользователя без инициализации карты
func NewSession(userID string, deps SessionDeps, log *logger.Logger) *Session {
	state := NewMapState(deps.Canvases.CanvasFor(userID))
	bridge := NewPersistenceBridge(deps.Stores.StoreFor(userID), log)
	locations := NewLocationService(userID, state, deps.Locations, bridge, deps.Geolocator, deps.Notifier, deps.Publisher, log)
	routes := NewRouteService(userID, state, deps.Routes, deps.Routing, bridge, deps.Notifier, deps.Publisher, log)
	controller := NewMapController(userID, state, bridge, locations, routes, deps.Places, deps.Notifier, deps.Defaults, log)

	return &Session{
		UserID:     userID,
		State:      state,
		Bridge:     bridge,
		Locations:  locations,
		Routes:     routes,
		Controller: controller,
	}
}

// Get возвращает сессию пользователя, создавая ее при первом обращении
func (r *SessionRegistry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		s = NewSession(userID, r.deps, r.log)
		r.sessions[userID] = s
	}
	return s
}

// Lookup возвращает сессию, если она уже есть
func (r *SessionRegistry) Lookup(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Open возвращает инициализированную сессию: коллекции загружены,
// карта смонтирована и восстановлена из снапшота
func (r *SessionRegistry) Open(ctx context.Context, userID string) (*Session, error) {
	s := r.Get(userID)
	if err := s.open(ctx, "map"); err != nil {
		return nil, err
	}
	return s, nil
}

// Initialize заново монтирует карту пользователя в контейнер containerID
func (r *SessionRegistry) Initialize(ctx context.Context, userID, containerID string) (*Session, error) {
	s := r.Get(userID)
	s.openMu.Lock()
	defer s.openMu.Unlock()

	if err := s.Init(ctx, containerID); err != nil {
		return nil, err
	}
	s.opened = true
	return s, nil
}

// Close забывает сессию; снапшот остается в хранилище
func (r *SessionRegistry) Close(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

func (s *Session) open(ctx context.Context, containerID string) error {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	if s.opened {
		return nil
	}
	if err := s.Init(ctx, containerID); err != nil {
		return err
	}
	s.opened = true
	return nil
}

// Init загружает коллекции и (пере)монтирует карту. Коллекции грузятся
// первыми, чтобы восстановленный маршрут сразу сверился с сохраненными.
func (s *Session) Init(ctx context.Context, containerID string) error {
	// ошибки загрузки уже отправлены уведомлением; карта работает и без коллекций
	_, _ = s.Locations.LoadAll(ctx)
	_, _ = s.Routes.LoadAll(ctx)

	if _, err := s.Controller.Initialize(ctx, containerID); err != nil {
		return fmt.Errorf("initialize map: %w", err)
	}
	s.Locations.ReconcileCurrent()
	s.Routes.reconcileCurrent()
	return nil
}
