package usecase

import (
	"sync"

	"taxirn/internal/mapview/application/ports/in"
	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
)

// MapState — состояние карты одной сессии: маркеры по ролям, точки маршрута,
// линия маршрута и текущие выбранные записи.
//
// Все методы атомарны относительно mu. Сетевые вызовы под mu не делаются:
// сервисы захватывают нужные значения, отпускают lock и затем применяют
// результат через методы с проверкой актуальности (ApplyRoute, AbandonRoute).
type MapState struct {
	mu     sync.Mutex
	canvas out.Canvas

	mounted     bool
	containerID string
	view        domain.Viewport
	tiles       domain.TileLayer

	start   *domain.Point
	end     *domain.Point
	markers map[domain.Role]out.LayerID

	line     out.LayerID
	linePath []domain.Point

	currentLocation *domain.SavedLocation
	currentRoute    *domain.SavedRoute
}

func NewMapState(canvas out.Canvas) *MapState {
	return &MapState{
		canvas:  canvas,
		markers: make(map[domain.Role]out.LayerID, len(domain.Roles)),
	}
}

// Mount создает карту. Повторный Mount сбрасывает слои и состояние,
// как перезагрузка страницы.
func (m *MapState) Mount(containerID string, view domain.Viewport, tiles domain.TileLayer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mounted {
		m.clearLocked()
	}
	m.containerID = containerID
	m.view = view
	m.tiles = tiles
	m.mounted = true
	m.canvas.Mount(containerID, view, tiles)
}

func (m *MapState) IsMounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// ---------------------------------------------------------------------------
// Точки маршрута
// ---------------------------------------------------------------------------

// SetEndpoint ставит маркер роли в точку p, удаляя предыдущий маркер этой роли.
// Без смонтированной карты ничего не делает.
func (m *MapState) SetEndpoint(role domain.Role, p domain.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.mounted {
		return
	}
	m.setEndpointLocked(role, p)

	// линия и текущий маршрут относились к старой паре точек
	m.detachLineLocked()
	if m.currentRoute != nil && !m.routeMatchesLocked(m.currentRoute) {
		m.currentRoute = nil
	}
}

// ClearEndpoint убирает маркер и точку роли, линию и обе текущие записи
func (m *MapState) ClearEndpoint(role domain.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearEndpointLocked(role)
	m.detachLineLocked()
	m.currentLocation = nil
	m.currentRoute = nil
}

// ClearRoute убирает обе точки, линию и текущие записи
func (m *MapState) ClearRoute() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked()
}

// Reset возвращает карту к пустому состоянию и viewport по умолчанию
func (m *MapState) Reset(view domain.Viewport) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked()
	m.view = view
	if m.mounted {
		m.canvas.SetView(view)
	}
}

func (m *MapState) setEndpointLocked(role domain.Role, p domain.Point) {
	if id, ok := m.markers[role]; ok {
		m.canvas.RemoveLayer(id)
		delete(m.markers, role)
	}
	m.markers[role] = m.canvas.AddMarker(role, p)

	pos := p
	if role == domain.RoleEnd {
		m.end = &pos
	} else {
		m.start = &pos
	}
}

func (m *MapState) clearEndpointLocked(role domain.Role) {
	if id, ok := m.markers[role]; ok {
		m.canvas.RemoveLayer(id)
		delete(m.markers, role)
	}
	if role == domain.RoleEnd {
		m.end = nil
	} else {
		m.start = nil
	}
}

func (m *MapState) clearLocked() {
	for _, r := range domain.Roles {
		m.clearEndpointLocked(r)
	}
	m.detachLineLocked()
	m.currentLocation = nil
	m.currentRoute = nil
}

// ---------------------------------------------------------------------------
// Предикаты
// ---------------------------------------------------------------------------

func (m *MapState) HasStart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start != nil
}

func (m *MapState) HasEnd() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.end != nil
}

// HasRoute — заданы обе точки
func (m *MapState) HasRoute() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start != nil && m.end != nil
}

// HasLocationOnly — задана только стартовая точка
func (m *MapState) HasLocationOnly() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start != nil && m.end == nil
}

// HasLine — линия маршрута отрисована
func (m *MapState) HasLine() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.line != ""
}

func (m *MapState) Phase() domain.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phaseLocked()
}

func (m *MapState) phaseLocked() domain.Phase {
	switch {
	case m.start != nil && m.end != nil && m.line != "":
		return domain.PhaseRouteReady
	case m.start != nil && m.end != nil:
		return domain.PhaseRoutePending
	case m.start != nil:
		return domain.PhaseLocationOnly
	}
	// только конечная точка без старта — маршрута нет, как и в пустом состоянии
	return domain.PhaseEmpty
}

// Start возвращает копию стартовой точки
func (m *MapState) Start() *domain.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePoint(m.start)
}

// Endpoints возвращает копии обеих точек
func (m *MapState) Endpoints() (start, end *domain.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePoint(m.start), clonePoint(m.end)
}

// LinePath возвращает вершины текущей линии (lat, lng)
func (m *MapState) LinePath() []domain.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.line == "" {
		return nil
	}
	return append([]domain.Point(nil), m.linePath...)
}

// ---------------------------------------------------------------------------
// Линия маршрута
// ---------------------------------------------------------------------------

// BeginRecompute снимает текущую линию и возвращает захваченные точки.
// ok == false, если одной из точек нет.
func (m *MapState) BeginRecompute() (start, end domain.Point, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.start == nil || m.end == nil {
		return domain.Point{}, domain.Point{}, false
	}
	m.detachLineLocked()
	return *m.start, *m.end, true
}

// ApplyRoute рисует линию и ставит текущий маршрут, только если точки не
// изменились с момента BeginRecompute. Возвращает false для устаревшего результата.
func (m *MapState) ApplyRoute(start, end domain.Point, path []domain.Point, current *domain.SavedRoute) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sameEndpointsLocked(start, end) {
		return false
	}
	m.attachLineLocked(path)
	m.fitEndpointsLocked()
	m.currentRoute = current
	return true
}

// AbandonRoute — пересчет не удался: без линии и без текущего маршрута.
// Возвращает false, если точки уже сменились.
func (m *MapState) AbandonRoute(start, end domain.Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sameEndpointsLocked(start, end) {
		return false
	}
	m.detachLineLocked()
	m.currentRoute = nil
	return true
}

func (m *MapState) sameEndpointsLocked(start, end domain.Point) bool {
	return m.start != nil && m.end != nil && m.start.Equal(start) && m.end.Equal(end)
}

// attachLineLocked рисует только на смонтированной карте
func (m *MapState) attachLineLocked(path []domain.Point) {
	m.detachLineLocked()
	if !m.mounted || len(path) == 0 {
		return
	}
	m.linePath = append([]domain.Point(nil), path...)
	m.line = m.canvas.AddPolyline(m.linePath, domain.RouteLineStyle)
}

func (m *MapState) detachLineLocked() {
	if m.line != "" {
		m.canvas.RemoveLayer(m.line)
	}
	m.line = ""
	m.linePath = nil
}

// ---------------------------------------------------------------------------
// Viewport
// ---------------------------------------------------------------------------

// FitEndpoints вписывает обе точки с отступом FitBoundsPad
func (m *MapState) FitEndpoints() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fitEndpointsLocked()
}

func (m *MapState) fitEndpointsLocked() {
	if !m.mounted || m.start == nil || m.end == nil {
		return
	}
	b := domain.BoundsOf(*m.start, *m.end).Pad(domain.FitBoundsPad)
	m.view = domain.Viewport{
		Center: domain.Point{
			Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
			Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
		},
		Zoom: m.view.Zoom,
	}
	m.canvas.FitBounds(b)
}

// Focus центрирует карту на точке
func (m *MapState) Focus(p domain.Point, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return
	}
	m.view = domain.Viewport{Center: p, Zoom: zoom}
	m.canvas.SetView(m.view)
}

// SetTileLayer переключает слой тайлов
func (m *MapState) SetTileLayer(tiles domain.TileLayer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles = tiles
	if m.mounted {
		m.canvas.SetTileLayer(tiles)
	}
}

// OfferFreeRoles показывает popup с ролями, которые еще не заняты.
// Возвращает false, если обе роли заняты.
func (m *MapState) OfferFreeRoles(at domain.Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.mounted {
		return false
	}
	var free []domain.Role
	if m.start == nil {
		free = append(free, domain.RoleStart)
	}
	if m.end == nil {
		free = append(free, domain.RoleEnd)
	}
	if len(free) == 0 {
		return false
	}
	m.canvas.OfferPoint(at, free)
	return true
}

// ---------------------------------------------------------------------------
// Текущие записи
// ---------------------------------------------------------------------------

func (m *MapState) CurrentLocation() *domain.SavedLocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocation
}

func (m *MapState) CurrentRoute() *domain.SavedRoute {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentRoute
}

// UpdateCurrentLocation вычисляет новое текущее место по стартовой точке.
// fn выполняется под lock и не должен обращаться к MapState.
func (m *MapState) UpdateCurrentLocation(fn func(start *domain.Point, current *domain.SavedLocation) *domain.SavedLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentLocation = fn(clonePoint(m.start), m.currentLocation)
}

// UpdateCurrentRoute — то же для маршрута; fn получает обе точки
func (m *MapState) UpdateCurrentRoute(fn func(start, end *domain.Point, current *domain.SavedRoute) *domain.SavedRoute) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentRoute = fn(clonePoint(m.start), clonePoint(m.end), m.currentRoute)
}

// SelectLocation — режим одной точки: end убирается, start переносится
// в координаты записи, карта центрируется на FocusZoom
func (m *MapState) SelectLocation(loc *domain.SavedLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearEndpointLocked(domain.RoleEnd)
	m.detachLineLocked()
	m.currentRoute = nil
	if m.mounted {
		m.setEndpointLocked(domain.RoleStart, loc.Coordinates)
		m.view = domain.Viewport{Center: loc.Coordinates, Zoom: domain.FocusZoom}
		m.canvas.SetView(m.view)
	} else {
		p := loc.Coordinates
		m.start = &p
	}
	m.currentLocation = loc
}

// SelectRoute ставит обе точки маршрута и рисует сохраненный путь.
// Возвращает true, если пути нет и линию нужно пересчитать.
func (m *MapState) SelectRoute(route *domain.SavedRoute) (needsRecompute bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked()
	if m.mounted {
		m.setEndpointLocked(domain.RoleStart, route.StartPoint)
		m.setEndpointLocked(domain.RoleEnd, route.EndPoint)
	} else {
		s, e := route.StartPoint, route.EndPoint
		m.start, m.end = &s, &e
	}
	m.currentRoute = route

	if len(route.Path) < 2 {
		return true
	}
	m.attachLineLocked(route.Path)
	m.fitEndpointsLocked()
	return false
}

// RestoreSelections восстанавливает текущие записи из снапшота,
// если они соответствуют восстановленным точкам
func (m *MapState) RestoreSelections(loc *domain.SavedLocation, route *domain.SavedRoute) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if loc != nil && m.start != nil && loc.Coordinates.Equal(*m.start) {
		if m.currentLocation == nil || m.currentLocation.IsSynthetic() {
			m.currentLocation = loc
		}
	}
	if route != nil && m.routeMatchesLocked(route) {
		if m.currentRoute == nil || m.currentRoute.IsSynthetic() {
			m.currentRoute = route
		}
	}
}

func (m *MapState) routeMatchesLocked(r *domain.SavedRoute) bool {
	return m.start != nil && m.end != nil && r.Matches(*m.start, *m.end)
}

// ---------------------------------------------------------------------------
// Снапшоты
// ---------------------------------------------------------------------------

// Snapshot — данные для PersistenceBridge
func (m *MapState) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Snapshot{
		StartPos:        clonePoint(m.start),
		EndPos:          clonePoint(m.end),
		CurrentLocation: m.currentLocation,
		CurrentRoute:    m.currentRoute,
	}
}

// View — состояние для HTTP/WS ответов
func (m *MapState) View() *in.MapView {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := &in.MapView{
		Phase:           m.phaseLocked(),
		StartPos:        clonePoint(m.start),
		EndPos:          clonePoint(m.end),
		CurrentLocation: m.currentLocation,
		CurrentRoute:    m.currentRoute,
		Viewport:        m.view,
		TileLayer:       m.tiles.Name,
	}
	if m.line != "" {
		v.Path = append([]domain.Point(nil), m.linePath...)
	}
	return v
}

func clonePoint(p *domain.Point) *domain.Point {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
