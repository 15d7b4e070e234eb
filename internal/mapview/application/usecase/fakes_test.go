package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"taxirn/internal/mapview/application/ports/in"
	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"

	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ---------------------------------------------------------------------------
// canvas
// ---------------------------------------------------------------------------

type marker struct {
	role domain.Role
	at   domain.Point
}

type fakeCanvas struct {
	mu      sync.Mutex
	seq     int
	mounted int
	markers map[out.LayerID]marker
	lines   map[out.LayerID][]domain.Point
	views   []domain.Viewport
	fits    []domain.Bounds
	offers  [][]domain.Role
	tiles   string
	ops     int
}

func newFakeCanvas() *fakeCanvas {
	return &fakeCanvas{
		markers: map[out.LayerID]marker{},
		lines:   map[out.LayerID][]domain.Point{},
	}
}

func (c *fakeCanvas) nextID(prefix string) out.LayerID {
	c.seq++
	return out.LayerID(fmt.Sprintf("%s-%d", prefix, c.seq))
}

func (c *fakeCanvas) Mount(_ string, view domain.Viewport, tiles domain.TileLayer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted++
	c.views = append(c.views, view)
	c.tiles = tiles.Name
}

func (c *fakeCanvas) SetTileLayer(tiles domain.TileLayer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops++
	c.tiles = tiles.Name
}

func (c *fakeCanvas) AddMarker(role domain.Role, at domain.Point) out.LayerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops++
	id := c.nextID("marker")
	c.markers[id] = marker{role: role, at: at}
	return id
}

func (c *fakeCanvas) AddPolyline(path []domain.Point, _ domain.LineStyle) out.LayerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops++
	id := c.nextID("line")
	c.lines[id] = append([]domain.Point(nil), path...)
	return id
}

func (c *fakeCanvas) RemoveLayer(id out.LayerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops++
	delete(c.markers, id)
	delete(c.lines, id)
}

func (c *fakeCanvas) SetView(view domain.Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops++
	c.views = append(c.views, view)
}

func (c *fakeCanvas) FitBounds(b domain.Bounds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops++
	c.fits = append(c.fits, b)
}

func (c *fakeCanvas) OfferPoint(_ domain.Point, free []domain.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offers = append(c.offers, free)
}

func (c *fakeCanvas) markersFor(role domain.Role) []domain.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	var pts []domain.Point
	for _, m := range c.markers {
		if m.role == role {
			pts = append(pts, m.at)
		}
	}
	return pts
}

func (c *fakeCanvas) attachedLines() [][]domain.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	var lines [][]domain.Point
	for _, l := range c.lines {
		lines = append(lines, l)
	}
	return lines
}

func (c *fakeCanvas) opCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ops
}

type canvasFactory struct{ canvas *fakeCanvas }

func (f canvasFactory) CanvasFor(string) out.Canvas { return f.canvas }

// ---------------------------------------------------------------------------
// key-value store
// ---------------------------------------------------------------------------

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

type storeFactory struct{ store *memStore }

func (f storeFactory) StoreFor(string) out.KeyValueStore { return f.store }

// ---------------------------------------------------------------------------
// repositories
// ---------------------------------------------------------------------------

type fakeLocationRepo struct {
	mu      sync.Mutex
	rows    []out.LocationRow
	inserts []out.NewLocationRow
	deletes []string
	listErr error
	seq     int
}

func (r *fakeLocationRepo) ListByUser(_ context.Context, userID string) ([]out.LocationRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var rows []out.LocationRow
	for _, row := range r.rows {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (r *fakeLocationRepo) Insert(_ context.Context, row out.NewLocationRow) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("00000000-0000-0000-0000-%012d", r.seq)
	r.inserts = append(r.inserts, row)
	desc := row.Description
	r.rows = append(r.rows, out.LocationRow{
		ID:          id,
		UserID:      row.UserID,
		Name:        row.Name,
		Description: &desc,
		Coordinates: storedGeometry(row.Coordinates),
		CreatedAt:   time.Now(),
	})
	return id, nil
}

func (r *fakeLocationRepo) Delete(_ context.Context, _ string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, id)
	for i, row := range r.rows {
		if row.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			break
		}
	}
	return nil
}

type fakeRouteRepo struct {
	mu      sync.Mutex
	rows    []out.RouteRow
	inserts []out.NewRouteRow
	deletes []string
	seq     int
}

func (r *fakeRouteRepo) ListByUser(_ context.Context, userID string) ([]out.RouteRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []out.RouteRow
	for _, row := range r.rows {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (r *fakeRouteRepo) Insert(_ context.Context, row out.NewRouteRow) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("10000000-0000-0000-0000-%012d", r.seq)
	r.inserts = append(r.inserts, row)
	var path *string
	if row.Path != nil {
		p := storedGeometry(*row.Path)
		path = &p
	}
	r.rows = append(r.rows, out.RouteRow{
		ID:         id,
		UserID:     row.UserID,
		Name:       row.Name,
		StartPoint: storedGeometry(row.StartPoint),
		EndPoint:   storedGeometry(row.EndPoint),
		Path:       path,
		CreatedAt:  time.Now(),
	})
	return id, nil
}

func (r *fakeRouteRepo) Delete(_ context.Context, _ string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, id)
	return nil
}

// ---------------------------------------------------------------------------
// routing, notifier, geolocator, places
// ---------------------------------------------------------------------------

type fakeRouting struct {
	mu    sync.Mutex
	calls int
	fetch func(call int, start, end domain.Point) (*domain.RouteGeometry, error)
}

func (r *fakeRouting) FetchRoute(_ context.Context, start, end domain.Point) (*domain.RouteGeometry, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	fetch := r.fetch
	r.mu.Unlock()
	if fetch == nil {
		return straightRoute(start, end), nil
	}
	return fetch(call, start, end)
}

func (r *fakeRouting) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func straightRoute(start, end domain.Point) *domain.RouteGeometry {
	mid := domain.Point{Lat: (start.Lat + end.Lat) / 2, Lng: (start.Lng + end.Lng) / 2}
	return &domain.RouteGeometry{Path: []domain.Point{start, mid, end}, Distance: 1000, Duration: 120}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, _ string, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return nil
}

func (n *fakeNotifier) last() domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return domain.Notification{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *fakeNotifier) has(msg string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.sent {
		if s.Message == msg {
			return true
		}
	}
	return false
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.MapEvent
}

func (p *fakePublisher) PublishMapEvent(_ context.Context, e domain.MapEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type fakeGeo struct {
	perm out.Permission
	at   domain.Point
	err  error
}

func (g *fakeGeo) CheckPermission(context.Context) (out.Permission, error) { return g.perm, nil }

func (g *fakeGeo) RequestPermission(context.Context) (out.Permission, error) { return g.perm, nil }

func (g *fakeGeo) CurrentPosition(context.Context) (domain.Point, error) {
	if g.perm != out.PermissionGranted {
		return domain.Point{}, domain.ErrPermissionDenied
	}
	return g.at, g.err
}

type fakePlaces struct {
	places []domain.Place
	err    error
	limit  int
}

func (p *fakePlaces) Search(_ context.Context, _ string, limit int) ([]domain.Place, error) {
	p.limit = limit
	return p.places, p.err
}

var errBackend = errors.New("backend down")

// ---------------------------------------------------------------------------
// fixture
// ---------------------------------------------------------------------------

const testUser = "user-1"

type fixture struct {
	canvas    *fakeCanvas
	store     *memStore
	locRepo   *fakeLocationRepo
	routeRepo *fakeRouteRepo
	routing   *fakeRouting
	notifier  *fakeNotifier
	publisher *fakePublisher
	geo       *fakeGeo
	places    *fakePlaces
	session   *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		canvas:    newFakeCanvas(),
		store:     newMemStore(),
		locRepo:   &fakeLocationRepo{},
		routeRepo: &fakeRouteRepo{},
		routing:   &fakeRouting{},
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		geo:       &fakeGeo{perm: out.PermissionGranted, at: domain.Point{Lat: 10.2, Lng: -71.3}},
		places:    &fakePlaces{},
	}
	return f
}

func (f *fixture) deps() SessionDeps {
	return SessionDeps{
		Canvases:   canvasFactory{f.canvas},
		Stores:     storeFactory{f.store},
		Locations:  f.locRepo,
		Routes:     f.routeRepo,
		Routing:    f.routing,
		Notifier:   f.notifier,
		Publisher:  f.publisher,
		Geolocator: f.geo,
		Places:     f.places,
		Defaults:   DefaultMapDefaults(),
	}
}

// open собирает и инициализирует сессию пользователя
func (f *fixture) open(t *testing.T) *Session {
	t.Helper()
	reg := NewSessionRegistry(f.deps(), logger.Discard())
	s, err := reg.Open(context.Background(), testUser)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	f.session = s
	return s
}

// storedGeometry — WKT со вставки в том виде, в каком его вернут
// get_locations / get_routes: ST_GeomFromText, затем hex EWKB
func storedGeometry(raw string) string {
	g, err := wkt.Unmarshal(raw)
	if err != nil {
		return raw
	}
	return ewkb.MustMarshalToHex(g, 4326)
}

func pointGeoJSON(p domain.Point) string {
	return fmt.Sprintf(`{"type":"Point","coordinates":[%v,%v]}`, p.Lng, p.Lat)
}

func inPoint(role domain.Role, p domain.Point) in.CreatePointInput {
	return in.CreatePointInput{Role: string(role), Lat: p.Lat, Lng: p.Lng, Persist: true}
}

func createPoint(t *testing.T, s *Session, role domain.Role, p domain.Point) {
	t.Helper()
	_, err := s.Controller.CreatePoint(context.Background(), inPoint(role, p))
	if err != nil {
		t.Fatalf("CreatePoint(%s, %v): %v", role, p, err)
	}
}
