package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"taxirn/internal/mapview/adapters/out/kv"
	"taxirn/internal/mapview/adapters/out/out_ws"
	"taxirn/internal/mapview/application/ports/in"
	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/application/usecase"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/model"
	"taxirn/internal/shared/auth"
	"taxirn/internal/shared/config"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/storage"
	"taxirn/internal/shared/user"
)

type nopSender struct{}

func (nopSender) SendTypedMessage(string, string, any) error { return nil }

type fakeUsers struct {
	users map[string]*model.User
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

type memLocations struct {
	mu   sync.Mutex
	rows []out.LocationRow
}

func (m *memLocations) ListByUser(_ context.Context, userID string) ([]out.LocationRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []out.LocationRow
	for _, r := range m.rows {
		if r.UserID == userID {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memLocations) Insert(_ context.Context, row out.NewLocationRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "loc-" + string(rune('a'+len(m.rows)))
	m.rows = append(m.rows, out.LocationRow{ID: id, UserID: row.UserID, Name: row.Name, Coordinates: row.Coordinates})
	return id, nil
}

func (m *memLocations) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ID == id && r.UserID == userID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type memRoutes struct {
	mu   sync.Mutex
	rows []out.RouteRow
}

func (m *memRoutes) ListByUser(_ context.Context, userID string) ([]out.RouteRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []out.RouteRow
	for _, r := range m.rows {
		if r.UserID == userID {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memRoutes) Insert(_ context.Context, row out.NewRouteRow) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "route-" + string(rune('a'+len(m.rows)))
	m.rows = append(m.rows, out.RouteRow{
		ID:         id,
		UserID:     row.UserID,
		Name:       row.Name,
		StartPoint: row.StartPoint,
		EndPoint:   row.EndPoint,
		Path:       row.Path,
	})
	return id, nil
}

func (m *memRoutes) Delete(context.Context, string, string) error { return nil }

type straightRouting struct{}

func (straightRouting) FetchRoute(_ context.Context, start, end domain.Point) (*domain.RouteGeometry, error) {
	return &domain.RouteGeometry{Path: []domain.Point{start, end}, Distance: 1000, Duration: 60}, nil
}

type testServer struct {
	srv    *httptest.Server
	tokens *auth.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Discard()

	files, err := kv.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	registry := usecase.NewSessionRegistry(usecase.SessionDeps{
		Canvases:  out_ws.NewCanvasFactory(nopSender{}, log),
		Stores:    files,
		Locations: &memLocations{},
		Routes:    &memRoutes{},
		Routing:   straightRouting{},
		Defaults:  usecase.DefaultMapDefaults(),
	}, log)

	users := &fakeUsers{users: map[string]*model.User{
		"u1": {ID: "u1", Email: "ana@example.com", Fullname: "Ana Perez", Role: model.RoleDriver, Status: model.UserStatusActive},
		"u2": {ID: "u2", Email: "off@example.com", Role: model.RoleUser, Status: model.UserStatusBanned},
	}}
	tokens := auth.NewJWTService(config.JWTConfig{Secret: "test-secret", ExpiryMinutes: 5})

	mux := http.NewServeMux()
	h := NewHTTPHandler(registry, storage.NewPublicURLs("http://files.local"), log)
	h.RegisterRoutes(mux, AuthMiddleware(tokens, users, log), nil)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, tokens: tokens}
}

func (s *testServer) do(t *testing.T, userID, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if userID != "" {
		token, err := s.tokens.GenerateToken(userID, userID+"@example.com", model.RoleUser)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, "", http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}
}

func TestAuthMiddlewareRejects(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
		userID string
		want   int
	}{
		{"missing header", "", "", http.StatusUnauthorized},
		{"bad scheme", "Token abc", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
		{"unknown user", "", "ghost", http.StatusUnauthorized},
		{"banned user", "", "u2", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.userID != "" {
				resp, _ := s.do(t, tt.userID, http.MethodGet, "/map/state", nil)
				if resp.StatusCode != tt.want {
					t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
				}
				return
			}
			req, _ := http.NewRequest(http.MethodGet, s.srv.URL+"/map/state", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("do: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Error("request id header missing")
			}
		})
	}
}

func TestMeReturnsPublicImageURLs(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, "u1", http.MethodGet, "/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body["avatar_url"].(string), "text=AP") {
		t.Errorf("avatar_url = %v", body["avatar_url"])
	}
	if body["vehicle_url"] == nil {
		t.Error("driver must get vehicle_url")
	}
}

func TestRouteFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, "u1", http.MethodPost, "/map/init", map[string]string{"container": "map"})
	if resp.StatusCode != http.StatusOK || body["phase"] != string(domain.PhaseEmpty) {
		t.Fatalf("init: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, "u1", http.MethodPost, "/map/points", in.CreatePointInput{Role: "start", Lat: 10.0, Lng: -71.0})
	if resp.StatusCode != http.StatusOK || body["phase"] != string(domain.PhaseLocationOnly) {
		t.Fatalf("start: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, "u1", http.MethodPost, "/map/points", in.CreatePointInput{Role: "end", Lat: 10.1, Lng: -71.1})
	if resp.StatusCode != http.StatusOK || body["phase"] != string(domain.PhaseRouteReady) {
		t.Fatalf("end: %d %v", resp.StatusCode, body)
	}
	if path, _ := body["path"].([]any); len(path) != 2 {
		t.Errorf("path = %v", body["path"])
	}

	resp, body = s.do(t, "u1", http.MethodPost, "/routes", in.SaveInput{Name: "Casa - Trabajo"})
	if resp.StatusCode != http.StatusCreated || body["id"] != "route-a" {
		t.Fatalf("save route: %d %v", resp.StatusCode, body)
	}

	resp, _ = s.do(t, "u1", http.MethodPost, "/routes", in.SaveInput{Name: "again"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate save status = %d, want 409", resp.StatusCode)
	}

	resp, body = s.do(t, "u1", http.MethodDelete, "/map/points/end", nil)
	if resp.StatusCode != http.StatusOK || body["phase"] != string(domain.PhaseLocationOnly) {
		t.Fatalf("delete end: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, "u1", http.MethodPost, "/map/reset", nil)
	if resp.StatusCode != http.StatusOK || body["startPos"] != nil {
		t.Fatalf("reset: %d %v", resp.StatusCode, body)
	}
}

func TestLocationEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, "u1", http.MethodPost, "/map/points", in.CreatePointInput{Role: "start", Lat: 10.0, Lng: -71.0})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d", resp.StatusCode)
	}

	// несохраненную точку удалить нельзя
	resp, _ = s.do(t, "u1", http.MethodDelete, "/locations/current", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("delete synthetic status = %d, want 409", resp.StatusCode)
	}

	resp, _ = s.do(t, "u1", http.MethodPost, "/locations", in.SaveInput{Name: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty name status = %d, want 400", resp.StatusCode)
	}

	resp, body := s.do(t, "u1", http.MethodPost, "/locations", in.SaveInput{Name: "Casa"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("save: %d %v", resp.StatusCode, body)
	}
	id, _ := body["id"].(string)

	resp, body = s.do(t, "u1", http.MethodGet, "/locations", nil)
	if resp.StatusCode != http.StatusOK || body["current_in_db"] != true {
		t.Fatalf("list: %d %v", resp.StatusCode, body)
	}
	if list, _ := body["locations"].([]any); len(list) != 1 {
		t.Errorf("locations = %v", body["locations"])
	}

	resp, _ = s.do(t, "u1", http.MethodPost, "/locations/"+id+"/select", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("select status = %d", resp.StatusCode)
	}
	resp, _ = s.do(t, "u1", http.MethodPost, "/locations/missing/select", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("select missing status = %d, want 404", resp.StatusCode)
	}

	resp, body = s.do(t, "u1", http.MethodDelete, "/locations/current", nil)
	if resp.StatusCode != http.StatusOK || body["startPos"] != nil {
		t.Fatalf("delete: %d %v", resp.StatusCode, body)
	}
}

func TestValidationAndUpstreamErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad role", http.MethodPost, "/map/points", in.CreatePointInput{Role: "middle", Lat: 1, Lng: 1}, http.StatusBadRequest},
		{"bad coordinates", http.MethodPost, "/map/points", in.CreatePointInput{Role: "start", Lat: 91, Lng: 1}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/map/points", map[string]any{"role": "start", "x": 1}, http.StatusBadRequest},
		{"empty search", http.MethodGet, "/map/search?q=", nil, http.StatusBadRequest},
		{"no geolocator", http.MethodPost, "/map/locate", nil, http.StatusBadGateway},
		{"unknown tiles", http.MethodPut, "/map/tiles", map[string]string{"name": "nope"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, "u1", tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d (%v)", resp.StatusCode, tt.want, body)
			}
			if body["error"] == nil {
				t.Error("error message missing")
			}
		})
	}
}

func TestTilesCatalog(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, "", http.MethodGet, "/tiles", nil)
	if resp.StatusCode != http.StatusOK || body["default"] != domain.DefaultTileLayer {
		t.Fatalf("tiles: %d %v", resp.StatusCode, body)
	}
}
