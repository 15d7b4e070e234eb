package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"taxirn/internal/mapview/application/ports/in"
	"taxirn/internal/mapview/application/usecase"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/model"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/storage"
)

const maxBodySize = 1 << 20 // 1MB

// Sessions — реестр карт пользователей
type Sessions interface {
	Open(ctx context.Context, userID string) (*usecase.Session, error)
	Initialize(ctx context.Context, userID, containerID string) (*usecase.Session, error)
}

// HTTPHandler — REST API карты, сохраненных мест и маршрутов
type HTTPHandler struct {
	sessions Sessions
	urls     *storage.PublicURLs
	log      *logger.Logger
}

func NewHTTPHandler(sessions Sessions, urls *storage.PublicURLs, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{sessions: sessions, urls: urls, log: log}
}

// RegisterRoutes регистрирует маршруты; wsHandler может быть nil
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.HandlerFunc) http.HandlerFunc, wsHandler http.HandlerFunc) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /tiles", h.handleTiles)
	if wsHandler != nil {
		// токен приходит первым сообщением по сокету
		mux.HandleFunc("GET /ws", wsHandler)
	}

	mux.HandleFunc("GET /me", authMiddleware(h.handleMe))

	mux.HandleFunc("POST /map/init", authMiddleware(h.handleInit))
	mux.HandleFunc("GET /map/state", authMiddleware(h.handleState))
	mux.HandleFunc("POST /map/points", authMiddleware(h.handleCreatePoint))
	mux.HandleFunc("DELETE /map/points/{role}", authMiddleware(h.handleDeletePoint))
	mux.HandleFunc("POST /map/reset", authMiddleware(h.handleReset))
	mux.HandleFunc("POST /map/locate", authMiddleware(h.handleLocate))
	mux.HandleFunc("GET /map/search", authMiddleware(h.handleSearch))
	mux.HandleFunc("PUT /map/tiles", authMiddleware(h.handleSetTiles))

	mux.HandleFunc("GET /locations", authMiddleware(h.handleListLocations))
	mux.HandleFunc("POST /locations", authMiddleware(h.handleSaveLocation))
	mux.HandleFunc("POST /locations/{id}/select", authMiddleware(h.handleSelectLocation))
	mux.HandleFunc("DELETE /locations/current", authMiddleware(h.handleDeleteLocation))

	mux.HandleFunc("GET /routes", authMiddleware(h.handleListRoutes))
	mux.HandleFunc("POST /routes", authMiddleware(h.handleSaveRoute))
	mux.HandleFunc("POST /routes/{id}/select", authMiddleware(h.handleSelectRoute))
	mux.HandleFunc("DELETE /routes/current", authMiddleware(h.handleDeleteRoute))
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "map"})
}

func (h *HTTPHandler) handleTiles(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"default": domain.DefaultTileLayer,
		"layers":  domain.TileLayers(),
	})
}

// MeResponse — текущий пользователь с публичными ссылками на изображения
type MeResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Fullname   string `json:"fullname"`
	Role       string `json:"role"`
	AvatarURL  string `json:"avatar_url"`
	VehicleURL string `json:"vehicle_url,omitempty"`
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	resp := MeResponse{
		ID:        u.ID,
		Email:     u.Email,
		Fullname:  u.Fullname,
		Role:      u.Role,
		AvatarURL: h.urls.AvatarURL(u.Images.Profile, u.Fullname),
	}
	if u.Role == model.RoleDriver {
		resp.VehicleURL = h.urls.VehicleURL(u.Images.Ground)
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// ============================================================================
// MAP
// ============================================================================

type initRequest struct {
	Container string `json:"container"`
}

func (h *HTTPHandler) handleInit(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var req initRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	s, err := h.sessions.Initialize(r.Context(), u.ID, req.Container)
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s.Controller.View())
}

func (h *HTTPHandler) handleState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, s.Controller.View())
}

func (h *HTTPHandler) handleCreatePoint(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req in.CreatePointInput
	if !h.decode(w, r, &req) {
		return
	}
	req.Persist = true

	view, err := s.Controller.CreatePoint(r.Context(), req)
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) handleDeletePoint(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	view, err := s.Controller.DeletePoint(r.Context(), r.PathValue("role"), true)
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	view, err := s.Controller.Reset(r.Context())
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) handleLocate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	view, err := s.Controller.GetCurrentLocation(r.Context())
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	limit := domain.MaxSearchLimit
	if v := query.Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}

	places, err := s.Controller.SearchPlaces(r.Context(), query.Get("q"), limit)
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"results": places})
}

type setTilesRequest struct {
	Name string `json:"name"`
}

func (h *HTTPHandler) handleSetTiles(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req setTilesRequest
	if !h.decode(w, r, &req) {
		return
	}

	view, err := s.Controller.SetTileLayer(r.Context(), req.Name)
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// ============================================================================
// LOCATIONS / ROUTES
// ============================================================================

func (h *HTTPHandler) handleListLocations(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	list, err := s.Locations.LoadAll(r.Context())
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"locations":     list,
		"current":       s.State.CurrentLocation(),
		"current_in_db": s.Locations.IsCurrentInDB(),
	})
}

func (h *HTTPHandler) handleSaveLocation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req in.SaveInput
	if !h.decode(w, r, &req) {
		return
	}

	saved, err := s.Locations.Save(r.Context(), req)
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, saved)
}

func (h *HTTPHandler) handleSelectLocation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Locations.Select(r.Context(), r.PathValue("id")); err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s.Controller.View())
}

func (h *HTTPHandler) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Locations.Delete(r.Context()); err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s.Controller.View())
}

func (h *HTTPHandler) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	list, err := s.Routes.LoadAll(r.Context())
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"routes":        list,
		"current":       s.State.CurrentRoute(),
		"current_in_db": s.Routes.IsCurrentInDB(),
	})
}

func (h *HTTPHandler) handleSaveRoute(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req in.SaveInput
	if !h.decode(w, r, &req) {
		return
	}

	saved, err := s.Routes.Save(r.Context(), req)
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, saved)
}

func (h *HTTPHandler) handleSelectRoute(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Routes.Select(r.Context(), r.PathValue("id")); err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s.Controller.View())
}

func (h *HTTPHandler) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Routes.Delete(r.Context()); err != nil {
		h.handleUseCaseError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s.Controller.View())
}

// ============================================================================
// helpers
// ============================================================================

// session открывает карту текущего пользователя
func (h *HTTPHandler) session(w http.ResponseWriter, r *http.Request) (*usecase.Session, bool) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	s, err := h.sessions.Open(r.Context(), u.ID)
	if err != nil {
		h.handleUseCaseError(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			h.respondError(w, http.StatusBadRequest, "empty request body")
			return false
		}
		h.log.Warn(logger.Entry{
			Action:    "parse_request_failed",
			Message:   err.Error(),
			RequestID: requestIDFromContext(r.Context()),
		})
		h.respondError(w, http.StatusBadRequest, "invalid request format")
		return false
	}
	return true
}

// decodeOptional — как decode, но пустое тело допустимо
func (h *HTTPHandler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "invalid request format")
		return false
	}
	return true
}

// handleUseCaseError — ошибки use case в HTTP статусы
func (h *HTTPHandler) handleUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadySaved):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotSaved):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMapNotReady):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrParse):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrRouteNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		h.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrServiceError):
		h.respondError(w, http.StatusBadGateway, "upstream service error")
	default:
		u, _ := UserFromContext(r.Context())
		entry := logger.Entry{
			Action:    "map_usecase_error",
			Message:   err.Error(),
			RequestID: requestIDFromContext(r.Context()),
			Error:     &logger.ErrObj{Msg: err.Error()},
		}
		if u != nil {
			entry.UserID = u.ID
		}
		h.log.Error(entry)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error(logger.Entry{
			Action:  "encode_response_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, status int, message string) {
	respondError(w, status, message)
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
