package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"taxirn/internal/mapview/application/ports/in"
	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/model"
	"taxirn/internal/shared/logger"
)

// ============================================================================
// ROUTE SERVICE
// ============================================================================
//
// Линия маршрута всегда производная от (start, end):
//
//   BeginRecompute ──► снять старую линию, захватить точки
//        │
//        ▼
//   FetchRoute (без lock)
//        │
//        ▼
//   ApplyRoute(start, end, ...) ──► точки те же?  да: линия + fitBounds + current
//                                                  нет: результат устарел, отбрасываем
//
// ============================================================================

// RouteService — сохраненные маршруты и пересчет линии
type RouteService struct {
	userChannel

	state   *MapState
	repo    out.RouteRepository
	routing out.RoutingClient
	bridge  *PersistenceBridge

	mu     sync.RWMutex
	routes []domain.SavedRoute
}

var _ in.RouteUseCase = (*RouteService)(nil)

func NewRouteService(
	userID string,
	state *MapState,
	repo out.RouteRepository,
	routing out.RoutingClient,
	bridge *PersistenceBridge,
	notifier out.Notifier,
	publisher out.EventPublisher,
	log *logger.Logger,
) *RouteService {
	return &RouteService{
		userChannel: userChannel{userID: userID, notifier: notifier, publisher: publisher, log: log},
		state:       state,
		repo:        repo,
		routing:     routing,
		bridge:      bridge,
	}
}

// LoadAll загружает маршруты пользователя. Строка без корректных start/end
// отбрасывается; некорректный path отбрасывается отдельно, маршрут остается
// и линия для него будет пересчитана.
func (s *RouteService) LoadAll(ctx context.Context) ([]domain.SavedRoute, error) {
	rows, err := s.repo.ListByUser(ctx, s.userID)
	if err != nil {
		s.log.Error(logger.Entry{
			Action:  "load_routes_failed",
			Message: err.Error(),
			UserID:  s.userID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		s.notify(ctx, domain.Negative(domain.MsgRouteLoadFailed))
		return nil, fmt.Errorf("load routes: %w: %w", domain.ErrServiceError, err)
	}

	list := make([]domain.SavedRoute, 0, len(rows))
	for _, row := range rows {
		r, err := s.decodeRouteRow(row)
		if err != nil {
			s.log.Warn(logger.Entry{
				Action:     "route_row_dropped",
				Message:    err.Error(),
				UserID:     s.userID,
				Additional: map[string]any{"route_id": row.ID},
			})
			continue
		}
		list = append(list, r)
	}

	s.mu.Lock()
	s.routes = list
	s.mu.Unlock()

	s.reconcileCurrent()

	s.log.Debug(logger.Entry{
		Action:     "routes_loaded",
		UserID:     s.userID,
		Additional: map[string]any{"rows": len(rows), "loaded": len(list)},
	})
	return s.List(), nil
}

func (s *RouteService) decodeRouteRow(row out.RouteRow) (domain.SavedRoute, error) {
	start, err := domain.DecodePoint(row.StartPoint)
	if err != nil {
		return domain.SavedRoute{}, fmt.Errorf("route %s start_point: %w", row.ID, err)
	}
	end, err := domain.DecodePoint(row.EndPoint)
	if err != nil {
		return domain.SavedRoute{}, fmt.Errorf("route %s end_point: %w", row.ID, err)
	}

	r := domain.SavedRoute{
		ID:         row.ID,
		UserID:     row.UserID,
		Name:       row.Name,
		StartPoint: start,
		EndPoint:   end,
		CreatedAt:  row.CreatedAt,
	}
	if row.Description != nil {
		r.Description = *row.Description
	}
	if row.Distance != nil {
		r.Distance = *row.Distance
	}
	if row.Duration != nil {
		r.Duration = *row.Duration
	}
	if row.Path != nil && strings.TrimSpace(*row.Path) != "" {
		path, err := domain.DecodePath(*row.Path)
		if err != nil {
			s.log.Warn(logger.Entry{
				Action:     "route_path_dropped",
				Message:    err.Error(),
				UserID:     s.userID,
				Additional: map[string]any{"route_id": row.ID},
			})
		} else {
			r.Path = path
		}
	}
	return r, nil
}

// List возвращает копию загруженной коллекции
func (s *RouteService) List() []domain.SavedRoute {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SavedRoute(nil), s.routes...)
}

// reconcileCurrent — сохраненный маршрут с теми же точками становится текущим;
// текущий, которого больше нет в коллекции, становится синтетическим
func (s *RouteService) reconcileCurrent() {
	list := s.List()
	s.state.UpdateCurrentRoute(func(start, end *domain.Point, cur *domain.SavedRoute) *domain.SavedRoute {
		if start == nil || end == nil {
			return nil
		}
		if match := domain.FindRouteBetween(list, *start, *end); match != nil {
			m := *match
			if len(m.Path) == 0 && cur != nil {
				m.Path = cur.Path
			}
			return &m
		}
		if cur == nil || cur.IsSynthetic() {
			return cur
		}
		synthetic := domain.NewSyntheticRoute(s.userID, *start, *end, &domain.RouteGeometry{
			Path:     cur.Path,
			Distance: cur.Distance,
			Duration: cur.Duration,
		})
		return synthetic
	})
}

// IsCurrentInDB — текущий маршрут является сохраненной записью
func (s *RouteService) IsCurrentInDB() bool {
	cur := s.state.CurrentRoute()
	if cur == nil || cur.IsSynthetic() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.FindRoute(s.routes, cur.ID) != nil
}

// Recompute пересчитывает линию маршрута для текущих точек
func (s *RouteService) Recompute(ctx context.Context) error {
	return s.recompute(ctx, true)
}

func (s *RouteService) recompute(ctx context.Context, persist bool) error {
	start, end, ok := s.state.BeginRecompute()
	if !ok {
		return nil
	}

	geom, err := s.routing.FetchRoute(ctx, start, end)
	if err != nil {
		if !s.state.AbandonRoute(start, end) {
			s.log.Debug(logger.Entry{Action: "route_result_stale", Message: err.Error(), UserID: s.userID})
			return nil
		}
		s.log.Error(logger.Entry{
			Action:  "route_recompute_failed",
			Message: err.Error(),
			UserID:  s.userID,
			Error:   &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"start": start.String(),
				"end":   end.String(),
			},
		})
		if errors.Is(err, domain.ErrRouteNotFound) {
			s.notify(ctx, domain.Negative(domain.MsgRouteNotFound))
		} else {
			s.notify(ctx, domain.Negative(domain.MsgRoutingFailed))
		}
		if persist {
			s.bridge.Persist(ctx, s.state)
		}
		return fmt.Errorf("recompute route: %w", err)
	}

	s.mu.RLock()
	match := domain.FindRouteBetween(s.routes, start, end)
	var current *domain.SavedRoute
	if match != nil {
		m := *match
		if len(m.Path) == 0 {
			m.Path = geom.Path
		}
		current = &m
	}
	s.mu.RUnlock()
	if current == nil {
		current = domain.NewSyntheticRoute(s.userID, start, end, geom)
	}

	if !s.state.ApplyRoute(start, end, geom.Path, current) {
		s.log.Debug(logger.Entry{
			Action:  "route_result_stale",
			Message: "endpoints changed while route was in flight",
			UserID:  s.userID,
		})
		return nil
	}

	if match != nil {
		s.notify(ctx, domain.Info(domain.MsgRouteAlreadySaved))
	}
	if persist {
		s.bridge.Persist(ctx, s.state)
	}

	s.log.Debug(logger.Entry{
		Action: "route_recomputed",
		UserID: s.userID,
		Additional: map[string]any{
			"points":   len(geom.Path),
			"distance": geom.Distance,
			"saved":    match != nil,
		},
	})
	return nil
}

// Save сохраняет текущую пару точек и отрисованную линию как маршрут
func (s *RouteService) Save(ctx context.Context, input in.SaveInput) (*domain.SavedRoute, error) {
	start, end := s.state.Endpoints()
	if start == nil || end == nil {
		s.notify(ctx, domain.Warning(domain.MsgMissingEndpoints))
		return nil, domain.ErrMissingEndpoints
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		s.notify(ctx, domain.Warning(domain.MsgNameRequired))
		return nil, domain.ErrNameRequired
	}

	s.mu.RLock()
	existing := domain.FindRouteBetween(s.routes, *start, *end)
	s.mu.RUnlock()
	if existing != nil || s.IsCurrentInDB() {
		s.notify(ctx, domain.Info(domain.MsgRouteAlreadySaved))
		return nil, domain.ErrAlreadySaved
	}

	row := out.NewRouteRow{
		UserID:      s.userID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		StartPoint:  domain.EncodePointWKT(*start),
		EndPoint:    domain.EncodePointWKT(*end),
	}
	path := s.state.LinePath()
	if ls, ok := domain.EncodePathWKT(path); ok {
		row.Path = &ls
	}
	if cur := s.state.CurrentRoute(); cur != nil && cur.Matches(*start, *end) {
		row.Distance = cur.Distance
		row.Duration = cur.Duration
	}

	id, err := s.repo.Insert(ctx, row)
	if err != nil {
		s.log.Error(logger.Entry{
			Action:  "save_route_failed",
			Message: err.Error(),
			UserID:  s.userID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		s.notify(ctx, domain.Negative(domain.MsgRouteSaveFailed))
		return nil, fmt.Errorf("insert route: %w: %w", domain.ErrServiceError, err)
	}

	saved := &domain.SavedRoute{
		ID:          id,
		UserID:      s.userID,
		Name:        name,
		Description: row.Description,
		StartPoint:  *start,
		EndPoint:    *end,
		Path:        path,
		Distance:    row.Distance,
		Duration:    row.Duration,
	}
	if _, err := s.LoadAll(ctx); err == nil {
		if rec := domain.FindRoute(s.List(), id); rec != nil {
			r := *rec
			if len(r.Path) == 0 {
				r.Path = path
			}
			saved = &r
		}
	}

	s.state.UpdateCurrentRoute(func(st, en *domain.Point, cur *domain.SavedRoute) *domain.SavedRoute {
		if st != nil && en != nil && saved.Matches(*st, *en) {
			return saved
		}
		return cur
	})
	s.bridge.Persist(ctx, s.state)

	s.log.Info(logger.Entry{
		Action:     "route_saved",
		Message:    saved.Name,
		UserID:     s.userID,
		Additional: map[string]any{"route_id": saved.ID, "path_points": len(saved.Path)},
	})
	s.publish(ctx, model.EventRouteSaved, saved.ID, saved.Name)
	s.notify(ctx, domain.Positive(domain.MsgRouteSaved))
	return saved, nil
}

// Delete удаляет текущий сохраненный маршрут и очищает маршрут на карте
func (s *RouteService) Delete(ctx context.Context) error {
	cur := s.state.CurrentRoute()
	if cur == nil || cur.IsSynthetic() {
		s.notify(ctx, domain.Warning(domain.MsgRouteNotSaved))
		return domain.ErrNotSaved
	}

	if err := s.repo.Delete(ctx, s.userID, cur.ID); err != nil {
		s.log.Error(logger.Entry{
			Action:     "delete_route_failed",
			Message:    err.Error(),
			UserID:     s.userID,
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"route_id": cur.ID},
		})
		s.notify(ctx, domain.Negative(domain.MsgRouteDeleteFailed))
		return fmt.Errorf("delete route: %w: %w", domain.ErrServiceError, err)
	}

	s.mu.Lock()
	for i := range s.routes {
		if s.routes[i].ID == cur.ID {
			s.routes = append(s.routes[:i], s.routes[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.state.ClearRoute()
	s.bridge.Persist(ctx, s.state)

	s.log.Info(logger.Entry{
		Action:     "route_deleted",
		Message:    cur.Name,
		UserID:     s.userID,
		Additional: map[string]any{"route_id": cur.ID},
	})
	s.publish(ctx, model.EventRouteDeleted, cur.ID, cur.Name)
	s.notify(ctx, domain.Positive(domain.MsgRouteDeleted))
	return nil
}

// Select показывает сохраненный маршрут: точки, сохраненный путь или пересчет
func (s *RouteService) Select(ctx context.Context, id string) error {
	s.mu.RLock()
	rec := domain.FindRoute(s.routes, id)
	var route domain.SavedRoute
	if rec != nil {
		route = *rec
	}
	s.mu.RUnlock()
	if rec == nil {
		return fmt.Errorf("route %s: %w", id, domain.ErrNotFound)
	}

	if s.state.SelectRoute(&route) {
		// путь не сохранен — пересчитываем; ошибка уже отправлена уведомлением
		_ = s.recompute(ctx, true)
		return nil
	}
	s.bridge.Persist(ctx, s.state)
	return nil
}
