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

// LocationService — сохраненные места пользователя и их сверка со стартовой точкой
type LocationService struct {
	userChannel

	state  *MapState
	repo   out.LocationRepository
	bridge *PersistenceBridge
	geo    out.Geolocator

	mu        sync.RWMutex
	locations []domain.SavedLocation
}

var _ in.LocationUseCase = (*LocationService)(nil)

func NewLocationService(
	userID string,
	state *MapState,
	repo out.LocationRepository,
	bridge *PersistenceBridge,
	geo out.Geolocator,
	notifier out.Notifier,
	publisher out.EventPublisher,
	log *logger.Logger,
) *LocationService {
	return &LocationService{
		userChannel: userChannel{userID: userID, notifier: notifier, publisher: publisher, log: log},
		state:       state,
		repo:        repo,
		bridge:      bridge,
		geo:         geo,
	}
}

// LoadAll загружает места пользователя. Строки с некорректной геометрией
// отбрасываются, остальные загружаются.
func (s *LocationService) LoadAll(ctx context.Context) ([]domain.SavedLocation, error) {
	rows, err := s.repo.ListByUser(ctx, s.userID)
	if err != nil {
		s.log.Error(logger.Entry{
			Action:  "load_locations_failed",
			Message: err.Error(),
			UserID:  s.userID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		s.notify(ctx, domain.Negative(domain.MsgLocationLoadFailed))
		return nil, fmt.Errorf("load locations: %w: %w", domain.ErrServiceError, err)
	}

	list := make([]domain.SavedLocation, 0, len(rows))
	for _, row := range rows {
		loc, err := decodeLocationRow(row)
		if err != nil {
			s.log.Warn(logger.Entry{
				Action:     "location_row_dropped",
				Message:    err.Error(),
				UserID:     s.userID,
				Additional: map[string]any{"location_id": row.ID},
			})
			continue
		}
		list = append(list, loc)
	}

	s.mu.Lock()
	s.locations = list
	s.mu.Unlock()

	s.ReconcileCurrent()

	s.log.Debug(logger.Entry{
		Action:     "locations_loaded",
		UserID:     s.userID,
		Additional: map[string]any{"rows": len(rows), "loaded": len(list)},
	})
	return s.List(), nil
}

func decodeLocationRow(row out.LocationRow) (domain.SavedLocation, error) {
	p, err := domain.DecodePoint(row.Coordinates)
	if err != nil {
		return domain.SavedLocation{}, fmt.Errorf("location %s coordinates: %w", row.ID, err)
	}
	loc := domain.SavedLocation{
		ID:          row.ID,
		UserID:      row.UserID,
		Name:        row.Name,
		Coordinates: p,
		CreatedAt:   row.CreatedAt,
	}
	if row.Description != nil {
		loc.Description = *row.Description
	}
	return loc, nil
}

// List возвращает копию загруженной коллекции
func (s *LocationService) List() []domain.SavedLocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SavedLocation(nil), s.locations...)
}

// ReconcileCurrent сверяет стартовую точку с коллекцией: точное совпадение
// становится текущим; иначе текущим остается синтетическое место в стартовой
// точке, а без стартовой точки текущее очищается.
func (s *LocationService) ReconcileCurrent() {
	list := s.List()
	s.state.UpdateCurrentLocation(func(start *domain.Point, cur *domain.SavedLocation) *domain.SavedLocation {
		return reconcileLocation(list, s.userID, start, cur)
	})
}

func reconcileLocation(list []domain.SavedLocation, userID string, start *domain.Point, cur *domain.SavedLocation) *domain.SavedLocation {
	if start == nil {
		return nil
	}
	if match := domain.FindLocationAt(list, *start); match != nil {
		m := *match
		return &m
	}
	if cur != nil && cur.IsSynthetic() && cur.Coordinates.Equal(*start) {
		return cur
	}
	return domain.NewSyntheticLocation(userID, *start)
}

// IsCurrentInDB — текущее место является сохраненной записью
func (s *LocationService) IsCurrentInDB() bool {
	cur := s.state.CurrentLocation()
	if cur == nil || cur.IsSynthetic() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.FindLocation(s.locations, cur.ID) != nil
}

// Save сохраняет стартовую точку как новое место
func (s *LocationService) Save(ctx context.Context, input in.SaveInput) (*domain.SavedLocation, error) {
	start := s.state.Start()
	if start == nil {
		s.notify(ctx, domain.Warning(domain.MsgNoStartPoint))
		return nil, domain.ErrNoStartPoint
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		s.notify(ctx, domain.Warning(domain.MsgNameRequired))
		return nil, domain.ErrNameRequired
	}

	s.ReconcileCurrent()
	s.mu.RLock()
	existing := domain.FindLocationAt(s.locations, *start)
	s.mu.RUnlock()
	if existing != nil || s.IsCurrentInDB() {
		s.notify(ctx, domain.Info(domain.MsgLocationAlreadySaved))
		return nil, domain.ErrAlreadySaved
	}

	id, err := s.repo.Insert(ctx, out.NewLocationRow{
		UserID:      s.userID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Coordinates: domain.EncodePointWKT(*start),
	})
	if err != nil {
		s.log.Error(logger.Entry{
			Action:  "save_location_failed",
			Message: err.Error(),
			UserID:  s.userID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		s.notify(ctx, domain.Negative(domain.MsgLocationSaveFailed))
		return nil, fmt.Errorf("insert location: %w: %w", domain.ErrServiceError, err)
	}

	saved := &domain.SavedLocation{
		ID:          id,
		UserID:      s.userID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Coordinates: *start,
	}
	if _, err := s.LoadAll(ctx); err == nil {
		if rec := domain.FindLocation(s.List(), id); rec != nil {
			r := *rec
			saved = &r
		}
	}

	list := s.List()
	s.state.UpdateCurrentLocation(func(start *domain.Point, cur *domain.SavedLocation) *domain.SavedLocation {
		if start != nil && start.Equal(saved.Coordinates) {
			return saved
		}
		// стартовая точка успела смениться
		return reconcileLocation(list, s.userID, start, cur)
	})
	s.bridge.Persist(ctx, s.state)

	s.log.Info(logger.Entry{
		Action:     "location_saved",
		Message:    saved.Name,
		UserID:     s.userID,
		Additional: map[string]any{"location_id": saved.ID},
	})
	s.publish(ctx, model.EventLocationSaved, saved.ID, saved.Name)
	s.notify(ctx, domain.Positive(domain.MsgLocationSaved))
	return saved, nil
}

// Delete удаляет текущее сохраненное место и стартовую точку с карты
func (s *LocationService) Delete(ctx context.Context) error {
	cur := s.state.CurrentLocation()
	if cur == nil || cur.IsSynthetic() {
		s.notify(ctx, domain.Warning(domain.MsgLocationNotSaved))
		return domain.ErrNotSaved
	}

	if err := s.repo.Delete(ctx, s.userID, cur.ID); err != nil {
		s.log.Error(logger.Entry{
			Action:     "delete_location_failed",
			Message:    err.Error(),
			UserID:     s.userID,
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"location_id": cur.ID},
		})
		s.notify(ctx, domain.Negative(domain.MsgLocationDeleteFailed))
		return fmt.Errorf("delete location: %w: %w", domain.ErrServiceError, err)
	}

	s.mu.Lock()
	for i := range s.locations {
		if s.locations[i].ID == cur.ID {
			s.locations = append(s.locations[:i], s.locations[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.state.ClearEndpoint(domain.RoleStart)
	s.bridge.Persist(ctx, s.state)

	s.log.Info(logger.Entry{
		Action:     "location_deleted",
		Message:    cur.Name,
		UserID:     s.userID,
		Additional: map[string]any{"location_id": cur.ID},
	})
	s.publish(ctx, model.EventLocationDeleted, cur.ID, cur.Name)
	s.notify(ctx, domain.Positive(domain.MsgLocationDeleted))
	return nil
}

// Select делает место текущим и переводит карту в режим одной точки
func (s *LocationService) Select(ctx context.Context, id string) error {
	s.mu.RLock()
	rec := domain.FindLocation(s.locations, id)
	var loc domain.SavedLocation
	if rec != nil {
		loc = *rec
	}
	s.mu.RUnlock()
	if rec == nil {
		return fmt.Errorf("location %s: %w", id, domain.ErrNotFound)
	}

	s.state.SelectLocation(&loc)
	s.bridge.Persist(ctx, s.state)
	return nil
}

// AcquirePosition проверяет разрешение и получает позицию устройства.
// Отказ в разрешении — обычный исход: уведомление и domain.ErrPermissionDenied.
func (s *LocationService) AcquirePosition(ctx context.Context) (domain.Point, error) {
	if s.geo == nil {
		s.notify(ctx, domain.Negative(domain.MsgLocationUnavailable))
		return domain.Point{}, fmt.Errorf("geolocation: %w", domain.ErrServiceError)
	}

	perm, err := s.geo.CheckPermission(ctx)
	if err != nil {
		s.log.Warn(logger.Entry{Action: "geolocation_permission_check_failed", Message: err.Error(), UserID: s.userID})
		perm = out.PermissionPrompt
	}
	if perm == out.PermissionPrompt {
		if perm, err = s.geo.RequestPermission(ctx); err != nil {
			s.log.Warn(logger.Entry{Action: "geolocation_permission_request_failed", Message: err.Error(), UserID: s.userID})
			perm = out.PermissionDenied
		}
	}
	if perm != out.PermissionGranted {
		s.notify(ctx, domain.Negative(domain.MsgPermissionDenied))
		return domain.Point{}, domain.ErrPermissionDenied
	}

	p, err := s.geo.CurrentPosition(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			s.notify(ctx, domain.Negative(domain.MsgPermissionDenied))
			return domain.Point{}, domain.ErrPermissionDenied
		}
		s.log.Error(logger.Entry{
			Action:  "geolocation_failed",
			Message: err.Error(),
			UserID:  s.userID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		s.notify(ctx, domain.Negative(domain.MsgLocationUnavailable))
		return domain.Point{}, fmt.Errorf("geolocation: %w: %w", domain.ErrServiceError, err)
	}
	if err := p.Validate(); err != nil {
		s.notify(ctx, domain.Negative(domain.MsgLocationUnavailable))
		return domain.Point{}, fmt.Errorf("geolocation: %w", err)
	}
	return p, nil
}
