package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taxirn/internal/mapview/application/ports/in"
	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"
)

// MapDefaults — viewport и слой тайлов по умолчанию
type MapDefaults struct {
	View  domain.Viewport
	Tiles domain.TileLayer
}

// DefaultMapDefaults — Маракайбо, zoom 14, GoogleMaps
func DefaultMapDefaults() MapDefaults {
	tiles, _ := domain.TileLayerByName(domain.DefaultTileLayer)
	return MapDefaults{
		View:  domain.Viewport{Center: domain.DefaultCenter, Zoom: domain.DefaultZoom},
		Tiles: tiles,
	}
}

// MapController — корневые операции карты: точки, инициализация, сброс,
// канал команд popup'ов
type MapController struct {
	userChannel

	state     *MapState
	bridge    *PersistenceBridge
	locations *LocationService
	routes    *RouteService
	places    out.PlaceSearcher
	defaults  MapDefaults
}

var _ in.MapUseCase = (*MapController)(nil)

func NewMapController(
	userID string,
	state *MapState,
	bridge *PersistenceBridge,
	locations *LocationService,
	routes *RouteService,
	places out.PlaceSearcher,
	notifier out.Notifier,
	defaults MapDefaults,
	log *logger.Logger,
) *MapController {
	return &MapController{
		userChannel: userChannel{userID: userID, notifier: notifier, log: log},
		state:       state,
		bridge:      bridge,
		locations:   locations,
		routes:      routes,
		places:      places,
		defaults:    defaults,
	}
}

// Initialize монтирует карту и восстанавливает последнее состояние из снапшота
func (c *MapController) Initialize(ctx context.Context, containerID string) (*in.MapView, error) {
	if strings.TrimSpace(containerID) == "" {
		containerID = "map"
	}
	c.state.Mount(containerID, c.defaults.View, c.defaults.Tiles)

	snap := c.bridge.Load(ctx)
	if snap == nil || snap.IsEmpty() {
		return c.View(), nil
	}

	for _, role := range domain.Roles {
		if p := snap.Endpoint(role); p != nil {
			c.createPoint(ctx, role, *p, false)
		}
	}
	c.state.RestoreSelections(snap.CurrentLocation, snap.CurrentRoute)

	switch {
	case c.state.HasRoute():
		c.state.FitEndpoints()
	case c.state.HasStart():
		c.state.Focus(*c.state.Start(), domain.FocusZoom)
	}

	c.log.Info(logger.Entry{
		Action:     "map_restored",
		UserID:     c.userID,
		Additional: map[string]any{"phase": string(c.state.Phase())},
	})
	return c.View(), nil
}

// CreatePoint ставит точку роли; при двух точках пересчитывает маршрут
func (c *MapController) CreatePoint(ctx context.Context, input in.CreatePointInput) (*in.MapView, error) {
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, err
	}
	p, err := domain.NewPoint(input.Lat, input.Lng)
	if err != nil {
		return nil, err
	}
	if !c.state.IsMounted() {
		return nil, domain.ErrMapNotReady
	}

	c.createPoint(ctx, role, p, input.Persist)
	return c.View(), nil
}

func (c *MapController) createPoint(ctx context.Context, role domain.Role, p domain.Point, persist bool) {
	c.state.SetEndpoint(role, p)
	c.locations.ReconcileCurrent()
	if persist {
		c.bridge.Persist(ctx, c.state)
	}
	if c.state.HasRoute() {
		// ошибка пересчета уже доставлена уведомлением
		_ = c.routes.recompute(ctx, persist)
	}
}

// DeletePoint убирает точку роли
func (c *MapController) DeletePoint(ctx context.Context, roleName string, persist bool) (*in.MapView, error) {
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return nil, err
	}

	c.state.ClearEndpoint(role)
	c.locations.ReconcileCurrent()
	if persist {
		c.bridge.Persist(ctx, c.state)
	}
	return c.View(), nil
}

// Reset очищает карту, viewport по умолчанию, снапшот удаляется
func (c *MapController) Reset(ctx context.Context) (*in.MapView, error) {
	c.state.Reset(c.defaults.View)
	if err := c.bridge.Clear(ctx); err != nil {
		return c.View(), err
	}
	return c.View(), nil
}

// GetCurrentLocation ставит стартовую точку в позицию устройства.
// Отказ в разрешении не меняет карту и не является ошибкой.
func (c *MapController) GetCurrentLocation(ctx context.Context) (*in.MapView, error) {
	if !c.state.IsMounted() {
		return nil, domain.ErrMapNotReady
	}

	p, err := c.locations.AcquirePosition(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			return c.View(), nil
		}
		return nil, err
	}

	c.createPoint(ctx, domain.RoleStart, p, true)
	if !c.state.HasEnd() {
		c.state.Focus(p, domain.FocusZoom)
	}
	c.notify(ctx, domain.Positive(domain.MsgLocationFound))
	return c.View(), nil
}

// HandleMapClick предлагает свободные роли для точки клика
func (c *MapController) HandleMapClick(_ context.Context, lat, lng float64) error {
	p, err := domain.NewPoint(lat, lng)
	if err != nil {
		return err
	}
	c.state.OfferFreeRoles(p)
	return nil
}

// SetTileLayer переключает слой тайлов по имени из каталога
func (c *MapController) SetTileLayer(_ context.Context, name string) (*in.MapView, error) {
	tiles, err := domain.TileLayerByName(name)
	if err != nil {
		return nil, err
	}
	c.state.SetTileLayer(tiles)
	return c.View(), nil
}

// SearchPlaces ищет места по строке
func (c *MapController) SearchPlaces(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if limit <= 0 || limit > domain.MaxSearchLimit {
		limit = domain.MaxSearchLimit
	}
	if c.places == nil {
		return nil, fmt.Errorf("place search: %w", domain.ErrServiceError)
	}

	places, err := c.places.Search(ctx, query, limit)
	if err != nil {
		c.log.Error(logger.Entry{
			Action:     "place_search_failed",
			Message:    err.Error(),
			UserID:     c.userID,
			Error:      &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{"query": query},
		})
		c.notify(ctx, domain.Negative(domain.MsgSearchFailed))
		return nil, fmt.Errorf("place search: %w: %w", domain.ErrServiceError, err)
	}
	return places, nil
}

// HandleCommand выполняет команду popup UI.
// Результат: *in.MapView либо []domain.Place для поиска.
func (c *MapController) HandleCommand(ctx context.Context, cmd in.Command) (any, error) {
	switch cmd.Type {
	case in.CmdCreatePoint:
		return c.CreatePoint(ctx, in.CreatePointInput{Role: cmd.Role, Lat: cmd.Lat, Lng: cmd.Lng, Persist: true})
	case in.CmdDeletePoint:
		return c.DeletePoint(ctx, cmd.Role, true)
	case in.CmdReset:
		return c.Reset(ctx)
	case in.CmdLocate:
		return c.GetCurrentLocation(ctx)
	case in.CmdSearch:
		return c.SearchPlaces(ctx, cmd.Query, cmd.Limit)
	case in.CmdMapClick:
		return nil, c.HandleMapClick(ctx, cmd.Lat, cmd.Lng)
	case in.CmdSetTiles:
		return c.SetTileLayer(ctx, cmd.Name)
	case in.CmdSelectLocation:
		if err := c.locations.Select(ctx, cmd.ID); err != nil {
			return nil, err
		}
		return c.View(), nil
	case in.CmdSelectRoute:
		if err := c.routes.Select(ctx, cmd.ID); err != nil {
			return nil, err
		}
		return c.View(), nil
	}
	return nil, fmt.Errorf("%w: unknown command %q", domain.ErrValidation, cmd.Type)
}

// View — текущее состояние карты с признаками сохраненности
func (c *MapController) View() *in.MapView {
	v := c.state.View()
	v.CurrentLocationSaved = c.locations.IsCurrentInDB()
	v.CurrentRouteSaved = c.routes.IsCurrentInDB()
	return v
}
