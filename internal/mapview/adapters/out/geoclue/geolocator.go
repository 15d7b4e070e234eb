package geoclue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"

	"github.com/godbus/dbus/v5"
)

const (
	geoService    = "org.freedesktop.GeoClue2"
	managerPath   = dbus.ObjectPath("/org/freedesktop/GeoClue2/Manager")
	managerIface  = "org.freedesktop.GeoClue2.Manager"
	clientIface   = "org.freedesktop.GeoClue2.Client"
	locationIface = "org.freedesktop.GeoClue2.Location"
	propsIface    = "org.freedesktop.DBus.Properties"

	accuracyExact     = uint32(8)
	distanceThreshold = uint32(25)
	timeThreshold     = uint32(5)

	// ждем первый fix не дольше этого, если ctx без дедлайна
	defaultFixTimeout = 15 * time.Second
)

// Fix — одно показание GeoClue
type Fix struct {
	Lat, Lng float64
	Accuracy float64
}

// backend — D-Bus клиент GeoClue; в тестах подменяется
type backend interface {
	Start(ctx context.Context) error
	Fix(ctx context.Context) (Fix, error)
	Close()
}

type dialFunc func(desktopID string) (backend, error)

// Geolocator отдает позицию устройства через GeoClue2.
// Первый RequestPermission создает клиента GeoClue; отказ агента
// (AccessDenied) запоминается как denied.
type Geolocator struct {
	desktopID string
	dial      dialFunc
	log       *logger.Logger

	mu     sync.Mutex
	perm   out.Permission
	client backend
}

var _ out.Geolocator = (*Geolocator)(nil)

func NewGeolocator(desktopID string, log *logger.Logger) *Geolocator {
	return &Geolocator{
		desktopID: desktopID,
		dial:      dialDBus,
		log:       log,
		perm:      out.PermissionPrompt,
	}
}

func (g *Geolocator) CheckPermission(context.Context) (out.Permission, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.perm, nil
}

func (g *Geolocator) RequestPermission(ctx context.Context) (out.Permission, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.perm == out.PermissionGranted && g.client != nil {
		return g.perm, nil
	}

	cl, err := g.dial(g.desktopID)
	if err == nil {
		err = cl.Start(ctx)
		if err != nil {
			cl.Close()
		}
	}
	if err != nil {
		if isAccessDenied(err) {
			g.perm = out.PermissionDenied
			g.log.Warn(logger.Entry{Action: "geoclue_access_denied", Message: err.Error()})
			return g.perm, nil
		}
		return g.perm, fmt.Errorf("geoclue: %w", err)
	}

	g.client = cl
	g.perm = out.PermissionGranted
	g.log.Info(logger.Entry{Action: "geoclue_client_started", Message: g.desktopID})
	return g.perm, nil
}

func (g *Geolocator) CurrentPosition(ctx context.Context) (domain.Point, error) {
	g.mu.Lock()
	cl, perm := g.client, g.perm
	g.mu.Unlock()

	if perm == out.PermissionDenied {
		return domain.Point{}, domain.ErrPermissionDenied
	}
	if cl == nil {
		return domain.Point{}, fmt.Errorf("geoclue client not started: %w", domain.ErrServiceError)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFixTimeout)
		defer cancel()
	}

	fix, err := cl.Fix(ctx)
	if err != nil {
		if isAccessDenied(err) {
			g.mu.Lock()
			g.perm = out.PermissionDenied
			g.mu.Unlock()
			return domain.Point{}, domain.ErrPermissionDenied
		}
		return domain.Point{}, fmt.Errorf("geoclue fix: %w", err)
	}

	p, err := domain.NewPoint(fix.Lat, fix.Lng)
	if err != nil {
		return domain.Point{}, err
	}

	g.log.Debug(logger.Entry{
		Action:     "geoclue_fix",
		Additional: map[string]any{"lat": p.Lat, "lng": p.Lng, "accuracy_m": fix.Accuracy},
	})
	return p, nil
}

// Close останавливает клиента GeoClue
func (g *Geolocator) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		g.client.Close()
		g.client = nil
	}
}

func isAccessDenied(err error) bool {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return strings.HasSuffix(dbusErr.Name, ".AccessDenied")
	}
	return strings.Contains(err.Error(), "AccessDenied")
}

// ---------------------------------------------------------------------------
// D-Bus
// ---------------------------------------------------------------------------

type dbusClient struct {
	bus  *dbus.Conn
	path dbus.ObjectPath
}

func dialDBus(desktopID string) (backend, error) {
	bus, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	manager := bus.Object(geoService, managerPath)

	var clientPath dbus.ObjectPath
	if err := manager.Call(managerIface+".CreateClient", 0).Store(&clientPath); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	obj := bus.Object(geoService, clientPath)

	setProp := func(name string, val any) error {
		return obj.Call(propsIface+".Set", 0, clientIface, name, dbus.MakeVariant(val)).Err
	}
	if err := setProp("DesktopId", desktopID); err != nil {
		return nil, fmt.Errorf("set DesktopId: %w", err)
	}
	if err := setProp("RequestedAccuracyLevel", accuracyExact); err != nil {
		return nil, fmt.Errorf("set accuracy: %w", err)
	}
	_ = setProp("DistanceThreshold", distanceThreshold)
	_ = setProp("TimeThreshold", timeThreshold)

	return &dbusClient{bus: bus, path: clientPath}, nil
}

func (c *dbusClient) Start(ctx context.Context) error {
	return c.bus.Object(geoService, c.path).CallWithContext(ctx, clientIface+".Start", 0).Err
}

func (c *dbusClient) Close() {
	_ = c.bus.Object(geoService, c.path).Call(clientIface+".Stop", 0).Err
}

// Fix читает текущий Location клиента; если его еще нет, ждет
// PropertiesChanged с новым Location. Подписка ставится до чтения свойства,
// иначе сигнал между Get и AddMatch теряется.
func (c *dbusClient) Fix(ctx context.Context) (Fix, error) {
	rule := fmt.Sprintf("type='signal',interface='%s',path='%s'", propsIface, c.path)
	if err := c.bus.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return Fix{}, err
	}
	defer c.bus.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)

	sigCh := make(chan *dbus.Signal, 10)
	c.bus.Signal(sigCh)
	defer c.bus.RemoveSignal(sigCh)

	path, err := awaitLocation(ctx, c.path, c.locationPath, sigCh)
	if err != nil {
		return Fix{}, err
	}
	return c.readFix(ctx, path)
}

// awaitLocation возвращает путь Location: текущий, если он уже есть,
// иначе первый пришедший в PropertiesChanged. signals должен быть
// подписан до вызова.
func awaitLocation(
	ctx context.Context,
	client dbus.ObjectPath,
	current func(context.Context) (dbus.ObjectPath, error),
	signals <-chan *dbus.Signal,
) (dbus.ObjectPath, error) {
	if path, err := current(ctx); err == nil && isLocationPath(path) {
		return path, nil
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case sig, ok := <-signals:
			if !ok || sig == nil {
				return "", errors.New("dbus signal channel closed")
			}
			if sig.Name != propsIface+".PropertiesChanged" || sig.Path != client || len(sig.Body) < 2 {
				continue
			}
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}
			if v, ok := changed["Location"]; ok {
				if lp, ok := v.Value().(dbus.ObjectPath); ok && isLocationPath(lp) {
					return lp, nil
				}
			}
		}
	}
}

func isLocationPath(p dbus.ObjectPath) bool {
	return p != "" && p != "/"
}

func (c *dbusClient) locationPath(ctx context.Context) (dbus.ObjectPath, error) {
	var v dbus.Variant
	call := c.bus.Object(geoService, c.path).CallWithContext(ctx, propsIface+".Get", 0, clientIface, "Location")
	if err := call.Store(&v); err != nil {
		return "", err
	}
	path, _ := v.Value().(dbus.ObjectPath)
	return path, nil
}

func (c *dbusClient) readFix(ctx context.Context, path dbus.ObjectPath) (Fix, error) {
	var props map[string]dbus.Variant
	call := c.bus.Object(geoService, path).CallWithContext(ctx, propsIface+".GetAll", 0, locationIface)
	if err := call.Store(&props); err != nil {
		return Fix{}, err
	}

	f64 := func(key string) float64 {
		if v, ok := props[key]; ok {
			if f, ok := v.Value().(float64); ok {
				return f
			}
		}
		return 0
	}

	fix := Fix{Lat: f64("Latitude"), Lng: f64("Longitude"), Accuracy: f64("Accuracy")}
	if fix.Lat == 0 && fix.Lng == 0 {
		return Fix{}, errors.New("geoclue returned empty fix")
	}
	return fix, nil
}
