package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"taxirn/internal/mapview/application/ports/in"
	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"
)

var (
	pA = domain.Point{Lat: 10.0, Lng: -71.0}
	pB = domain.Point{Lat: 10.1, Lng: -71.1}
	pC = domain.Point{Lat: 10.2, Lng: -71.2}
)

func TestCreatePointKeepsOneMarkerPerRole(t *testing.T) {
	for _, role := range domain.Roles {
		t.Run(string(role), func(t *testing.T) {
			f := newFixture(t)
			s := f.open(t)

			createPoint(t, s, role, pA)
			createPoint(t, s, role, pB)

			got := f.canvas.markersFor(role)
			if len(got) != 1 {
				t.Fatalf("markers for %s = %d, want 1", role, len(got))
			}
			if !got[0].Equal(pB) {
				t.Errorf("marker at %v, want %v", got[0], pB)
			}
		})
	}
}

func TestCreatePointRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	ctx := context.Background()

	if _, err := s.Controller.CreatePoint(ctx, in.CreatePointInput{Role: "middle", Lat: 1, Lng: 1}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad role err = %v", err)
	}
	if _, err := s.Controller.CreatePoint(ctx, in.CreatePointInput{Role: "start", Lat: 95, Lng: 1}); !errors.Is(err, domain.ErrInvalidCoordinates) {
		t.Errorf("bad lat err = %v", err)
	}
}

func TestCreatePointBeforeMountIsRejected(t *testing.T) {
	f := newFixture(t)
	s := NewSession(testUser, f.deps(), logger.Discard())

	_, err := s.Controller.CreatePoint(context.Background(), inPoint(domain.RoleStart, pA))
	if !errors.Is(err, domain.ErrMapNotReady) {
		t.Fatalf("err = %v, want ErrMapNotReady", err)
	}
	if n := len(f.canvas.markersFor(domain.RoleStart)); n != 0 {
		t.Errorf("markers = %d on unmounted map", n)
	}
}

func TestNoRouteLineWithoutBothEndpoints(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	ctx := context.Background()

	steps := []struct {
		name  string
		do    func()
		lines int
		phase domain.Phase
	}{
		{"start only", func() { createPoint(t, s, domain.RoleStart, pA) }, 0, domain.PhaseLocationOnly},
		{"both", func() { createPoint(t, s, domain.RoleEnd, pB) }, 1, domain.PhaseRouteReady},
		{"delete end", func() { _, _ = s.Controller.DeletePoint(ctx, "end", true) }, 0, domain.PhaseLocationOnly},
		{"end again", func() { createPoint(t, s, domain.RoleEnd, pC) }, 1, domain.PhaseRouteReady},
		{"delete start", func() { _, _ = s.Controller.DeletePoint(ctx, "start", true) }, 0, domain.PhaseEmpty},
	}
	for _, st := range steps {
		st.do()
		if n := len(f.canvas.attachedLines()); n != st.lines {
			t.Errorf("%s: attached lines = %d, want %d", st.name, n, st.lines)
		}
		if ph := s.State.Phase(); ph != st.phase {
			t.Errorf("%s: phase = %s, want %s", st.name, ph, st.phase)
		}
	}
	if s.State.CurrentRoute() != nil {
		t.Error("current route must be cleared with an endpoint")
	}
}

func TestDeletePointPersists(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	createPoint(t, s, domain.RoleStart, pA)
	if _, err := s.Controller.DeletePoint(context.Background(), "start", true); err != nil {
		t.Fatalf("DeletePoint: %v", err)
	}
	snap := s.Bridge.Load(context.Background())
	if snap == nil || snap.StartPos != nil {
		t.Errorf("snapshot after delete = %+v", snap)
	}
}

func TestInitializeRestoresSnapshotWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	raw, _ := json.Marshal(domain.Snapshot{StartPos: &pA, EndPos: &pB})
	f.store.data[domain.StorageKey] = raw

	s := f.open(t)

	if got := f.canvas.markersFor(domain.RoleStart); len(got) != 1 || !got[0].Equal(pA) {
		t.Errorf("start markers = %v", got)
	}
	if got := f.canvas.markersFor(domain.RoleEnd); len(got) != 1 || !got[0].Equal(pB) {
		t.Errorf("end markers = %v", got)
	}
	if f.routing.callCount() != 1 {
		t.Errorf("routing calls = %d, want 1", f.routing.callCount())
	}
	if s.State.Phase() != domain.PhaseRouteReady {
		t.Errorf("phase = %s", s.State.Phase())
	}
	if n := f.store.setCount(); n != 0 {
		t.Errorf("restore must not re-persist, got %d writes", n)
	}
	if len(f.canvas.fits) == 0 {
		t.Error("restored route must fit bounds")
	}
}

func TestInitializeWithMalformedSnapshotStartsEmpty(t *testing.T) {
	f := newFixture(t)
	f.store.data[domain.StorageKey] = []byte("{not json")

	s := f.open(t)

	if s.State.Phase() != domain.PhaseEmpty {
		t.Errorf("phase = %s", s.State.Phase())
	}
	view := s.Controller.View()
	if view.Viewport.Zoom != domain.DefaultZoom || !view.Viewport.Center.Equal(domain.DefaultCenter) {
		t.Errorf("default viewport = %+v", view.Viewport)
	}
	if view.TileLayer != domain.DefaultTileLayer {
		t.Errorf("tile layer = %q", view.TileLayer)
	}
}

func TestResetClearsEverything(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	ctx := context.Background()

	createPoint(t, s, domain.RoleStart, pA)
	createPoint(t, s, domain.RoleEnd, pB)

	view, err := s.Controller.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if view.Phase != domain.PhaseEmpty || view.CurrentRoute != nil || view.CurrentLocation != nil {
		t.Errorf("view after reset = %+v", view)
	}
	if len(f.canvas.markersFor(domain.RoleStart))+len(f.canvas.markersFor(domain.RoleEnd)) != 0 {
		t.Error("markers left after reset")
	}
	if len(f.canvas.attachedLines()) != 0 {
		t.Error("route line left after reset")
	}
	if _, found, _ := f.store.Get(ctx, domain.StorageKey); found {
		t.Error("snapshot must be cleared")
	}
}

func TestGetCurrentLocationPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.geo.perm = out.PermissionDenied
	s := f.open(t)
	before := f.canvas.opCount()

	view, err := s.Controller.GetCurrentLocation(context.Background())
	if err != nil {
		t.Fatalf("denied permission must not fail: %v", err)
	}
	if view.StartPos != nil {
		t.Error("no start point expected")
	}
	if f.canvas.opCount() != before {
		t.Error("map must not be mutated")
	}
	if n := f.notifier.last(); n.Message != domain.MsgPermissionDenied || n.Type != "negative" {
		t.Errorf("notification = %+v", n)
	}
}

func TestGetCurrentLocationPlacesStartAndFocuses(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)

	view, err := s.Controller.GetCurrentLocation(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentLocation: %v", err)
	}
	if view.StartPos == nil || !view.StartPos.Equal(f.geo.at) {
		t.Fatalf("start = %v", view.StartPos)
	}
	if view.Viewport.Zoom != domain.FocusZoom {
		t.Errorf("zoom = %d, want %d", view.Viewport.Zoom, domain.FocusZoom)
	}
	if view.CurrentLocation == nil || !view.CurrentLocation.IsSynthetic() {
		t.Errorf("current location = %+v", view.CurrentLocation)
	}
	if !f.notifier.has(domain.MsgLocationFound) {
		t.Error("positive notification expected")
	}
}

func TestMapClickOffersFreeRoles(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	ctx := context.Background()

	_ = s.Controller.HandleMapClick(ctx, pA.Lat, pA.Lng)
	createPoint(t, s, domain.RoleStart, pA)
	_ = s.Controller.HandleMapClick(ctx, pB.Lat, pB.Lng)
	createPoint(t, s, domain.RoleEnd, pB)
	_ = s.Controller.HandleMapClick(ctx, pC.Lat, pC.Lng)

	if len(f.canvas.offers) != 2 {
		t.Fatalf("offers = %v", f.canvas.offers)
	}
	if len(f.canvas.offers[0]) != 2 {
		t.Errorf("first offer = %v, want both roles", f.canvas.offers[0])
	}
	if len(f.canvas.offers[1]) != 1 || f.canvas.offers[1][0] != domain.RoleEnd {
		t.Errorf("second offer = %v, want [end]", f.canvas.offers[1])
	}
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t)
	f.places.places = []domain.Place{{Name: "Plaza", Point: pC}}
	s := f.open(t)
	ctx := context.Background()

	res, err := s.Controller.HandleCommand(ctx, in.Command{Type: in.CmdCreatePoint, Role: "start", Lat: pA.Lat, Lng: pA.Lng})
	if err != nil {
		t.Fatalf("create_point: %v", err)
	}
	if v, ok := res.(*in.MapView); !ok || v.Phase != domain.PhaseLocationOnly {
		t.Errorf("create_point result = %#v", res)
	}

	res, err = s.Controller.HandleCommand(ctx, in.Command{Type: in.CmdSearch, Query: "plaza", Limit: 50})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if places, ok := res.([]domain.Place); !ok || len(places) != 1 {
		t.Errorf("search result = %#v", res)
	}
	if f.places.limit != domain.MaxSearchLimit {
		t.Errorf("limit = %d, want clamp to %d", f.places.limit, domain.MaxSearchLimit)
	}

	if _, err := s.Controller.HandleCommand(ctx, in.Command{Type: in.CmdSetTiles, Name: "CartoPositron"}); err != nil {
		t.Errorf("set_tiles: %v", err)
	}
	if f.canvas.tiles != "CartoPositron" {
		t.Errorf("tiles = %q", f.canvas.tiles)
	}

	if _, err := s.Controller.HandleCommand(ctx, in.Command{Type: "fly"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown command err = %v", err)
	}
	if _, err := s.Controller.HandleCommand(ctx, in.Command{Type: in.CmdSearch, Query: "  "}); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("empty search err = %v", err)
	}
}

func TestRegistryReturnsSameSession(t *testing.T) {
	f := newFixture(t)
	reg := NewSessionRegistry(f.deps(), logger.Discard())
	a := reg.Get("u1")
	b := reg.Get("u1")
	if a != b {
		t.Error("registry must reuse the session")
	}
	if _, ok := reg.Lookup("u2"); ok {
		t.Error("unexpected session for u2")
	}
	reg.Close("u1")
	if _, ok := reg.Lookup("u1"); ok {
		t.Error("session must be forgotten after Close")
	}
}

func TestConcurrentCommandsKeepSingleLine(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	createPoint(t, s, domain.RoleStart, pA)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := domain.Point{Lat: 11 + float64(i)/100, Lng: -71}
			_, _ = s.Controller.CreatePoint(context.Background(), inPoint(domain.RoleEnd, p))
		}(i)
	}
	wg.Wait()

	if n := len(f.canvas.attachedLines()); n > 1 {
		t.Errorf("attached lines = %d, want at most 1", n)
	}
	if n := len(f.canvas.markersFor(domain.RoleEnd)); n != 1 {
		t.Errorf("end markers = %d, want 1", n)
	}
}
