package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"taxirn/internal/mapview/application/ports/in"
	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/model"
)

func savedLocationRow(id string, p domain.Point) out.LocationRow {
	return out.LocationRow{
		ID:          id,
		UserID:      testUser,
		Name:        "Home",
		Coordinates: pointGeoJSON(p),
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoadAllDropsMalformedRows(t *testing.T) {
	f := newFixture(t)
	f.locRepo.rows = []out.LocationRow{
		savedLocationRow("a0000000-0000-0000-0000-000000000001", pA),
		{ID: "bad-1", UserID: testUser, Coordinates: "garbage"},
		{ID: "bad-2", UserID: testUser, Coordinates: `{"type":"Point","coordinates":[10.0,-171.0]}`},
		{ID: "wkt-1", UserID: testUser, Coordinates: "POINT(-71.1 10.1)"},
	}
	s := f.open(t)

	list := s.Locations.List()
	if len(list) != 2 {
		t.Fatalf("loaded %d rows, want 2: %+v", len(list), list)
	}
	if !list[0].Coordinates.Equal(pA) || !list[1].Coordinates.Equal(pB) {
		t.Errorf("decoded coordinates = %v, %v", list[0].Coordinates, list[1].Coordinates)
	}
}

func TestLoadAllFailureNotifies(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	f.locRepo.listErr = errBackend

	_, err := s.Locations.LoadAll(context.Background())
	if !errors.Is(err, domain.ErrServiceError) || !errors.Is(err, errBackend) {
		t.Fatalf("err = %v", err)
	}
	if !f.notifier.has(domain.MsgLocationLoadFailed) {
		t.Error("load failure must be notified")
	}
}

func TestReconcileCurrentMatchesBothAxes(t *testing.T) {
	f := newFixture(t)
	id := "a0000000-0000-0000-0000-000000000001"
	f.locRepo.rows = []out.LocationRow{savedLocationRow(id, pA)}
	s := f.open(t)

	// совпадение только по широте — не то же место
	createPoint(t, s, domain.RoleStart, domain.Point{Lat: pA.Lat, Lng: -72})
	if cur := s.State.CurrentLocation(); cur == nil || !cur.IsSynthetic() {
		t.Fatalf("current = %+v, want synthetic", cur)
	}
	if s.Locations.IsCurrentInDB() {
		t.Error("synthetic location reported as saved")
	}

	createPoint(t, s, domain.RoleStart, pA)
	if cur := s.State.CurrentLocation(); cur == nil || cur.ID != id {
		t.Fatalf("current = %+v, want %s", cur, id)
	}
	if !s.Locations.IsCurrentInDB() {
		t.Error("matched location must be in DB")
	}
}

func TestSaveLocationDuplicateIsNoop(t *testing.T) {
	f := newFixture(t)
	f.locRepo.rows = []out.LocationRow{savedLocationRow("a0000000-0000-0000-0000-000000000001", domain.Point{Lat: 10, Lng: -71})}
	s := f.open(t)
	createPoint(t, s, domain.RoleStart, domain.Point{Lat: 10, Lng: -71})

	_, err := s.Locations.Save(context.Background(), in.SaveInput{Name: "Home"})
	if !errors.Is(err, domain.ErrAlreadySaved) {
		t.Fatalf("err = %v, want ErrAlreadySaved", err)
	}
	if len(f.locRepo.inserts) != 0 {
		t.Errorf("insert issued: %+v", f.locRepo.inserts)
	}
	if n := f.notifier.last(); n.Message != domain.MsgLocationAlreadySaved {
		t.Errorf("notification = %+v", n)
	}
}

func TestSaveLocationValidation(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	ctx := context.Background()

	if _, err := s.Locations.Save(ctx, in.SaveInput{Name: "Home"}); !errors.Is(err, domain.ErrNoStartPoint) {
		t.Errorf("no start: err = %v", err)
	}
	createPoint(t, s, domain.RoleStart, pA)
	if _, err := s.Locations.Save(ctx, in.SaveInput{Name: "   "}); !errors.Is(err, domain.ErrNameRequired) {
		t.Errorf("empty name: err = %v", err)
	}
	if len(f.locRepo.inserts) != 0 {
		t.Error("validation failures must not insert")
	}
}

func TestSaveLocationInsertsAndSelectsRecord(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	createPoint(t, s, domain.RoleStart, pA)

	saved, err := s.Locations.Save(context.Background(), in.SaveInput{Name: " Office ", Description: "3rd floor"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(f.locRepo.inserts) != 1 {
		t.Fatalf("inserts = %d", len(f.locRepo.inserts))
	}
	ins := f.locRepo.inserts[0]
	if ins.Name != "Office" || ins.Coordinates != domain.EncodePointWKT(pA) {
		t.Errorf("insert row = %+v", ins)
	}
	if saved.IsSynthetic() || !saved.Coordinates.Equal(pA) {
		t.Errorf("saved = %+v", saved)
	}
	if cur := s.State.CurrentLocation(); cur == nil || cur.ID != saved.ID {
		t.Errorf("current = %+v, want %s", cur, saved.ID)
	}
	if !s.Locations.IsCurrentInDB() {
		t.Error("saved location must be in DB")
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != model.EventLocationSaved {
		t.Errorf("events = %+v", f.publisher.events)
	}
	snap := s.Bridge.Load(context.Background())
	if snap == nil || snap.CurrentLocation == nil || snap.CurrentLocation.ID != saved.ID {
		t.Errorf("snapshot current = %+v", snap)
	}
}

func TestDeleteLocationRequiresSavedRecord(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	createPoint(t, s, domain.RoleStart, pA)

	if err := s.Locations.Delete(context.Background()); !errors.Is(err, domain.ErrNotSaved) {
		t.Fatalf("err = %v, want ErrNotSaved", err)
	}
	if len(f.locRepo.deletes) != 0 {
		t.Error("delete issued for a synthetic record")
	}
	if n := f.notifier.last(); n.Message != domain.MsgLocationNotSaved || n.Type != "warning" {
		t.Errorf("notification = %+v", n)
	}
	if !s.State.HasStart() {
		t.Error("state must be unchanged")
	}
}

func TestDeleteLocationClearsOnlyStart(t *testing.T) {
	f := newFixture(t)
	id := "a0000000-0000-0000-0000-000000000001"
	f.locRepo.rows = []out.LocationRow{savedLocationRow(id, pA)}
	s := f.open(t)
	createPoint(t, s, domain.RoleStart, pA)
	createPoint(t, s, domain.RoleEnd, pB)

	if err := s.Locations.Delete(context.Background()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(f.locRepo.deletes) != 1 || f.locRepo.deletes[0] != id {
		t.Errorf("deletes = %v", f.locRepo.deletes)
	}
	if s.State.HasStart() || !s.State.HasEnd() {
		t.Error("only the start point must be cleared")
	}
	if len(f.canvas.attachedLines()) != 0 {
		t.Error("route line must go away with the start point")
	}
	if len(s.Locations.List()) != 0 {
		t.Error("deleted record must leave the collection")
	}
	if s.State.CurrentLocation() != nil || s.State.CurrentRoute() != nil {
		t.Error("current selections must be cleared")
	}
}

func TestSelectLocationCollapsesToSinglePoint(t *testing.T) {
	f := newFixture(t)
	id := "a0000000-0000-0000-0000-000000000001"
	f.locRepo.rows = []out.LocationRow{savedLocationRow(id, pC)}
	s := f.open(t)
	createPoint(t, s, domain.RoleStart, pA)
	createPoint(t, s, domain.RoleEnd, pB)

	if err := s.Locations.Select(context.Background(), id); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if s.State.Phase() != domain.PhaseLocationOnly {
		t.Errorf("phase = %s", s.State.Phase())
	}
	if got := f.canvas.markersFor(domain.RoleStart); len(got) != 1 || !got[0].Equal(pC) {
		t.Errorf("start markers = %v", got)
	}
	if len(f.canvas.markersFor(domain.RoleEnd)) != 0 || len(f.canvas.attachedLines()) != 0 {
		t.Error("end marker and line must be removed")
	}
	view := s.Controller.View()
	if view.Viewport.Zoom != domain.FocusZoom || !view.CurrentLocationSaved {
		t.Errorf("view = %+v", view)
	}

	if err := s.Locations.Select(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing id err = %v", err)
	}
}

func TestSavedLocationMatchesClickAfterReload(t *testing.T) {
	f := newFixture(t)
	s := f.open(t)
	click := domain.Point{Lat: 10.196805123456789, Lng: -71.30903098765432}
	createPoint(t, s, domain.RoleStart, click)

	saved, err := s.Locations.Save(context.Background(), in.SaveInput{Name: "Home"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.IsSynthetic() || !s.Locations.IsCurrentInDB() {
		t.Fatalf("current after save = %+v, inDB = %v", s.State.CurrentLocation(), s.Locations.IsCurrentInDB())
	}

	if _, err := s.Locations.Save(context.Background(), in.SaveInput{Name: "Home again"}); !errors.Is(err, domain.ErrAlreadySaved) {
		t.Fatalf("second save err = %v, want ErrAlreadySaved", err)
	}
	if len(f.locRepo.inserts) != 1 {
		t.Errorf("inserts = %d, want 1", len(f.locRepo.inserts))
	}
}
