package out_ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"
)

type sent struct {
	userID string
	typ    string
	data   json.RawMessage
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (s *recordingSender) SendTypedMessage(userID, msgType string, data any) error {
	if s.err != nil {
		return s.err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, sent{userID: userID, typ: msgType, data: raw})
	return nil
}

func (s *recordingSender) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.msgs {
		out = append(out, m.typ)
	}
	return out
}

func (s *recordingSender) last() sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgs[len(s.msgs)-1]
}

func TestCanvasTracksScene(t *testing.T) {
	sender := &recordingSender{}
	c := NewCanvas("u1", sender, logger.Discard())

	tiles, _ := domain.TileLayerByName(domain.DefaultTileLayer)
	c.Mount("map", domain.Viewport{Center: domain.DefaultCenter, Zoom: domain.DefaultZoom}, tiles)
	start := c.AddMarker(domain.RoleStart, domain.Point{Lat: 10, Lng: -71})
	c.AddMarker(domain.RoleEnd, domain.Point{Lat: 10.1, Lng: -71.1})
	line := c.AddPolyline([]domain.Point{{Lat: 10, Lng: -71}, {Lat: 10.1, Lng: -71.1}}, domain.RouteLineStyle)
	c.RemoveLayer(start)
	c.RemoveLayer(start)

	scene, ok := c.Scene()
	if !ok {
		t.Fatal("canvas must be mounted")
	}
	if len(scene.Layers) != 2 {
		t.Fatalf("layers = %+v", scene.Layers)
	}
	if scene.Layers[0].Role != domain.RoleEnd || scene.Layers[0].Color != "red" {
		t.Errorf("marker layer = %+v", scene.Layers[0])
	}
	if scene.Layers[1].ID != line || scene.Layers[1].Style.Color != domain.RouteLineStyle.Color {
		t.Errorf("line layer = %+v", scene.Layers[1])
	}

	want := []string{MsgMount, MsgLayerAdd, MsgLayerAdd, MsgLayerAdd, MsgLayerRemove}
	got := sender.types()
	if len(got) != len(want) {
		t.Fatalf("messages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCanvasRemountDropsLayers(t *testing.T) {
	c := NewCanvas("u1", &recordingSender{}, logger.Discard())
	tiles, _ := domain.TileLayerByName(domain.DefaultTileLayer)
	c.Mount("map", domain.Viewport{Zoom: 14}, tiles)
	c.AddMarker(domain.RoleStart, domain.Point{Lat: 1, Lng: 1})

	c.Mount("other", domain.Viewport{Zoom: 14}, tiles)
	scene, _ := c.Scene()
	if scene.Container != "other" || len(scene.Layers) != 0 {
		t.Errorf("scene = %+v", scene)
	}
}

func TestFactoryReplaysMountedScene(t *testing.T) {
	sender := &recordingSender{}
	f := NewCanvasFactory(sender, logger.Discard())

	f.Replay("nobody")
	if len(sender.types()) != 0 {
		t.Fatal("replay for unknown user must be silent")
	}

	c := f.CanvasFor("u1")
	if f.CanvasFor("u1") != c {
		t.Fatal("factory must reuse the canvas")
	}
	f.Replay("u1")
	if len(sender.types()) != 0 {
		t.Fatal("unmounted canvas must not be replayed")
	}

	tiles, _ := domain.TileLayerByName("OpenStreetMap")
	c.Mount("map", domain.Viewport{Zoom: 14}, tiles)
	c.AddMarker(domain.RoleStart, domain.Point{Lat: 1, Lng: 2})
	f.Replay("u1")

	last := sender.last()
	if last.typ != MsgScene || last.userID != "u1" {
		t.Fatalf("last message = %+v", last)
	}
	var scene Scene
	if err := json.Unmarshal(last.data, &scene); err != nil {
		t.Fatalf("decode scene: %v", err)
	}
	if len(scene.Layers) != 1 || scene.Layers[0].At == nil || scene.Layers[0].At.Lng != 2 {
		t.Errorf("replayed scene = %+v", scene)
	}
}

func TestNotifierSendsTypedMessage(t *testing.T) {
	sender := &recordingSender{}
	n := NewWsNotifier(sender, logger.Discard())

	if err := n.Notify(context.Background(), "u1", domain.Warning(domain.MsgRouteNotSaved)); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	last := sender.last()
	if last.typ != MsgNotify {
		t.Fatalf("type = %s", last.typ)
	}
	var note domain.Notification
	_ = json.Unmarshal(last.data, &note)
	if note.Type != "warning" || note.Message != domain.MsgRouteNotSaved {
		t.Errorf("note = %+v", note)
	}

	sender.err = errors.New("closed")
	if err := n.Notify(context.Background(), "u1", domain.Info("x")); err == nil {
		t.Error("send failure must be returned")
	}
}
