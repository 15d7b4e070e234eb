package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"taxirn/internal/mapview/application/ports/out"
)

func exerciseStore(t *testing.T, factory out.SnapshotStoreFactory) {
	t.Helper()
	ctx := context.Background()
	alice := factory.StoreFor("alice")
	bob := factory.StoreFor("bob")

	if _, found, err := alice.Get(ctx, "mapState"); err != nil || found {
		t.Fatalf("empty Get: found=%v err=%v", found, err)
	}

	if err := alice.Set(ctx, "mapState", []byte(`{"startPos":{"lat":1,"lng":2}}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := alice.Set(ctx, "mapState", []byte(`{"endPos":{"lat":3,"lng":4}}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, found, err := alice.Get(ctx, "mapState")
	if err != nil || !found || string(got) != `{"endPos":{"lat":3,"lng":4}}` {
		t.Fatalf("Get = %q, %v, %v", got, found, err)
	}

	if _, found, _ := bob.Get(ctx, "mapState"); found {
		t.Error("owners must not share keys")
	}

	if err := alice.Delete(ctx, "mapState"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := alice.Get(ctx, "mapState"); found {
		t.Error("key still present after Delete")
	}
	if err := alice.Delete(ctx, "mapState"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "state", "map.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	exerciseStore(t, s)
}

func TestFileStoreToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	st := s.StoreFor("user/../x")
	fs := st.(*fileOwnerStore)
	if filepath.Dir(fs.path) != dir {
		t.Fatalf("store escaped its directory: %s", fs.path)
	}
	if err := os.WriteFile(fs.path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, found, err := st.Get(ctx, "mapState"); err != nil || found {
		t.Fatalf("corrupt Get: found=%v err=%v", found, err)
	}
	if err := st.Set(ctx, "mapState", []byte("{}")); err != nil {
		t.Fatalf("Set over corrupt file: %v", err)
	}
	if v, found, _ := st.Get(ctx, "mapState"); !found || string(v) != "{}" {
		t.Errorf("Get = %q, %v", v, found)
	}
}
