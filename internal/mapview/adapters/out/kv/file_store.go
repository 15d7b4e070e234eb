package kv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"taxirn/internal/mapview/application/ports/out"
)

// FileStore — по одному JSON файлу на пользователя в каталоге dir.
// Запись атомарна: file.tmp, затем rename поверх старого файла.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ out.SnapshotStoreFactory = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (f *FileStore) StoreFor(userID string) out.KeyValueStore {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock, ok := f.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		f.locks[userID] = lock
	}
	// userID может содержать что угодно; имя файла — base64url
	name := base64.RawURLEncoding.EncodeToString([]byte(userID)) + ".json"
	return &fileOwnerStore{path: filepath.Join(f.dir, name), mu: lock}
}

// Close — открытых дескрипторов нет
func (f *FileStore) Close() error { return nil }

type fileOwnerStore struct {
	path string
	mu   *sync.Mutex
}

func (s *fileOwnerStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	kv := map[string]string{}
	if len(raw) == 0 {
		return kv, nil
	}
	if err := json.Unmarshal(raw, &kv); err != nil {
		// поврежденный файл считается пустым и будет перезаписан
		return map[string]string{}, nil
	}
	return kv, nil
}

func (s *fileOwnerStore) write(kv map[string]string) error {
	raw, err := json.Marshal(kv)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileOwnerStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil {
		return nil, false, fmt.Errorf("file store get %s: %w", key, err)
	}
	v, ok := kv[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (s *fileOwnerStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil {
		return fmt.Errorf("file store set %s: %w", key, err)
	}
	kv[key] = string(value)
	if err := s.write(kv); err != nil {
		return fmt.Errorf("file store set %s: %w", key, err)
	}
	return nil
}

func (s *fileOwnerStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, err := s.read()
	if err != nil {
		return fmt.Errorf("file store delete %s: %w", key, err)
	}
	if _, ok := kv[key]; !ok {
		return nil
	}
	delete(kv, key)
	if err := s.write(kv); err != nil {
		return fmt.Errorf("file store delete %s: %w", key, err)
	}
	return nil
}
