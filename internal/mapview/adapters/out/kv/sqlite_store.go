package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"taxirn/internal/mapview/application/ports/out"

	_ "modernc.org/sqlite"
)

// SQLiteStore хранит снапшоты карт всех пользователей в одном sqlite файле
type SQLiteStore struct {
	db *sql.DB
}

var _ out.SnapshotStoreFactory = (*SQLiteStore)(nil)

// OpenSQLite открывает (и при необходимости создает) базу по пути path.
// ":memory:" — база в памяти, для тестов.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// один writer; для :memory: еще и одна общая база на пул
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS map_state (
		owner      TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (owner, key)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// StoreFor возвращает хранилище, ограниченное ключами пользователя
func (s *SQLiteStore) StoreFor(userID string) out.KeyValueStore {
	return &sqliteOwnerStore{db: s.db, owner: userID}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteOwnerStore struct {
	db    *sql.DB
	owner string
}

func (s *sqliteOwnerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM map_state WHERE owner = ? AND key = ?`, s.owner, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *sqliteOwnerStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO map_state (owner, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (owner, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, s.owner, key, value)
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

func (s *sqliteOwnerStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM map_state WHERE owner = ? AND key = ?`, s.owner, key); err != nil {
		return fmt.Errorf("sqlite delete %s: %w", key, err)
	}
	return nil
}
