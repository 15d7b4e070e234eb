package db_conn

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"taxirn/internal/shared/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationNames возвращает имена *.sql файлов в порядке применения
func MigrationNames(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Migrate применяет все миграции в лексикографическом порядке.
// Каждый файл выполняется в своей транзакции, поэтому BEGIN/COMMIT внутри SQL запрещены.
// Миграции идемпотентны (IF NOT EXISTS / CREATE OR REPLACE).
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	names, err := MigrationNames(MigrationsFS)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	for _, name := range names {
		sqlb, err := MigrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, string(sqlb)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit %s failed: %w", name, err)
		}
		log.Debug(logger.Entry{Action: "migration_applied", Message: name})
	}

	log.Info(logger.Entry{
		Action:     "db_migrated",
		Message:    "migrations applied",
		Additional: map[string]any{"count": len(names)},
	})
	return nil
}
