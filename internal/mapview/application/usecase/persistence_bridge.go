package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/logger"
)

// PersistenceBridge сохраняет снапшот карты в локальное key-value хранилище
// под ключом domain.StorageKey
type PersistenceBridge struct {
	store out.KeyValueStore
	log   *logger.Logger
}

func NewPersistenceBridge(store out.KeyValueStore, log *logger.Logger) *PersistenceBridge {
	return &PersistenceBridge{store: store, log: log}
}

// Save перезаписывает снапшот целиком
func (b *PersistenceBridge) Save(ctx context.Context, snap domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := b.store.Set(ctx, domain.StorageKey, raw); err != nil {
		b.log.Error(logger.Entry{
			Action:  "snapshot_save_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load возвращает снапшот либо nil, если его нет или он поврежден
func (b *PersistenceBridge) Load(ctx context.Context) *domain.Snapshot {
	raw, found, err := b.store.Get(ctx, domain.StorageKey)
	if err != nil {
		b.log.Error(logger.Entry{
			Action:  "snapshot_load_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return nil
	}
	if !found || len(raw) == 0 {
		return nil
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		b.log.Warn(logger.Entry{
			Action:  "snapshot_malformed",
			Message: err.Error(),
		})
		return nil
	}
	if !validSnapshotPoint(snap.StartPos) || !validSnapshotPoint(snap.EndPos) {
		b.log.Warn(logger.Entry{
			Action:  "snapshot_malformed",
			Message: "endpoint out of range",
		})
		return nil
	}
	return &snap
}

func validSnapshotPoint(p *domain.Point) bool {
	return p == nil || p.Validate() == nil
}

// Clear удаляет снапшот
func (b *PersistenceBridge) Clear(ctx context.Context) error {
	if err := b.store.Delete(ctx, domain.StorageKey); err != nil {
		b.log.Error(logger.Entry{
			Action:  "snapshot_clear_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// Persist сохраняет текущее состояние; ошибка только логируется,
// операция пользователя от нее не откатывается
func (b *PersistenceBridge) Persist(ctx context.Context, state *MapState) {
	_ = b.Save(ctx, state.Snapshot())
}
