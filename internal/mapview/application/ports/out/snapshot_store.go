package out

import "context"

// KeyValueStore — локальное хранилище строк по ключу для одного владельца
type KeyValueStore interface {
	// Get возвращает значение; found == false, если ключа нет
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SnapshotStoreFactory выдает хранилище, привязанное к пользователю
type SnapshotStoreFactory interface {
	StoreFor(userID string) KeyValueStore
}
