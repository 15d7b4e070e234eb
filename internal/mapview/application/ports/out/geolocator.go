package out

import (
	"context"

	"taxirn/internal/mapview/domain"
)

// Permission — состояние разрешения на геолокацию
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
)

// Geolocator — источник текущей позиции устройства
type Geolocator interface {
	// CheckPermission возвращает текущее состояние без запроса пользователю
	CheckPermission(ctx context.Context) (Permission, error)

	// RequestPermission запрашивает разрешение
	RequestPermission(ctx context.Context) (Permission, error)

	// CurrentPosition возвращает позицию; domain.ErrPermissionDenied при отказе
	CurrentPosition(ctx context.Context) (domain.Point, error)
}
