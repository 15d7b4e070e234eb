package user

import (
	"context"
	"errors"

	"taxirn/internal/model"
)

var (
	// ErrUserNotFound пользователь не найден
	ErrUserNotFound = errors.New("user not found")

	// ErrUserInactive пользователь неактивен или забанен
	ErrUserInactive = errors.New("user is inactive")
)

// Repository — текущий пользователь для middleware map/admin сервисов
type Repository interface {
	// FindByID возвращает ErrUserNotFound если пользователя нет
	FindByID(ctx context.Context, userID string) (*model.User, error)
}
