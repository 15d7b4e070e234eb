package out

import (
	"context"

	"taxirn/internal/admin/domain"
)

// UserRepository — интерфейс репозитория для работы с пользователями
type UserRepository interface {
	// Create вызывает add_new_user и возвращает ID;
	// domain.ErrUserAlreadyExists при занятом email
	Create(ctx context.Context, user domain.NewUser) (string, error)

	// ExistsByEmail проверяет, занят ли email
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// List возвращает страницу пользователей и общее число по фильтрам
	List(ctx context.Context, filters ListUsersFilters) ([]domain.UserSummary, int, error)
}

// ListUsersFilters — фильтры для списка пользователей
type ListUsersFilters struct {
	Role   string
	Status string
	Limit  int
	Offset int
}
