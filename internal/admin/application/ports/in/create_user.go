package in

import (
	"context"
)

// CreateUserInput — входные данные для создания пользователя
type CreateUserInput struct {
	Email    string
	Password string // plain text, будет захеширован
	Fullname string
	Cedula   string
	Role     string // USER | DRIVER | ADMIN, по умолчанию USER
}

// CreateUserOutput — результат создания пользователя
type CreateUserOutput struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Fullname  string `json:"fullname"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

// CreateUserUseCase — интерфейс use case создания пользователя
type CreateUserUseCase interface {
	Execute(ctx context.Context, input CreateUserInput) (*CreateUserOutput, error)
}
