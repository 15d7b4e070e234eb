package domain

import (
	"time"

	"taxirn/internal/model"
)

// NewUser — пользователь для add_new_user; пароль уже захеширован
type NewUser struct {
	Email        string
	PasswordHash string
	Fullname     string
	Cedula       string
	Role         string
}

// UserSummary — строка списка пользователей
type UserSummary struct {
	ID        string
	Email     string
	Fullname  string
	Cedula    string
	Role      string
	Status    string
	Images    model.UserImages
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsValidStatus проверяет фильтр статуса
func IsValidStatus(status string) bool {
	switch status {
	case model.UserStatusActive, model.UserStatusInactive, model.UserStatusBanned:
		return true
	default:
		return false
	}
}
