package model

import "time"

// UserImages — ключи файлов в бакетах avatars/vehicles
type UserImages struct {
	Profile string `json:"profile,omitempty"`
	Ground  string `json:"ground,omitempty"`
}

type User struct {
	ID        string     `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	Fullname  string     `json:"fullname" db:"fullname"`
	Cedula    string     `json:"cedula" db:"cedula"`
	Role      string     `json:"role" db:"role"`
	Status    string     `json:"status" db:"status"`
	Images    UserImages `json:"images" db:"images"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActive — пользователь может работать с картой
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
