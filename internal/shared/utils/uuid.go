package utils

import (
	"strings"

	"github.com/google/uuid"
)

// TempIDPrefix — префикс id синтетических (несохраненных) записей
const TempIDPrefix = "temp-"

// NewUUID генерирует новый UUID v4
func NewUUID() string {
	return uuid.New().String()
}

// NewTempID генерирует id для записи, которой еще нет в БД
func NewTempID() string {
	return TempIDPrefix + uuid.New().String()
}

// IsTempID — true для id, выданных NewTempID (и для пустого id)
func IsTempID(id string) bool {
	return id == "" || strings.HasPrefix(id, TempIDPrefix)
}

// IsUUID проверяет, что строка — валидный UUID (id строки в БД)
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
