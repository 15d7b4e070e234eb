package domain

import "errors"

var (
	// ErrPermissionDenied — пользователь/устройство не дали доступ к геолокации
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrServiceError — сбой транспорта (routing API, БД, брокер)
	ErrServiceError = errors.New("service error")

	// ErrRouteNotFound — routing API не вернул геометрию ни для одного маршрута
	ErrRouteNotFound = errors.New("route not found")

	// ErrParse — некорректная геометрия/координаты из БД
	ErrParse = errors.New("malformed geometry")

	// ErrValidation — базовая ошибка пользовательских проверок
	ErrValidation = errors.New("validation failed")

	// ErrNotFound — запись не найдена в загруженной коллекции
	ErrNotFound = errors.New("record not found")

	// ErrMapNotReady — карта еще не инициализирована
	ErrMapNotReady = errors.New("map is not ready")
)

// Ошибки валидации; errors.Is(err, ErrValidation) == true для каждой.
var (
	ErrInvalidCoordinates = validation("invalid coordinates")
	ErrInvalidRole        = validation("invalid point role")
	ErrNameRequired       = validation("name is required")
	ErrNoStartPoint       = validation("start point is not set")
	ErrMissingEndpoints   = validation("start and end points are required")
	ErrAlreadySaved       = validation("already saved")
	ErrNotSaved           = validation("record is not saved")
	ErrEmptyQuery         = validation("search query is empty")
)

type validationError struct{ msg string }

func validation(msg string) error { return &validationError{msg: msg} }

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }
