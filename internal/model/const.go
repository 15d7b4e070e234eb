package model

// ==== Roles ====
const (
	RoleAdmin  = "ADMIN"
	RoleUser   = "USER"
	RoleDriver = "DRIVER"
)

// ==== User Status ====
const (
	UserStatusActive   = "ACTIVE"
	UserStatusInactive = "INACTIVE"
	UserStatusBanned   = "BANNED"
)

// ==== Notification Type ====
const (
	NotifyPositive = "positive"
	NotifyNegative = "negative"
	NotifyWarning  = "warning"
	NotifyInfo     = "info"
)

// ==== Map Event Type ====
const (
	EventLocationSaved   = "LOCATION_SAVED"
	EventLocationDeleted = "LOCATION_DELETED"
	EventRouteSaved      = "ROUTE_SAVED"
	EventRouteDeleted    = "ROUTE_DELETED"
)

// IsValidRole проверяет роль пользователя
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleUser, RoleDriver:
		return true
	}
	return false
}
