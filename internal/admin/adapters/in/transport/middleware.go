package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"taxirn/internal/model"
	"taxirn/internal/shared/auth"
	"taxirn/internal/shared/logger"
)

type contextKey string

const (
	ContextKeyUserID    contextKey = "user_id"
	ContextKeyUserEmail contextKey = "user_email"
	ContextKeyUserRole  contextKey = "user_role"
)

// TokenValidator — проверка JWT (auth.JWTService)
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// AdminAuthMiddleware создает middleware для проверки JWT + роль ADMIN
func AdminAuthMiddleware(tokens TokenValidator, log *logger.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Warn(logger.Entry{
					Action:  "admin_auth_missing_header",
					Message: "missing authorization header",
				})
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			// "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Warn(logger.Entry{
					Action:  "admin_auth_invalid_format",
					Message: "invalid authorization header format",
				})
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := tokens.ValidateToken(parts[1])
			if err != nil {
				log.Warn(logger.Entry{
					Action:  "admin_jwt_validation_failed",
					Message: err.Error(),
				})
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if claims.Role != model.RoleAdmin {
				log.Warn(logger.Entry{
					Action:  "admin_auth_forbidden",
					Message: "insufficient permissions",
					UserID:  claims.UserID,
					Additional: map[string]any{
						"role": claims.Role,
					},
				})
				writeError(w, http.StatusForbidden, "admin role required")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.UserID)
			ctx = context.WithValue(ctx, ContextKeyUserEmail, claims.Email)
			ctx = context.WithValue(ctx, ContextKeyUserRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
