package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"taxirn/internal/model"
	"taxirn/internal/shared/auth"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/user"
	"taxirn/internal/shared/utils"
)

type contextKey string

const (
	ContextKeyUser      contextKey = "user"
	ContextKeyRequestID contextKey = "request_id"
)

// TokenValidator — проверка JWT (auth.JWTService)
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// AuthMiddleware проверяет Bearer JWT и загружает активного пользователя
func AuthMiddleware(tokens TokenValidator, users user.Repository, log *logger.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = utils.NewUUID()
			}
			w.Header().Set("X-Request-ID", requestID)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			// "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := tokens.ValidateToken(parts[1])
			if err != nil {
				log.Warn(logger.Entry{
					Action:    "jwt_validation_failed",
					Message:   err.Error(),
					RequestID: requestID,
				})
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			u, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					respondError(w, http.StatusUnauthorized, "user not found")
					return
				}
				log.Error(logger.Entry{
					Action:    "auth_load_user_failed",
					Message:   err.Error(),
					RequestID: requestID,
					UserID:    claims.UserID,
					Error:     &logger.ErrObj{Msg: err.Error()},
				})
				respondError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !u.IsActive() {
				log.Warn(logger.Entry{
					Action:     "auth_user_inactive",
					RequestID:  requestID,
					UserID:     u.ID,
					Additional: map[string]any{"status": u.Status},
				})
				respondError(w, http.StatusForbidden, "user is not active")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, u)
			ctx = context.WithValue(ctx, ContextKeyRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

// UserFromContext — пользователь, загруженный AuthMiddleware
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(ContextKeyUser).(*model.User)
	return u, ok && u != nil
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack нужен апгрейду WebSocket
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// LoggingMiddleware пишет по строке лога на запрос
func LoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := logger.Entry{
				Action:    "http_request",
				Message:   r.Method + " " + r.URL.Path,
				RequestID: w.Header().Get("X-Request-ID"),
				Additional: map[string]any{
					"status":      rec.status,
					"duration_ms": time.Since(start).Milliseconds(),
				},
			}
			if rec.status >= http.StatusInternalServerError {
				log.Warn(entry)
				return
			}
			log.Debug(entry)
		})
	}
}
