package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"taxirn/internal/admin/application/ports/in"
	"taxirn/internal/admin/domain"
	"taxirn/internal/shared/logger"
)

const (
	maxBodySize      = 1 << 20
	defaultPageLimit = 50
)

// HTTPHandler — REST поверх use case'ов провижининга пользователей
type HTTPHandler struct {
	create in.CreateUserUseCase
	list   in.ListUsersUseCase
	log    *logger.Logger
}

func NewHTTPHandler(create in.CreateUserUseCase, list in.ListUsersUseCase, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{create: create, list: list, log: log}
}

// RegisterRoutes: /health открыт, /admin/* только для роли ADMIN
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux, adminOnly func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /admin/users", adminOnly(h.createUser))
	mux.HandleFunc("GET /admin/users", adminOnly(h.listUsers))
}

func (h *HTTPHandler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "admin"})
}

// newUserRequest — тело POST /admin/users; пароль приходит открытым и
// хешируется в use case
type newUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Fullname string `json:"fullname"`
	Cedula   string `json:"cedula,omitempty"`
	Role     string `json:"role,omitempty"`
}

// missing возвращает имя первого пустого обязательного поля
func (r newUserRequest) missing() string {
	switch {
	case strings.TrimSpace(r.Email) == "":
		return "email"
	case r.Password == "":
		return "password"
	}
	return ""
}

func (r newUserRequest) input() in.CreateUserInput {
	return in.CreateUserInput{
		Email:    r.Email,
		Password: r.Password,
		Fullname: r.Fullname,
		Cedula:   r.Cedula,
		Role:     r.Role,
	}
}

func (h *HTTPHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req newUserRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		msg := "invalid request format"
		if errors.Is(err, io.EOF) {
			msg = "empty request body"
		}
		h.log.Warn(logger.Entry{
			Action:  "admin_create_user_bad_body",
			Message: err.Error(),
			UserID:  actor(r),
		})
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if field := req.missing(); field != "" {
		writeError(w, http.StatusBadRequest, field+" is required")
		return
	}

	created, err := h.create.Execute(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, "admin_create_user_failed", err)
		return
	}

	h.log.Info(logger.Entry{
		Action:     "admin_user_created",
		UserID:     actor(r),
		Additional: map[string]any{"new_user_id": created.UserID, "role": created.Role},
	})
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.list.Execute(r.Context(), listQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, r, "admin_list_users_failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// listQuery разбирает ?role&status&limit&offset; некорректные числа
// заменяются значениями по умолчанию
func listQuery(q url.Values) in.ListUsersInput {
	return in.ListUsersInput{
		Role:   q.Get("role"),
		Status: q.Get("status"),
		Limit:  intParam(q, "limit", defaultPageLimit, 1),
		Offset: intParam(q, "offset", 0, 0),
	}
}

func intParam(q url.Values, key string, def, floor int) int {
	v, err := strconv.Atoi(q.Get(key))
	if err != nil || v < floor {
		return def
	}
	return v
}

// adminErrors — доменные ошибки, которые видны клиенту как есть
var adminErrors = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrUserAlreadyExists, http.StatusConflict, "user already exists"},
	{domain.ErrInvalidEmail, http.StatusBadRequest, "invalid email format"},
	{domain.ErrInvalidRole, http.StatusBadRequest, "invalid role"},
	{domain.ErrInvalidStatus, http.StatusBadRequest, "invalid status"},
	{domain.ErrPasswordTooShort, http.StatusBadRequest, "password too short (minimum 8 characters)"},
	{domain.ErrFullnameRequired, http.StatusBadRequest, "fullname is required"},
	{domain.ErrInvalidCedula, http.StatusBadRequest, "invalid cedula"},
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	for _, e := range adminErrors {
		if errors.Is(err, e.err) {
			writeError(w, e.status, e.message)
			return
		}
	}
	h.log.Error(logger.Entry{
		Action:  action,
		Message: err.Error(),
		UserID:  actor(r),
		Error:   &logger.ErrObj{Msg: err.Error()},
	})
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error(logger.Entry{
			Action:  "admin_encode_response_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
}

// actor — ID администратора из AdminAuthMiddleware
func actor(r *http.Request) string {
	id, _ := r.Context().Value(ContextKeyUserID).(string)
	return id
}
