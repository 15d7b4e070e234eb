package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taxirn/internal/admin/application/ports/out"
	"taxirn/internal/admin/domain"
	"taxirn/internal/shared/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserPgRepository — Postgres реализация UserRepository
type UserPgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

var _ out.UserRepository = (*UserPgRepository)(nil)

// NewUserPgRepository создает новый репозиторий пользователей
func NewUserPgRepository(pool *pgxpool.Pool, log *logger.Logger) *UserPgRepository {
	return &UserPgRepository{
		pool: pool,
		log:  log,
	}
}

// Create вызывает add_new_user
func (r *UserPgRepository) Create(ctx context.Context, user domain.NewUser) (string, error) {
	const query = `SELECT add_new_user($1, $2, $3, $4, $5)::text`

	var id string
	err := r.pool.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Fullname,
		user.Cedula,
		user.Role,
	).Scan(&id)
	if err != nil {
		// unique_violation по email
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" &&
			(strings.Contains(pgErr.ConstraintName, "email") || strings.Contains(pgErr.Detail, "email")) {
			return "", domain.ErrUserAlreadyExists
		}
		return "", fmt.Errorf("add_new_user: %w", err)
	}
	return id, nil
}

// ExistsByEmail проверяет, занят ли email
func (r *UserPgRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("query user by email: %w", err)
	}
	return exists, nil
}

// List возвращает пользователей, новые первыми
func (r *UserPgRepository) List(ctx context.Context, filters out.ListUsersFilters) ([]domain.UserSummary, int, error) {
	where, args := buildWhere(filters)

	countQuery := "SELECT COUNT(*) FROM users" + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	args = append(args, filters.Limit, filters.Offset)
	listQuery := fmt.Sprintf(`
		SELECT id::text, email, fullname, cedula, role, status, images, created_at, updated_at
		FROM users%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.UserSummary, error) {
		var u domain.UserSummary
		err := row.Scan(
			&u.ID,
			&u.Email,
			&u.Fullname,
			&u.Cedula,
			&u.Role,
			&u.Status,
			&u.Images,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		return u, err
	})
	if err != nil {
		r.log.Error(logger.Entry{
			Action:  "db_scan_users_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return nil, 0, fmt.Errorf("scan users: %w", err)
	}
	return users, total, nil
}

// buildWhere собирает WHERE по непустым фильтрам
func buildWhere(filters out.ListUsersFilters) (string, []any) {
	var conds []string
	var args []any
	if filters.Role != "" {
		args = append(args, filters.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
