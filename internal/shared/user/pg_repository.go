package user

import (
	"context"
	"errors"
	"fmt"

	"taxirn/internal/model"
	"taxirn/internal/shared/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository — Postgres реализация Repository
type PgRepository struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewPgRepository(pool *pgxpool.Pool, log *logger.Logger) *PgRepository {
	return &PgRepository{pool: pool, log: log}
}

// FindByID находит пользователя по ID
func (r *PgRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	const query = `
		SELECT id, email, fullname, cedula, role, status, images, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var u model.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(
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
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		r.log.Error(logger.Entry{
			Action:  "db_find_user_failed",
			Message: err.Error(),
			UserID:  userID,
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return &u, nil
}
