package usecase

import (
	"context"
	"time"

	"taxirn/internal/admin/application/ports/in"
	"taxirn/internal/admin/application/ports/out"
	"taxirn/internal/admin/domain"
	"taxirn/internal/model"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/storage"
)

// ListUsersService реализует ListUsersUseCase
type ListUsersService struct {
	userRepo out.UserRepository
	urls     *storage.PublicURLs
	log      *logger.Logger
}

// NewListUsersService создает новый сервис получения списка пользователей
func NewListUsersService(userRepo out.UserRepository, urls *storage.PublicURLs, log *logger.Logger) *ListUsersService {
	return &ListUsersService{
		userRepo: userRepo,
		urls:     urls,
		log:      log,
	}
}

// Execute получает список пользователей с фильтрами
func (s *ListUsersService) Execute(ctx context.Context, input in.ListUsersInput) (*in.ListUsersOutput, error) {
	if input.Role != "" && !model.IsValidRole(input.Role) {
		return nil, domain.ErrInvalidRole
	}
	if input.Status != "" && !domain.IsValidStatus(input.Status) {
		return nil, domain.ErrInvalidStatus
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := max(input.Offset, 0)

	users, totalCount, err := s.userRepo.List(ctx, out.ListUsersFilters{
		Role:   input.Role,
		Status: input.Status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.log.Error(logger.Entry{
			Action:  "list_users_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return nil, err
	}

	userDTOs := make([]in.UserDTO, 0, len(users))
	for _, u := range users {
		dto := in.UserDTO{
			UserID:    u.ID,
			Email:     u.Email,
			Fullname:  u.Fullname,
			Cedula:    u.Cedula,
			Role:      u.Role,
			Status:    u.Status,
			AvatarURL: s.urls.AvatarURL(u.Images.Profile, u.Fullname),
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
			UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
		}
		if u.Role == model.RoleDriver {
			dto.VehicleURL = s.urls.VehicleURL(u.Images.Ground)
		}
		userDTOs = append(userDTOs, dto)
	}

	return &in.ListUsersOutput{
		Users:      userDTOs,
		TotalCount: totalCount,
		Limit:      limit,
		Offset:     offset,
	}, nil
}
