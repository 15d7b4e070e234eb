package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"taxirn/internal/admin/application/ports/in"
	"taxirn/internal/admin/application/ports/out"
	"taxirn/internal/admin/domain"
	"taxirn/internal/model"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	cedulaRegex = regexp.MustCompile(`^([VEve]-?)?[0-9]{6,10}$`)
)

const minPasswordLength = 8

// CreateUserService реализует CreateUserUseCase
type CreateUserService struct {
	userRepo out.UserRepository
	urls     *storage.PublicURLs
	log      *logger.Logger
	cost     int
}

// NewCreateUserService создает новый сервис создания пользователя
func NewCreateUserService(userRepo out.UserRepository, urls *storage.PublicURLs, log *logger.Logger) *CreateUserService {
	return &CreateUserService{
		userRepo: userRepo,
		urls:     urls,
		log:      log,
		cost:     bcrypt.DefaultCost,
	}
}

// Execute создает нового пользователя через add_new_user
func (s *CreateUserService) Execute(ctx context.Context, input in.CreateUserInput) (*in.CreateUserOutput, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !emailRegex.MatchString(email) {
		return nil, domain.ErrInvalidEmail
	}

	fullname := strings.TrimSpace(input.Fullname)
	if fullname == "" {
		return nil, domain.ErrFullnameRequired
	}

	cedula := strings.ToUpper(strings.TrimSpace(input.Cedula))
	if cedula != "" && !cedulaRegex.MatchString(cedula) {
		return nil, domain.ErrInvalidCedula
	}

	role := input.Role
	if role == "" {
		role = model.RoleUser
	}
	if !model.IsValidRole(role) {
		return nil, domain.ErrInvalidRole
	}

	if len(input.Password) < minPasswordLength {
		return nil, domain.ErrPasswordTooShort
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		s.log.Error(logger.Entry{
			Action:  "hash_password_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.userRepo.Create(ctx, domain.NewUser{
		Email:        email,
		PasswordHash: string(passwordHash),
		Fullname:     fullname,
		Cedula:       cedula,
		Role:         role,
	})
	if err != nil {
		s.log.Error(logger.Entry{
			Action:  "create_user_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
			Additional: map[string]any{
				"email": email,
				"role":  role,
			},
		})
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info(logger.Entry{
		Action:  "user_created",
		Message: fmt.Sprintf("user %s created", email),
		UserID:  id,
		Additional: map[string]any{
			"role": role,
		},
	})

	return &in.CreateUserOutput{
		UserID:    id,
		Email:     email,
		Fullname:  fullname,
		Role:      role,
		AvatarURL: s.urls.AvatarURL("", fullname),
	}, nil
}
