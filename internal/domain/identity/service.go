package identity

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/platform/apperr"
)

var (
	ErrUserNotFound = apperr.New(apperr.ErrNotFound, "user not found")
	ErrEmailTaken   = apperr.New(apperr.ErrConflict, "an account with this email already exists")
)

type Service struct {
	users UserRepository
}

func NewService(users UserRepository) *Service {
	return &Service{users: users}
}

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	if u.Name == "" {
		return apperr.Invalid("name is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return apperr.Invalid("email is invalid")
	}
	if !u.Role.Valid() {
		return apperr.Newf(apperr.ErrValidation, "unknown role %q", u.Role)
	}
	if err := s.users.Create(ctx, u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, email)
}
