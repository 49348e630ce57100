package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
)

type RegisterInput struct {
	Username  string `json:"username" validate:"required,min=3,max=100"`
	Email     string `json:"email" validate:"required,email,max=256"`
	FirstName string `json:"firstName" validate:"required,min=2,max=100"`
	LastName  string `json:"lastName" validate:"required,min=2,max=100"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	AssignRole(ctx context.Context, id uuid.UUID, role string) error
	Roles(ctx context.Context, id uuid.UUID) ([]string, error)
	BuildClaims(user *domain.User, roles []string) []domain.Claim
}
