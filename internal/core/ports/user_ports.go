package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
)

// UserRepository lookups return (nil, nil) when no row matches. Username and
// email comparisons are case-insensitive.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *domain.User, roles []string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	RolesFor(ctx context.Context, id uuid.UUID) ([]string, error)
	AssignRole(ctx context.Context, id uuid.UUID, role string) error
}
