package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/jessica-auth/internal/core/domain"
	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
)

// maxPasswordBytes is the longest password bcrypt can hash without truncation.
const maxPasswordBytes = 72

type UserService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	logger *slog.Logger
}

func NewUserService(repo ports.UserRepository, hasher ports.PasswordHasher, logger *slog.Logger) ports.UserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		logger: loggerOrDefault(logger),
	}
}

func (s *UserService) Register(ctx context.Context, input ports.RegisterInput) (*domain.User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if len(input.Password) > maxPasswordBytes {
		return nil, &domain.ValidationError{Fields: []domain.FieldError{
			{Field: "password", Message: fmt.Sprintf("must be at most %d bytes", maxPasswordBytes)},
		}}
	}

	taken, err := s.repo.UsernameExists(ctx, input.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}

	taken, err = s.repo.EmailExists(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, domain.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user, []string{domain.RoleUser}); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) || errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// Deactivate blocks future logins. Outstanding refresh tokens stop rotating
// because rotation re-checks the active flag.
func (s *UserService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	s.logger.Info("user deactivated", "user_id", id)
	return nil
}

func (s *UserService) AssignRole(ctx context.Context, id uuid.UUID, role string) error {
	if !domain.IsKnownRole(role) {
		return domain.ErrUnknownRole
	}
	if err := s.repo.AssignRole(ctx, id, role); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrUnknownRole) {
			return err
		}
		return fmt.Errorf("failed to assign role: %w", err)
	}
	s.logger.Info("role assigned", "user_id", id, "role", role)
	return nil
}

func (s *UserService) Roles(ctx context.Context, id uuid.UUID) ([]string, error) {
	roles, err := s.repo.RolesFor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	return roles, nil
}

func (s *UserService) BuildClaims(user *domain.User, roles []string) []domain.Claim {
	return domain.BuildClaims(user, roles)
}
