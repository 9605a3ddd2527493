package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
)

// PasswordHasher hashes plaintext secrets for storage.
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// Authorizer resolves roles and capability checks.
type Authorizer interface {
	GetRoleByName(ctx context.Context, name rbac.RoleName) (rbac.Role, error)
	HasPermission(ctx context.Context, userID int64, resource, action string) (bool, error)
}

// Service handles user business logic.
type Service struct {
	repo   Repository
	authz  Authorizer
	hasher PasswordHasher
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo Repository, authz Authorizer, hasher PasswordHasher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authz, hasher: hasher, logger: logger}
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return User{}, shared.Errorf(shared.ErrNotFound, "user not found with id: %d", id)
		}
		return User{}, err
	}
	return user, nil
}

// Create registers an account with an explicit role. An empty role means the default role.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	if in.Role == "" {
		in.Role = rbac.DefaultRole
	}
	role, err := s.authz.GetRoleByName(ctx, in.Role)
	if err != nil {
		return User{}, err
	}
	email := NormalizeEmail(in.Email)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, NewUser{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        email,
		PasswordHash: hash,
		RoleID:       role.ID,
	})
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return User{}, emailTaken(email)
		}
		return User{}, err
	}
	s.logger.Info("user created", slog.Int64("user_id", user.ID), slog.String("role", role.Name.String()))
	return user, nil
}

// Update applies the non-nil fields of in to the user.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email); err != nil {
				return User{}, err
			}
			user.Email = email
		}
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if in.Role != nil {
		role, err := s.authz.GetRoleByName(ctx, *in.Role)
		if err != nil {
			return User{}, err
		}
		user.Role = role
	}
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return User{}, emailTaken(user.Email)
		}
		return User{}, err
	}
	return updated, nil
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Errorf(shared.ErrNotFound, "user not found with id: %d", id)
		}
		return err
	}
	return nil
}

// CheckPermission reports whether the user's role grants action on resource.
func (s *Service) CheckPermission(ctx context.Context, userID int64, resource, action string) (bool, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return false, err
	}
	return s.authz.HasPermission(ctx, userID, resource, action)
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	taken, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return emailTaken(email)
	}
	return nil
}

func emailTaken(email string) error {
	return shared.Errorf(shared.ErrAlreadyExists, "email already in use: %s", email)
}

// NormalizeEmail canonicalizes an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
