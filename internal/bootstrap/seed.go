// Package bootstrap seeds the identity store with the default catalog.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
	"github.com/cloven/rbac-admin/internal/users"
)

// Report counts what a seed run created. Zero values mean the store was
// already up to date.
type Report struct {
	Roles       int
	Resources   int
	Actions     int
	Permissions int
	Grants      int
	AdminUser   bool
}

// Seeder applies a Catalog through the domain services. Running it twice is a no-op.
type Seeder struct {
	Catalog Catalog
	RBAC    *rbac.Service
	Users   *users.Service
	Logger  *slog.Logger
}

// Run seeds roles, catalog entries, permissions, grants and the admin account.
func (s Seeder) Run(ctx context.Context, adminPassword string) (Report, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var rep Report

	for _, r := range s.Catalog.Roles {
		created, err := ignoreExisting(s.RBAC.CreateRole(ctx, r.Name, r.Description))
		if err != nil {
			return rep, fmt.Errorf("seed role %s: %w", r.Name, err)
		}
		rep.Roles += created
	}
	for _, r := range s.Catalog.Resources {
		created, err := ignoreExisting(s.RBAC.CreateResource(ctx, r.Name, r.Description))
		if err != nil {
			return rep, fmt.Errorf("seed resource %s: %w", r.Name, err)
		}
		rep.Resources += created
	}
	for _, a := range s.Catalog.Actions {
		created, err := ignoreExisting(s.RBAC.CreateAction(ctx, a.Name, a.Description))
		if err != nil {
			return rep, fmt.Errorf("seed action %s: %w", a.Name, err)
		}
		rep.Actions += created
	}
	for _, r := range s.Catalog.Resources {
		for _, a := range s.Catalog.Actions {
			desc := r.Name + ":" + a.Name + " permission"
			created, err := ignoreExisting(s.RBAC.CreatePermission(ctx, r.Name, a.Name, desc))
			if err != nil {
				return rep, fmt.Errorf("seed permission %s:%s: %w", r.Name, a.Name, err)
			}
			rep.Permissions += created
		}
	}

	perms, err := s.RBAC.ListPermissions(ctx)
	if err != nil {
		return rep, fmt.Errorf("seed grants: %w", err)
	}
	for _, entry := range s.Catalog.Roles {
		role, err := s.RBAC.GetRoleByName(ctx, entry.Name)
		if err != nil {
			return rep, fmt.Errorf("seed grants for %s: %w", entry.Name, err)
		}
		for _, p := range perms {
			if !entry.Matches(p) || role.Permissions.Contains(p.ID) {
				continue
			}
			if _, err := s.RBAC.AssignPermission(ctx, role.ID, p.ID); err != nil {
				return rep, fmt.Errorf("grant %s to %s: %w", p.Name(), entry.Name, err)
			}
			rep.Grants++
		}
	}

	if admin := s.Catalog.Admin; admin.Email != "" {
		_, err := s.Users.Create(ctx, users.CreateInput{
			FullName: admin.FullName,
			Email:    admin.Email,
			Password: adminPassword,
			Role:     rbac.RoleAdmin,
		})
		switch {
		case err == nil:
			rep.AdminUser = true
		case !errors.Is(err, shared.ErrAlreadyExists):
			return rep, fmt.Errorf("seed admin user: %w", err)
		}
	}

	logger.Info("seed complete",
		slog.Int("roles", rep.Roles),
		slog.Int("resources", rep.Resources),
		slog.Int("actions", rep.Actions),
		slog.Int("permissions", rep.Permissions),
		slog.Int("grants", rep.Grants),
		slog.Bool("admin_created", rep.AdminUser),
	)
	return rep, nil
}

func ignoreExisting[T any](_ T, err error) (int, error) {
	if err == nil {
		return 1, nil
	}
	if errors.Is(err, shared.ErrAlreadyExists) {
		return 0, nil
	}
	return 0, err
}
