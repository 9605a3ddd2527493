package bootstrap_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cloven/rbac-admin/internal/auth"
	"github.com/cloven/rbac-admin/internal/bootstrap"
	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/store/memory"
	"github.com/cloven/rbac-admin/internal/users"
)

func newSeeder(t *testing.T) (bootstrap.Seeder, *memory.Store) {
	t.Helper()
	catalog, err := bootstrap.DefaultCatalog()
	require.NoError(t, err)
	store := memory.New()
	rbacSvc := rbac.NewService(store, store, nil, nil)
	usersSvc := users.NewService(store, rbacSvc, auth.NewBcryptHasher(bcrypt.MinCost), nil)
	return bootstrap.Seeder{Catalog: catalog, RBAC: rbacSvc, Users: usersSvc}, store
}

func TestSeedDefaultCatalog(t *testing.T) {
	seeder, store := newSeeder(t)
	ctx := context.Background()

	rep, err := seeder.Run(ctx, "admin123")
	require.NoError(t, err)
	require.Equal(t, bootstrap.Report{Roles: 3, Resources: 5, Actions: 5, Permissions: 25, Grants: 25 + 10 + 2, AdminUser: true}, rep)

	check := func(name rbac.RoleName, resource, action string, want bool) {
		t.Helper()
		role, err := seeder.RBAC.GetRoleByName(ctx, name)
		require.NoError(t, err)
		require.Equal(t, want, role.Permissions.Allows(resource, action), "%s %s:%s", name, resource, action)
	}
	check(rbac.RoleAdmin, "ACTION", "DELETE", true)
	check(rbac.RoleModerator, "ROLE", "LIST", true)
	check(rbac.RoleModerator, "ROLE", "UPDATE", false)
	check(rbac.RoleUser, "USER", "READ", true)
	check(rbac.RoleUser, "ROLE", "READ", false)

	admin, err := store.FindByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleAdmin, admin.Role.Name)
	require.True(t, auth.NewBcryptHasher(bcrypt.MinCost).Verify("admin123", admin.PasswordHash))

	role, err := seeder.RBAC.GetRoleByName(ctx, rbac.RoleModerator)
	require.NoError(t, err)
	require.Equal(t, "Moderator with limited administrative access", role.Description)
}

func TestSeedIsIdempotent(t *testing.T) {
	seeder, store := newSeeder(t)
	ctx := context.Background()

	_, err := seeder.Run(ctx, "admin123")
	require.NoError(t, err)
	rep, err := seeder.Run(ctx, "other-password")
	require.NoError(t, err)
	require.Equal(t, bootstrap.Report{}, rep)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	_, err := bootstrap.ParseCatalog([]byte("roles:\n  - name: ROOT\n"))
	require.Error(t, err)

	_, err = bootstrap.ParseCatalog([]byte("roles:\n  - name: USER\n    grants: [\"USER\"]\n"))
	require.Error(t, err)

	_, err = bootstrap.ParseCatalog([]byte("roles: ["))
	require.Error(t, err)
}
