package users_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
	"github.com/cloven/rbac-admin/internal/store/memory"
	"github.com/cloven/rbac-admin/internal/users"
)

type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

type env struct {
	store   *memory.Store
	rbac    *rbac.Service
	service *users.Service
}

func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	rbacSvc := rbac.NewService(store, store, nil, nil)
	for _, name := range rbac.RoleNames() {
		_, err := rbacSvc.CreateRole(ctx, name, "")
		require.NoError(t, err)
	}
	_, err := rbacSvc.CreateResource(ctx, shared.ResourceUser, "")
	require.NoError(t, err)
	for _, act := range shared.CoreActions() {
		_, err := rbacSvc.CreateAction(ctx, act, "")
		require.NoError(t, err)
		perm, err := rbacSvc.CreatePermission(ctx, shared.ResourceUser, act, "")
		require.NoError(t, err)
		admin, err := rbacSvc.GetRoleByName(ctx, rbac.RoleAdmin)
		require.NoError(t, err)
		_, err = rbacSvc.AssignPermission(ctx, admin.ID, perm.ID)
		require.NoError(t, err)
	}
	return env{store: store, rbac: rbacSvc, service: users.NewService(store, rbacSvc, plainHasher{}, nil)}
}

func TestServiceCreateDefaultsRole(t *testing.T) {
	e := newEnv(t)
	u, err := e.service.Create(context.Background(), users.CreateInput{FullName: " Bob ", Email: " Bob@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "Bob", u.FullName)
	require.Equal(t, "bob@example.com", u.Email)
	require.Equal(t, rbac.RoleUser, u.Role.Name)
	require.Equal(t, "hashed:secret1", u.PasswordHash)
}

func TestServiceCreateDuplicateEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.service.Create(ctx, users.CreateInput{FullName: "Bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = e.service.Create(ctx, users.CreateInput{FullName: "Bob", Email: "bob@example.com", Password: "secret1", Role: rbac.RoleAdmin})
	require.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestServiceUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bob, err := e.service.Create(ctx, users.CreateInput{FullName: "Bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = e.service.Create(ctx, users.CreateInput{FullName: "Carol", Email: "carol@example.com", Password: "secret1"})
	require.NoError(t, err)

	taken := "carol@example.com"
	_, err = e.service.Update(ctx, bob.ID, users.UpdateInput{Email: &taken})
	require.ErrorIs(t, err, shared.ErrAlreadyExists)

	name, password, role := "Robert", "newsecret", rbac.RoleModerator
	updated, err := e.service.Update(ctx, bob.ID, users.UpdateInput{FullName: &name, Password: &password, Role: &role})
	require.NoError(t, err)
	require.Equal(t, "Robert", updated.FullName)
	require.Equal(t, "hashed:newsecret", updated.PasswordHash)
	require.Equal(t, rbac.RoleModerator, updated.Role.Name)
	require.Equal(t, "bob@example.com", updated.Email)

	_, err = e.service.Update(ctx, 4242, users.UpdateInput{FullName: &name})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bob, err := e.service.Create(ctx, users.CreateInput{FullName: "Bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, e.service.Delete(ctx, bob.ID))
	err = e.service.Delete(ctx, bob.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.True(t, strings.Contains(err.Error(), "user not found"))
}

func TestServiceCheckPermission(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin, err := e.service.Create(ctx, users.CreateInput{FullName: "Admin", Email: "admin@example.com", Password: "x", Role: rbac.RoleAdmin})
	require.NoError(t, err)
	member, err := e.service.Create(ctx, users.CreateInput{FullName: "Member", Email: "member@example.com", Password: "x"})
	require.NoError(t, err)

	ok, err := e.service.CheckPermission(ctx, admin.ID, shared.ResourceUser, shared.ActionDelete)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.service.CheckPermission(ctx, member.ID, shared.ResourceUser, shared.ActionDelete)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = e.service.CheckPermission(ctx, 999, shared.ResourceUser, shared.ActionRead)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
