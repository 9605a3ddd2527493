package rbac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
	"github.com/cloven/rbac-admin/internal/store/memory"
	"github.com/cloven/rbac-admin/internal/users"
)

type fixture struct {
	store   *memory.Store
	service *rbac.Service
	roles   map[rbac.RoleName]rbac.Role
}

func newFixture(t *testing.T, cache rbac.PermissionCache) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	svc := rbac.NewService(store, store, cache, nil)
	roles := make(map[rbac.RoleName]rbac.Role)
	for _, name := range rbac.RoleNames() {
		role, err := svc.CreateRole(ctx, name, string(name)+" role")
		require.NoError(t, err)
		roles[name] = role
	}
	return fixture{store: store, service: svc, roles: roles}
}

func (f fixture) user(t *testing.T, email string, role rbac.RoleName) users.User {
	t.Helper()
	u, err := f.store.Create(context.Background(), users.NewUser{
		FullName:     "Test " + email,
		Email:        email,
		PasswordHash: "x",
		RoleID:       f.roles[role].ID,
	})
	require.NoError(t, err)
	return u
}

func TestServiceHasPermissionModeratorScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rbac.NewMemoryCache(0))

	_, err := f.service.CreateResource(ctx, "USER", "")
	require.NoError(t, err)
	_, err = f.service.CreateAction(ctx, "READ", "")
	require.NoError(t, err)
	perm, err := f.service.CreatePermission(ctx, "USER", "READ", "USER:READ permission")
	require.NoError(t, err)
	require.Equal(t, "USER:READ", perm.Name())

	_, err = f.service.AssignPermission(ctx, f.roles[rbac.RoleModerator].ID, perm.ID)
	require.NoError(t, err)

	moderator := f.user(t, "mod@example.com", rbac.RoleModerator)
	ok, err := f.service.HasPermission(ctx, moderator.ID, "USER", "READ")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.service.HasPermission(ctx, moderator.ID, "USER", "DELETE")
	require.NoError(t, err)
	require.False(t, ok)

	// Matching is case-sensitive.
	ok, err = f.service.HasPermission(ctx, moderator.ID, "user", "read")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServiceCreatePermissionTwiceFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for _, res := range []string{"USER", "ROLE"} {
		_, err := f.service.CreateResource(ctx, res, "")
		require.NoError(t, err)
	}
	for _, act := range []string{"READ", "DELETE"} {
		_, err := f.service.CreateAction(ctx, act, "")
		require.NoError(t, err)
	}
	for _, res := range []string{"USER", "ROLE"} {
		for _, act := range []string{"READ", "DELETE"} {
			_, err := f.service.CreatePermission(ctx, res, act, "")
			require.NoError(t, err)
			_, err = f.service.CreatePermission(ctx, res, act, "again")
			require.ErrorIs(t, err, shared.ErrAlreadyExists)
		}
	}
}

func TestServiceCreatePermissionUnknownParts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.service.CreateResource(ctx, "USER", "")
	require.NoError(t, err)

	_, err = f.service.CreatePermission(ctx, "USER", "READ", "")
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "action not found")

	_, err = f.service.CreatePermission(ctx, "ROLE", "READ", "")
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Contains(t, err.Error(), "resource not found")
}

func TestServiceAssignPermissionIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	perm := seedPermission(t, f.service, "USER", "READ")
	roleID := f.roles[rbac.RoleUser].ID

	role, err := f.service.AssignPermission(ctx, roleID, perm.ID)
	require.NoError(t, err)
	require.Len(t, role.Permissions, 1)

	role, err = f.service.AssignPermission(ctx, roleID, perm.ID)
	require.NoError(t, err)
	require.Len(t, role.Permissions, 1)

	role, err = f.service.RevokePermission(ctx, roleID, perm.ID)
	require.NoError(t, err)
	require.Empty(t, role.Permissions)

	role, err = f.service.RevokePermission(ctx, roleID, perm.ID)
	require.NoError(t, err)
	require.Empty(t, role.Permissions)
}

func TestServiceAssignPermissionMissingEntities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	perm := seedPermission(t, f.service, "USER", "READ")

	_, err := f.service.AssignPermission(ctx, 9999, perm.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.service.AssignPermission(ctx, f.roles[rbac.RoleUser].ID, 9999)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.service.RevokePermission(ctx, f.roles[rbac.RoleUser].ID, 9999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceHasPermissionTracksAssignRevokeSequence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rbac.NewMemoryCache(0))
	read := seedPermission(t, f.service, "USER", "READ")
	del := seedPermission(t, f.service, "ROLE", "DELETE")
	member := f.user(t, "member@example.com", rbac.RoleUser)
	roleID := f.roles[rbac.RoleUser].ID

	type step struct {
		assign bool
		perm   rbac.Permission
	}
	steps := []step{
		{true, read}, {true, del}, {false, read}, {true, read}, {true, read},
		{false, del}, {false, del}, {false, read}, {true, del},
	}
	expected := map[int64]bool{}
	for i, st := range steps {
		var err error
		if st.assign {
			_, err = f.service.AssignPermission(ctx, roleID, st.perm.ID)
		} else {
			_, err = f.service.RevokePermission(ctx, roleID, st.perm.ID)
		}
		require.NoError(t, err, "step %d", i)
		expected[st.perm.ID] = st.assign

		for _, p := range []rbac.Permission{read, del} {
			ok, err := f.service.HasPermission(ctx, member.ID, p.Resource.Name, p.Action.Name)
			require.NoError(t, err)
			require.Equal(t, expected[p.ID], ok, "step %d permission %s", i, p.Name())
		}
	}
}

func TestServiceDeleteRoleInUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	u := f.user(t, "holder@example.com", rbac.RoleModerator)

	err := f.service.DeleteRole(ctx, f.roles[rbac.RoleModerator].ID)
	require.ErrorIs(t, err, shared.ErrRoleInUse)

	require.NoError(t, f.store.Delete(ctx, u.ID))
	require.NoError(t, f.service.DeleteRole(ctx, f.roles[rbac.RoleModerator].ID))

	_, err = f.service.GetRole(ctx, f.roles[rbac.RoleModerator].ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, f.service.DeleteRole(ctx, f.roles[rbac.RoleModerator].ID), shared.ErrNotFound)
}

func TestServiceCreateRoleDuplicate(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.CreateRole(context.Background(), rbac.RoleAdmin, "dup")
	require.ErrorIs(t, err, shared.ErrAlreadyExists)

	_, err = f.service.CreateRole(context.Background(), rbac.RoleName("ROOT"), "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceUpdateRoleRenameConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	admin := rbac.RoleAdmin
	desc := "renamed"

	_, err := f.service.UpdateRole(ctx, f.roles[rbac.RoleUser].ID, rbac.RoleUpdate{Name: &admin})
	require.ErrorIs(t, err, shared.ErrAlreadyExists)

	role, err := f.service.UpdateRole(ctx, f.roles[rbac.RoleUser].ID, rbac.RoleUpdate{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, "renamed", role.Description)
	require.Equal(t, rbac.RoleUser, role.Name)
}

func TestServiceDeletePermissionDetachesFromRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rbac.NewMemoryCache(0))
	perm := seedPermission(t, f.service, "USER", "READ")
	admin := f.user(t, "admin@example.com", rbac.RoleAdmin)
	_, err := f.service.AssignPermission(ctx, f.roles[rbac.RoleAdmin].ID, perm.ID)
	require.NoError(t, err)

	ok, err := f.service.HasPermission(ctx, admin.ID, "USER", "READ")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.service.DeletePermission(ctx, perm.ID))
	ok, err = f.service.HasPermission(ctx, admin.ID, "USER", "READ")
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, f.service.DeletePermission(ctx, perm.ID), shared.ErrNotFound)
}

func TestServiceDeleteResourceCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rbac.NewMemoryCache(0))
	perm := seedPermission(t, f.service, "USER", "READ")
	admin := f.user(t, "admin@example.com", rbac.RoleAdmin)
	_, err := f.service.AssignPermission(ctx, f.roles[rbac.RoleAdmin].ID, perm.ID)
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteResource(ctx, perm.Resource.ID))

	_, err = f.service.GetPermission(ctx, perm.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	ok, err := f.service.HasPermission(ctx, admin.ID, "USER", "READ")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServiceRenameActionRefreshesCachedSets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rbac.NewMemoryCache(0))
	perm := seedPermission(t, f.service, "USER", "READ")
	admin := f.user(t, "admin@example.com", rbac.RoleAdmin)
	_, err := f.service.AssignPermission(ctx, f.roles[rbac.RoleAdmin].ID, perm.ID)
	require.NoError(t, err)

	ok, err := f.service.HasPermission(ctx, admin.ID, "USER", "READ")
	require.NoError(t, err)
	require.True(t, ok)

	name := "VIEW"
	_, err = f.service.UpdateAction(ctx, perm.Action.ID, &name, nil)
	require.NoError(t, err)

	ok, err = f.service.HasPermission(ctx, admin.ID, "USER", "VIEW")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.service.HasPermission(ctx, admin.ID, "USER", "READ")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServiceResourceValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.service.CreateResource(ctx, "   ", "")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.CreateResource(ctx, "USER", "")
	require.NoError(t, err)
	_, err = f.service.CreateResource(ctx, "USER", "")
	require.ErrorIs(t, err, shared.ErrAlreadyExists)

	_, err = f.service.GetResource(ctx, 424242)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceUpdatePermissionDescription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	perm := seedPermission(t, f.service, "USER", "READ")

	updated, err := f.service.UpdatePermissionDescription(ctx, perm.ID, "  read users ")
	require.NoError(t, err)
	require.Equal(t, "read users", updated.Description)
	require.Equal(t, perm.Name(), updated.Name())

	_, err = f.service.UpdatePermissionDescription(ctx, 9999, "x")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceEffectivePermissionsUnknownUser(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.service.EffectivePermissions(context.Background(), 31337)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func seedPermission(t *testing.T, svc *rbac.Service, resource, action string) rbac.Permission {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.CreateResource(ctx, resource, ""); err != nil {
		require.ErrorIs(t, err, shared.ErrAlreadyExists)
	}
	if _, err := svc.CreateAction(ctx, action, ""); err != nil {
		require.ErrorIs(t, err, shared.ErrAlreadyExists)
	}
	perm, err := svc.CreatePermission(ctx, resource, action, "")
	require.NoError(t, err)
	return perm
}
