package rbac

import "context"

// Repository defines the identity store operations the RBAC module needs.
// Lookups return shared.ErrNotFound on a miss; writes that hit a uniqueness
// constraint return shared.ErrAlreadyExists.
type Repository interface {
	FindResourceByID(ctx context.Context, id int64) (Resource, error)
	FindResourceByName(ctx context.Context, name string) (Resource, error)
	ListResources(ctx context.Context) ([]Resource, error)
	CreateResource(ctx context.Context, name, description string) (Resource, error)
	UpdateResource(ctx context.Context, r Resource) (Resource, error)
	DeleteResource(ctx context.Context, id int64) error

	FindActionByID(ctx context.Context, id int64) (Action, error)
	FindActionByName(ctx context.Context, name string) (Action, error)
	ListActions(ctx context.Context) ([]Action, error)
	CreateAction(ctx context.Context, name, description string) (Action, error)
	UpdateAction(ctx context.Context, a Action) (Action, error)
	DeleteAction(ctx context.Context, id int64) error

	FindPermissionByID(ctx context.Context, id int64) (Permission, error)
	FindPermissionByResourceAndAction(ctx context.Context, resourceID, actionID int64) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, resource Resource, action Action, description string) (Permission, error)
	UpdatePermissionDescription(ctx context.Context, id int64, description string) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error

	FindRoleByID(ctx context.Context, id int64) (Role, error)
	FindRoleByName(ctx context.Context, name RoleName) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name RoleName, description string) (Role, error)
	UpdateRole(ctx context.Context, r Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	RolePermissions(ctx context.Context, roleID int64) (PermissionSet, error)
	// AttachPermission is a no-op when the pair is already linked.
	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	// DetachPermission is a no-op when the pair is not linked.
	DetachPermission(ctx context.Context, roleID, permissionID int64) error
	// RolesWithPermission lists the IDs of roles currently holding the permission.
	RolesWithPermission(ctx context.Context, permissionID int64) ([]int64, error)
}

// UserDirectory resolves users to their role for authorization checks.
type UserDirectory interface {
	RoleIDForUser(ctx context.Context, userID int64) (int64, error)
	CountUsersWithRole(ctx context.Context, roleID int64) (int, error)
}
