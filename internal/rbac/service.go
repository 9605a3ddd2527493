package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/cloven/rbac-admin/internal/shared"
)

// Service orchestrates the permission catalog and the role/permission graph.
type Service struct {
	repo      Repository
	directory UserDirectory
	cache     PermissionCache
	logger    *slog.Logger
	loads     singleflight.Group

	// genMu guards generations and orders cache writes against invalidation.
	genMu       sync.Mutex
	generations map[int64]uint64
}

// NewService constructs a Service. A nil cache disables caching.
func NewService(repo Repository, directory UserDirectory, cache PermissionCache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, directory: directory, cache: cache, logger: logger, generations: make(map[int64]uint64)}
}

// ListResources returns all resources ordered by name.
func (s *Service) ListResources(ctx context.Context) ([]Resource, error) {
	return s.repo.ListResources(ctx)
}

// GetResource fetches a resource by ID.
func (s *Service) GetResource(ctx context.Context, id int64) (Resource, error) {
	res, err := s.repo.FindResourceByID(ctx, id)
	if err != nil {
		return Resource{}, describe(err, "resource not found with id: %d", id)
	}
	return res, nil
}

// CreateResource inserts a resource with a unique name.
func (s *Service) CreateResource(ctx context.Context, name, description string) (Resource, error) {
	name, err := requireName("resource", name)
	if err != nil {
		return Resource{}, err
	}
	if _, err := s.repo.FindResourceByName(ctx, name); err == nil {
		return Resource{}, shared.Errorf(shared.ErrAlreadyExists, "resource already exists with name: %s", name)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Resource{}, err
	}
	res, err := s.repo.CreateResource(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Resource{}, describe(err, "resource already exists with name: %s", name)
	}
	return res, nil
}

// UpdateResource changes name and/or description. Nil fields are left untouched.
func (s *Service) UpdateResource(ctx context.Context, id int64, name, description *string) (Resource, error) {
	res, err := s.GetResource(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	renamed := false
	if name != nil {
		newName, err := requireName("resource", *name)
		if err != nil {
			return Resource{}, err
		}
		if newName != res.Name {
			if _, err := s.repo.FindResourceByName(ctx, newName); err == nil {
				return Resource{}, shared.Errorf(shared.ErrAlreadyExists, "resource already exists with name: %s", newName)
			} else if !errors.Is(err, shared.ErrNotFound) {
				return Resource{}, err
			}
			res.Name = newName
			renamed = true
		}
	}
	if description != nil {
		res.Description = strings.TrimSpace(*description)
	}
	updated, err := s.repo.UpdateResource(ctx, res)
	if err != nil {
		return Resource{}, describe(err, "resource already exists with name: %s", res.Name)
	}
	if renamed {
		s.invalidateAll(ctx)
	}
	return updated, nil
}

// DeleteResource removes a resource and, through the store, its permissions.
func (s *Service) DeleteResource(ctx context.Context, id int64) error {
	if err := s.repo.DeleteResource(ctx, id); err != nil {
		return describe(err, "resource not found with id: %d", id)
	}
	s.invalidateAll(ctx)
	return nil
}

// ListActions returns all actions ordered by name.
func (s *Service) ListActions(ctx context.Context) ([]Action, error) {
	return s.repo.ListActions(ctx)
}

// GetAction fetches an action by ID.
func (s *Service) GetAction(ctx context.Context, id int64) (Action, error) {
	act, err := s.repo.FindActionByID(ctx, id)
	if err != nil {
		return Action{}, describe(err, "action not found with id: %d", id)
	}
	return act, nil
}

// CreateAction inserts an action with a unique name.
func (s *Service) CreateAction(ctx context.Context, name, description string) (Action, error) {
	name, err := requireName("action", name)
	if err != nil {
		return Action{}, err
	}
	if _, err := s.repo.FindActionByName(ctx, name); err == nil {
		return Action{}, shared.Errorf(shared.ErrAlreadyExists, "action already exists with name: %s", name)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Action{}, err
	}
	act, err := s.repo.CreateAction(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Action{}, describe(err, "action already exists with name: %s", name)
	}
	return act, nil
}

// UpdateAction changes name and/or description. Nil fields are left untouched.
func (s *Service) UpdateAction(ctx context.Context, id int64, name, description *string) (Action, error) {
	act, err := s.GetAction(ctx, id)
	if err != nil {
		return Action{}, err
	}
	renamed := false
	if name != nil {
		newName, err := requireName("action", *name)
		if err != nil {
			return Action{}, err
		}
		if newName != act.Name {
			if _, err := s.repo.FindActionByName(ctx, newName); err == nil {
				return Action{}, shared.Errorf(shared.ErrAlreadyExists, "action already exists with name: %s", newName)
			} else if !errors.Is(err, shared.ErrNotFound) {
				return Action{}, err
			}
			act.Name = newName
			renamed = true
		}
	}
	if description != nil {
		act.Description = strings.TrimSpace(*description)
	}
	updated, err := s.repo.UpdateAction(ctx, act)
	if err != nil {
		return Action{}, describe(err, "action already exists with name: %s", act.Name)
	}
	if renamed {
		s.invalidateAll(ctx)
	}
	return updated, nil
}

// DeleteAction removes an action and, through the store, its permissions.
func (s *Service) DeleteAction(ctx context.Context, id int64) error {
	if err := s.repo.DeleteAction(ctx, id); err != nil {
		return describe(err, "action not found with id: %d", id)
	}
	s.invalidateAll(ctx)
	return nil
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// GetPermission fetches a permission by ID.
func (s *Service) GetPermission(ctx context.Context, id int64) (Permission, error) {
	perm, err := s.repo.FindPermissionByID(ctx, id)
	if err != nil {
		return Permission{}, describe(err, "permission not found with id: %d", id)
	}
	return perm, nil
}

// CreatePermission pairs an existing resource with an existing action.
// At most one permission may exist per pair.
func (s *Service) CreatePermission(ctx context.Context, resourceName, actionName, description string) (Permission, error) {
	res, err := s.repo.FindResourceByName(ctx, resourceName)
	if err != nil {
		return Permission{}, describe(err, "resource not found with name: %s", resourceName)
	}
	act, err := s.repo.FindActionByName(ctx, actionName)
	if err != nil {
		return Permission{}, describe(err, "action not found with name: %s", actionName)
	}
	duplicate := shared.Errorf(shared.ErrAlreadyExists, "permission already exists for resource '%s' and action '%s'", resourceName, actionName)
	if _, err := s.repo.FindPermissionByResourceAndAction(ctx, res.ID, act.ID); err == nil {
		return Permission{}, duplicate
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Permission{}, err
	}
	perm, err := s.repo.CreatePermission(ctx, res, act, strings.TrimSpace(description))
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return Permission{}, duplicate
		}
		return Permission{}, err
	}
	return perm, nil
}

// UpdatePermissionDescription changes the only mutable field of a permission.
func (s *Service) UpdatePermissionDescription(ctx context.Context, id int64, description string) (Permission, error) {
	perm, err := s.repo.UpdatePermissionDescription(ctx, id, strings.TrimSpace(description))
	if err != nil {
		return Permission{}, describe(err, "permission not found with id: %d", id)
	}
	roleIDs, err := s.repo.RolesWithPermission(ctx, id)
	if err == nil {
		s.invalidate(ctx, roleIDs...)
	}
	return perm, nil
}

// DeletePermission removes a permission and detaches it from every role.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	if _, err := s.GetPermission(ctx, id); err != nil {
		return err
	}
	roleIDs, err := s.repo.RolesWithPermission(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return describe(err, "permission not found with id: %d", id)
	}
	s.invalidate(ctx, roleIDs...)
	return nil
}

// ListRoles returns all roles with their permission sets.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := s.repo.FindRoleByID(ctx, id)
	if err != nil {
		return Role{}, describe(err, "role not found with id: %d", id)
	}
	return role, nil
}

// GetRoleByName fetches a role by its enumerated name.
func (s *Service) GetRoleByName(ctx context.Context, name RoleName) (Role, error) {
	role, err := s.repo.FindRoleByName(ctx, name)
	if err != nil {
		return Role{}, describe(err, "role not found with name: %s", name)
	}
	return role, nil
}

// CreateRole inserts a role. Each enumerated name may exist once.
func (s *Service) CreateRole(ctx context.Context, name RoleName, description string) (Role, error) {
	if !name.Valid() {
		return Role{}, shared.Errorf(shared.ErrValidation, "invalid role name %q", name)
	}
	if _, err := s.repo.FindRoleByName(ctx, name); err == nil {
		return Role{}, shared.Errorf(shared.ErrAlreadyExists, "role already exists with name: %s", name)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Role{}, err
	}
	role, err := s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, describe(err, "role already exists with name: %s", name)
	}
	return role, nil
}

// RoleUpdate carries optional role changes.
type RoleUpdate struct {
	Name        *RoleName
	Description *string
}

// UpdateRole renames and/or redescribes a role.
func (s *Service) UpdateRole(ctx context.Context, id int64, upd RoleUpdate) (Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if upd.Name != nil && *upd.Name != role.Name {
		if !upd.Name.Valid() {
			return Role{}, shared.Errorf(shared.ErrValidation, "invalid role name %q", *upd.Name)
		}
		if _, err := s.repo.FindRoleByName(ctx, *upd.Name); err == nil {
			return Role{}, shared.Errorf(shared.ErrAlreadyExists, "role already exists with name: %s", *upd.Name)
		} else if !errors.Is(err, shared.ErrNotFound) {
			return Role{}, err
		}
		role.Name = *upd.Name
	}
	if upd.Description != nil {
		role.Description = strings.TrimSpace(*upd.Description)
	}
	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, describe(err, "role already exists with name: %s", role.Name)
	}
	return updated, nil
}

// DeleteRole removes a role. Roles still assigned to users are rejected.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.directory.CountUsersWithRole(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return shared.Errorf(shared.ErrRoleInUse, "role %s is assigned to %d user(s)", role.Name, count)
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return describe(err, "role not found with id: %d", id)
	}
	s.invalidate(ctx, id)
	return nil
}

// AssignPermission adds a permission to a role. Assigning a permission the
// role already holds leaves the set unchanged.
func (s *Service) AssignPermission(ctx context.Context, roleID, permissionID int64) (Role, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return Role{}, err
	}
	if _, err := s.GetPermission(ctx, permissionID); err != nil {
		return Role{}, err
	}
	if err := s.repo.AttachPermission(ctx, roleID, permissionID); err != nil {
		return Role{}, fmt.Errorf("rbac: attach permission: %w", err)
	}
	s.invalidate(ctx, roleID)
	return s.GetRole(ctx, roleID)
}

// RevokePermission removes a permission from a role. Revoking a permission
// the role does not hold leaves the set unchanged.
func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID int64) (Role, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return Role{}, err
	}
	if _, err := s.GetPermission(ctx, permissionID); err != nil {
		return Role{}, err
	}
	if err := s.repo.DetachPermission(ctx, roleID, permissionID); err != nil {
		return Role{}, fmt.Errorf("rbac: detach permission: %w", err)
	}
	s.invalidate(ctx, roleID)
	return s.GetRole(ctx, roleID)
}

// RolePermissions returns the permission set of a role, consulting the cache first.
func (s *Service) RolePermissions(ctx context.Context, roleID int64) (PermissionSet, error) {
	if perms, ok, err := s.cache.Get(ctx, roleID); err != nil {
		s.logger.Warn("rbac cache get", slog.Int64("role_id", roleID), slog.Any("error", err))
	} else if ok {
		return perms, nil
	}
	// The shared load outlives any single caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.loads.Do(loadKey(roleID), func() (any, error) {
		gen := s.generation(roleID)
		perms, err := s.repo.RolePermissions(loadCtx, roleID)
		if err != nil {
			return nil, err
		}
		s.storeIfCurrent(loadCtx, roleID, gen, perms)
		return perms, nil
	})
	if err != nil {
		return nil, describe(err, "role not found with id: %d", roleID)
	}
	return clonePermissions(v.(PermissionSet)), nil
}

// EffectivePermissions returns the permission set a user holds through their role.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	roleID, err := s.directory.RoleIDForUser(ctx, userID)
	if err != nil {
		return nil, describe(err, "user not found with id: %d", userID)
	}
	return s.RolePermissions(ctx, roleID)
}

// HasPermission reports whether the user may perform action on resource.
func (s *Service) HasPermission(ctx context.Context, userID int64, resource, action string) (bool, error) {
	perms, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return perms.Allows(resource, action), nil
}

func (s *Service) generation(roleID int64) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[roleID]
}

// storeIfCurrent caches perms unless the role was invalidated after gen was read.
func (s *Service) storeIfCurrent(ctx context.Context, roleID int64, gen uint64, perms PermissionSet) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[roleID] != gen {
		return
	}
	if err := s.cache.Set(ctx, roleID, perms); err != nil {
		s.logger.Warn("rbac cache set", slog.Int64("role_id", roleID), slog.Any("error", err))
	}
}

// invalidate bumps the roles' generations before dropping their entries, so a
// load that read the store earlier cannot write its result back.
func (s *Service) invalidate(ctx context.Context, roleIDs ...int64) {
	s.genMu.Lock()
	for _, id := range roleIDs {
		s.generations[id]++
	}
	s.genMu.Unlock()
	for _, id := range roleIDs {
		s.loads.Forget(loadKey(id))
	}
	if err := s.cache.Delete(ctx, roleIDs...); err != nil {
		s.logger.Warn("rbac cache invalidate", slog.Any("error", err))
	}
}

func loadKey(roleID int64) string {
	return strconv.FormatInt(roleID, 10)
}

func (s *Service) invalidateAll(ctx context.Context) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		s.logger.Warn("rbac cache invalidate all", slog.Any("error", err))
		return
	}
	ids := make([]int64, len(roles))
	for i, r := range roles {
		ids[i] = r.ID
	}
	s.invalidate(ctx, ids...)
}

func requireName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", shared.Errorf(shared.ErrValidation, "%s name is required", kind)
	}
	return name, nil
}

// describe replaces a bare store sentinel with a client-facing message of the same kind.
func describe(err error, format string, args ...any) error {
	var domainErr *shared.Error
	if errors.As(err, &domainErr) {
		return err
	}
	for _, kind := range []error{shared.ErrNotFound, shared.ErrAlreadyExists} {
		if errors.Is(err, kind) {
			return shared.Errorf(kind, format, args...)
		}
	}
	return err
}
