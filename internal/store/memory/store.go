// Package memory provides an in-process identity store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
	"github.com/cloven/rbac-admin/internal/users"
)

var (
	_ rbac.Repository    = (*Store)(nil)
	_ rbac.UserDirectory = (*Store)(nil)
	_ users.Repository   = (*Store)(nil)
)

type permissionRow struct {
	id          int64
	resourceID  int64
	actionID    int64
	description string
	createdAt   time.Time
	updatedAt   time.Time
}

type roleRow struct {
	id          int64
	name        rbac.RoleName
	description string
	createdAt   time.Time
	updatedAt   time.Time
}

type userRow struct {
	id        int64
	fullName  string
	email     string
	hash      string
	roleID    int64
	createdAt time.Time
	updatedAt time.Time
}

// Store keeps every table in maps guarded by one lock. Foreign keys behave
// like the Postgres schema: deleting a resource or action drops its
// permissions, deleting a permission detaches it from roles, and a role
// referenced by users cannot be deleted.
type Store struct {
	mu sync.RWMutex

	seq         int64
	resources   map[int64]rbac.Resource
	actions     map[int64]rbac.Action
	permissions map[int64]permissionRow
	roles       map[int64]roleRow
	grants      map[int64]map[int64]struct{}
	users       map[int64]userRow

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		resources:   make(map[int64]rbac.Resource),
		actions:     make(map[int64]rbac.Action),
		permissions: make(map[int64]permissionRow),
		roles:       make(map[int64]roleRow),
		grants:      make(map[int64]map[int64]struct{}),
		users:       make(map[int64]userRow),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// Resources

func (s *Store) FindResourceByID(_ context.Context, id int64) (rbac.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.resources[id]
	if !ok {
		return rbac.Resource{}, shared.ErrNotFound
	}
	return res, nil
}

func (s *Store) FindResourceByName(_ context.Context, name string) (rbac.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, res := range s.resources {
		if res.Name == name {
			return res, nil
		}
	}
	return rbac.Resource{}, shared.ErrNotFound
}

func (s *Store) ListResources(_ context.Context) ([]rbac.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rbac.Resource, 0, len(s.resources))
	for _, res := range s.resources {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateResource(_ context.Context, name, description string) (rbac.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.resources {
		if res.Name == name {
			return rbac.Resource{}, shared.ErrAlreadyExists
		}
	}
	now := s.now()
	res := rbac.Resource{ID: s.nextID(), Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	s.resources[res.ID] = res
	return res, nil
}

func (s *Store) UpdateResource(_ context.Context, r rbac.Resource) (rbac.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.resources[r.ID]
	if !ok {
		return rbac.Resource{}, shared.ErrNotFound
	}
	for _, other := range s.resources {
		if other.ID != r.ID && other.Name == r.Name {
			return rbac.Resource{}, shared.ErrAlreadyExists
		}
	}
	cur.Name, cur.Description, cur.UpdatedAt = r.Name, r.Description, s.now()
	s.resources[r.ID] = cur
	return cur, nil
}

func (s *Store) DeleteResource(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.resources, id)
	for pid, p := range s.permissions {
		if p.resourceID == id {
			s.dropPermission(pid)
		}
	}
	return nil
}

// Actions

func (s *Store) FindActionByID(_ context.Context, id int64) (rbac.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	act, ok := s.actions[id]
	if !ok {
		return rbac.Action{}, shared.ErrNotFound
	}
	return act, nil
}

func (s *Store) FindActionByName(_ context.Context, name string) (rbac.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, act := range s.actions {
		if act.Name == name {
			return act, nil
		}
	}
	return rbac.Action{}, shared.ErrNotFound
}

func (s *Store) ListActions(_ context.Context) ([]rbac.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rbac.Action, 0, len(s.actions))
	for _, act := range s.actions {
		out = append(out, act)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateAction(_ context.Context, name, description string) (rbac.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, act := range s.actions {
		if act.Name == name {
			return rbac.Action{}, shared.ErrAlreadyExists
		}
	}
	now := s.now()
	act := rbac.Action{ID: s.nextID(), Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	s.actions[act.ID] = act
	return act, nil
}

func (s *Store) UpdateAction(_ context.Context, a rbac.Action) (rbac.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.actions[a.ID]
	if !ok {
		return rbac.Action{}, shared.ErrNotFound
	}
	for _, other := range s.actions {
		if other.ID != a.ID && other.Name == a.Name {
			return rbac.Action{}, shared.ErrAlreadyExists
		}
	}
	cur.Name, cur.Description, cur.UpdatedAt = a.Name, a.Description, s.now()
	s.actions[a.ID] = cur
	return cur, nil
}

func (s *Store) DeleteAction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.actions, id)
	for pid, p := range s.permissions {
		if p.actionID == id {
			s.dropPermission(pid)
		}
	}
	return nil
}

// Permissions

func (s *Store) permission(row permissionRow) rbac.Permission {
	return rbac.Permission{
		ID:          row.id,
		Resource:    s.resources[row.resourceID],
		Action:      s.actions[row.actionID],
		Description: row.description,
		CreatedAt:   row.createdAt,
		UpdatedAt:   row.updatedAt,
	}
}

func (s *Store) FindPermissionByID(_ context.Context, id int64) (rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.permissions[id]
	if !ok {
		return rbac.Permission{}, shared.ErrNotFound
	}
	return s.permission(row), nil
}

func (s *Store) FindPermissionByResourceAndAction(_ context.Context, resourceID, actionID int64) (rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.permissions {
		if row.resourceID == resourceID && row.actionID == actionID {
			return s.permission(row), nil
		}
	}
	return rbac.Permission{}, shared.ErrNotFound
}

func (s *Store) ListPermissions(_ context.Context) ([]rbac.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rbac.Permission, 0, len(s.permissions))
	for _, row := range s.permissions {
		out = append(out, s.permission(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreatePermission(_ context.Context, resource rbac.Resource, action rbac.Action, description string) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[resource.ID]; !ok {
		return rbac.Permission{}, shared.ErrNotFound
	}
	if _, ok := s.actions[action.ID]; !ok {
		return rbac.Permission{}, shared.ErrNotFound
	}
	for _, row := range s.permissions {
		if row.resourceID == resource.ID && row.actionID == action.ID {
			return rbac.Permission{}, shared.ErrAlreadyExists
		}
	}
	now := s.now()
	row := permissionRow{id: s.nextID(), resourceID: resource.ID, actionID: action.ID, description: description, createdAt: now, updatedAt: now}
	s.permissions[row.id] = row
	return s.permission(row), nil
}

func (s *Store) UpdatePermissionDescription(_ context.Context, id int64, description string) (rbac.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.permissions[id]
	if !ok {
		return rbac.Permission{}, shared.ErrNotFound
	}
	row.description, row.updatedAt = description, s.now()
	s.permissions[id] = row
	return s.permission(row), nil
}

func (s *Store) DeletePermission(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[id]; !ok {
		return shared.ErrNotFound
	}
	s.dropPermission(id)
	return nil
}

// dropPermission must be called with the write lock held.
func (s *Store) dropPermission(id int64) {
	delete(s.permissions, id)
	for _, granted := range s.grants {
		delete(granted, id)
	}
}

// Roles

func (s *Store) role(row roleRow) rbac.Role {
	perms := make(rbac.PermissionSet, len(s.grants[row.id]))
	for pid := range s.grants[row.id] {
		if p, ok := s.permissions[pid]; ok {
			perms[pid] = s.permission(p)
		}
	}
	return rbac.Role{
		ID:          row.id,
		Name:        row.name,
		Description: row.description,
		Permissions: perms,
		CreatedAt:   row.createdAt,
		UpdatedAt:   row.updatedAt,
	}
}

func (s *Store) FindRoleByID(_ context.Context, id int64) (rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	return s.role(row), nil
}

func (s *Store) FindRoleByName(_ context.Context, name rbac.RoleName) (rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.roles {
		if row.name == name {
			return s.role(row), nil
		}
	}
	return rbac.Role{}, shared.ErrNotFound
}

func (s *Store) ListRoles(_ context.Context) ([]rbac.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rbac.Role, 0, len(s.roles))
	for _, row := range s.roles {
		out = append(out, s.role(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateRole(_ context.Context, name rbac.RoleName, description string) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.roles {
		if row.name == name {
			return rbac.Role{}, shared.ErrAlreadyExists
		}
	}
	now := s.now()
	row := roleRow{id: s.nextID(), name: name, description: description, createdAt: now, updatedAt: now}
	s.roles[row.id] = row
	s.grants[row.id] = make(map[int64]struct{})
	return s.role(row), nil
}

func (s *Store) UpdateRole(_ context.Context, r rbac.Role) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.roles[r.ID]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	for _, other := range s.roles {
		if other.id != r.ID && other.name == r.Name {
			return rbac.Role{}, shared.ErrAlreadyExists
		}
	}
	row.name, row.description, row.updatedAt = r.Name, r.Description, s.now()
	s.roles[r.ID] = row
	return s.role(row), nil
}

func (s *Store) DeleteRole(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return shared.ErrNotFound
	}
	for _, u := range s.users {
		if u.roleID == id {
			return shared.ErrRoleInUse
		}
	}
	delete(s.roles, id)
	delete(s.grants, id)
	return nil
}

func (s *Store) RolePermissions(ctx context.Context, roleID int64) (rbac.PermissionSet, error) {
	role, err := s.FindRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return role.Permissions, nil
}

func (s *Store) AttachPermission(_ context.Context, roleID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	granted, ok := s.grants[roleID]
	if !ok {
		return shared.ErrNotFound
	}
	if _, ok := s.permissions[permissionID]; !ok {
		return shared.ErrNotFound
	}
	granted[permissionID] = struct{}{}
	return nil
}

func (s *Store) DetachPermission(_ context.Context, roleID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	granted, ok := s.grants[roleID]
	if !ok {
		return shared.ErrNotFound
	}
	delete(granted, permissionID)
	return nil
}

func (s *Store) RolesWithPermission(_ context.Context, permissionID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for roleID, granted := range s.grants {
		if _, ok := granted[permissionID]; ok {
			ids = append(ids, roleID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Users

func (s *Store) user(row userRow) users.User {
	return users.User{
		ID:           row.id,
		FullName:     row.fullName,
		Email:        row.email,
		PasswordHash: row.hash,
		Role:         s.role(s.roles[row.roleID]),
		CreatedAt:    row.createdAt,
		UpdatedAt:    row.updatedAt,
	}
}

func (s *Store) FindByEmail(_ context.Context, email string) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.users {
		if row.email == email {
			return s.user(row), nil
		}
	}
	return users.User{}, shared.ErrNotFound
}

func (s *Store) FindByID(_ context.Context, id int64) (users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.users[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return s.user(row), nil
}

func (s *Store) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.users {
		if row.email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Create(_ context.Context, in users.NewUser) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[in.RoleID]; !ok {
		return users.User{}, shared.ErrNotFound
	}
	for _, row := range s.users {
		if row.email == in.Email {
			return users.User{}, shared.ErrAlreadyExists
		}
	}
	now := s.now()
	row := userRow{id: s.nextID(), fullName: in.FullName, email: in.Email, hash: in.PasswordHash, roleID: in.RoleID, createdAt: now, updatedAt: now}
	s.users[row.id] = row
	return s.user(row), nil
}

func (s *Store) Update(_ context.Context, u users.User) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[u.ID]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	if _, ok := s.roles[u.Role.ID]; !ok {
		return users.User{}, shared.ErrNotFound
	}
	for _, other := range s.users {
		if other.id != u.ID && other.email == u.Email {
			return users.User{}, shared.ErrAlreadyExists
		}
	}
	row.fullName, row.email, row.hash, row.roleID, row.updatedAt = u.FullName, u.Email, u.PasswordHash, u.Role.ID, s.now()
	s.users[u.ID] = row
	return s.user(row), nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) List(_ context.Context) ([]users.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]users.User, 0, len(s.users))
	for _, row := range s.users {
		out = append(out, s.user(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountByRole(ctx context.Context, roleID int64) (int, error) {
	return s.CountUsersWithRole(ctx, roleID)
}

// Directory

func (s *Store) RoleIDForUser(_ context.Context, userID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.users[userID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return row.roleID, nil
}

func (s *Store) CountUsersWithRole(_ context.Context, roleID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.users {
		if row.roleID == roleID {
			n++
		}
	}
	return n, nil
}
