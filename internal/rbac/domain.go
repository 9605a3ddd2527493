package rbac

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/cloven/rbac-admin/internal/shared"
)

// RoleName enumerates the roles a user may hold.
type RoleName string

const (
	RoleAdmin     RoleName = "ADMIN"
	RoleModerator RoleName = "MODERATOR"
	RoleUser      RoleName = "USER"
)

// DefaultRole is assigned to self-registered users.
const DefaultRole = RoleUser

// RoleNames returns every valid role name.
func RoleNames() []RoleName {
	return []RoleName{RoleAdmin, RoleModerator, RoleUser}
}

// ParseRoleName validates a role name against the closed enumeration.
func ParseRoleName(raw string) (RoleName, error) {
	name := RoleName(strings.TrimSpace(raw))
	if !name.Valid() {
		return "", shared.Errorf(shared.ErrValidation, "invalid role name %q", raw)
	}
	return name, nil
}

// Valid reports whether n is one of the enumerated roles.
func (n RoleName) Valid() bool {
	switch n {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

func (n RoleName) String() string { return string(n) }

// Resource is a named entity type subject to access control.
type Resource struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Action is a named operation verb.
type Action struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Permission pairs one Resource with one Action.
type Permission struct {
	ID          int64     `json:"id"`
	Resource    Resource  `json:"resource"`
	Action      Action    `json:"action"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Name renders the permission as "<resource>:<action>".
func (p Permission) Name() string {
	return p.Resource.Name + ":" + p.Action.Name
}

// MarshalJSON adds the derived name to the encoded permission.
func (p Permission) MarshalJSON() ([]byte, error) {
	type plain Permission
	return json.Marshal(struct {
		plain
		Name string `json:"name"`
	}{plain: plain(p), Name: p.Name()})
}

// Matches reports whether the permission grants action on resource.
// Comparison is exact and case-sensitive.
func (p Permission) Matches(resource, action string) bool {
	return p.Resource.Name == resource && p.Action.Name == action
}

// Role is a named bundle of permissions.
type Role struct {
	ID          int64         `json:"id"`
	Name        RoleName      `json:"name"`
	Description string        `json:"description"`
	Permissions PermissionSet `json:"permissions"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// PermissionSet holds permissions keyed by ID.
type PermissionSet map[int64]Permission

// NewPermissionSet builds a set from perms, collapsing duplicates.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p.ID] = p
	}
	return set
}

// Add inserts p. It reports false when p was already present.
func (s PermissionSet) Add(p Permission) bool {
	if _, ok := s[p.ID]; ok {
		return false
	}
	s[p.ID] = p
	return true
}

// Remove deletes the permission with id. It reports false when absent.
func (s PermissionSet) Remove(id int64) bool {
	if _, ok := s[id]; !ok {
		return false
	}
	delete(s, id)
	return true
}

// Contains reports whether the permission with id is in the set.
func (s PermissionSet) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Allows reports whether some permission in the set grants action on resource.
func (s PermissionSet) Allows(resource, action string) bool {
	for _, p := range s {
		if p.Matches(resource, action) {
			return true
		}
	}
	return false
}

// Sorted returns the permissions ordered by name.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the sorted "<resource>:<action>" names.
func (s PermissionSet) Names() []string {
	sorted := s.Sorted()
	names := make([]string, len(sorted))
	for i, p := range sorted {
		names[i] = p.Name()
	}
	return names
}

// MarshalJSON encodes the set as a sorted array.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of permissions into the set.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var perms []Permission
	if err := json.Unmarshal(data, &perms); err != nil {
		return err
	}
	*s = NewPermissionSet(perms...)
	return nil
}
