package users

import (
	"encoding/json"
	"time"

	"github.com/cloven/rbac-admin/internal/rbac"
)

// User is an account holding exactly one role.
type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         rbac.Role `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MarshalJSON flattens the role to its name and id.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		RoleName rbac.RoleName `json:"roleName"`
		RoleID   int64         `json:"roleId"`
	}{plain: plain(u), RoleName: u.Role.Name, RoleID: u.Role.ID})
}

// NewUser carries the fields required to persist an account.
type NewUser struct {
	FullName     string
	Email        string
	PasswordHash string
	RoleID       int64
}

// CreateInput is the administrative create request.
type CreateInput struct {
	FullName string
	Email    string
	Password string
	Role     rbac.RoleName
}

// UpdateInput carries optional account changes. Nil fields are left untouched.
type UpdateInput struct {
	FullName *string
	Email    *string
	Password *string
	Role     *rbac.RoleName
}
