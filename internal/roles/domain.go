package roles

import "github.com/cloven/rbac-admin/internal/rbac"

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,oneof=ADMIN MODERATOR USER"`
	Description string `json:"description" validate:"max=255"`
}

type updateRoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,oneof=ADMIN MODERATOR USER"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

func (req updateRoleRequest) toUpdate() (rbac.RoleUpdate, error) {
	upd := rbac.RoleUpdate{Description: req.Description}
	if req.Name != nil {
		name, err := rbac.ParseRoleName(*req.Name)
		if err != nil {
			return rbac.RoleUpdate{}, err
		}
		upd.Name = &name
	}
	return upd, nil
}
