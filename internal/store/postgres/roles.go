package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/cloven/rbac-admin/internal/platform/db"
	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
)

const roleColumns = `id, name, description, created_at, updated_at`

func scanRole(row pgx.Row) (rbac.Role, error) {
	var r rbac.Role
	var name string
	if err := row.Scan(&r.ID, &name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return rbac.Role{}, db.MapError(err)
	}
	r.Name = rbac.RoleName(name)
	r.Permissions = rbac.PermissionSet{}
	return r, nil
}

// withPermissions loads the grants of role through q.
func withPermissions(ctx context.Context, q db.Querier, role rbac.Role, err error) (rbac.Role, error) {
	if err != nil {
		return rbac.Role{}, err
	}
	perms, err := grantsOf(ctx, q, role.ID)
	if err != nil {
		return rbac.Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

func grantsOf(ctx context.Context, q db.Querier, roleID int64) (rbac.PermissionSet, error) {
	rows, err := q.Query(ctx, permissionSelect+`
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	perms, err := collect(rows, scanPermission)
	if err != nil {
		return nil, err
	}
	return rbac.NewPermissionSet(perms...), nil
}

func (s *Store) FindRoleByID(ctx context.Context, id int64) (rbac.Role, error) {
	role, err := scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	return withPermissions(ctx, s.pool, role, err)
}

func (s *Store) FindRoleByName(ctx context.Context, name rbac.RoleName) (rbac.Role, error) {
	role, err := scanRole(s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, string(name)))
	return withPermissions(ctx, s.pool, role, err)
}

// ListRoles loads roles and all grants in two queries.
func (s *Store) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	roles, err := collect(rows, scanRole)
	if err != nil {
		return nil, err
	}

	index := make(map[int64]int, len(roles))
	for i, r := range roles {
		index[r.ID] = i
	}

	grantRows, err := s.pool.Query(ctx, `SELECT rp.role_id, `+permissionFields+permissionFrom+`
		JOIN role_permissions rp ON rp.permission_id = p.id`)
	if err != nil {
		return nil, err
	}
	defer grantRows.Close()
	for grantRows.Next() {
		var roleID int64
		var p rbac.Permission
		if err := grantRows.Scan(append([]any{&roleID}, permissionDest(&p)...)...); err != nil {
			return nil, err
		}
		if i, ok := index[roleID]; ok {
			roles[i].Permissions.Add(p)
		}
	}
	return roles, grantRows.Err()
}

func (s *Store) CreateRole(ctx context.Context, name rbac.RoleName, description string) (rbac.Role, error) {
	return scanRole(s.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING `+roleColumns, string(name), description))
}

func (s *Store) UpdateRole(ctx context.Context, r rbac.Role) (rbac.Role, error) {
	role, err := scanRole(s.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = now() WHERE id = $1 RETURNING `+roleColumns,
		r.ID, string(r.Name), r.Description))
	return withPermissions(ctx, s.pool, role, err)
}

// DeleteRole fails with ErrRoleInUse while users.role_id still references the row.
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if db.IsCode(err, db.ForeignKeyViolation) {
			return shared.ErrRoleInUse
		}
		return err
	}
	return requireAffected(tag.RowsAffected())
}

func (s *Store) RolePermissions(ctx context.Context, roleID int64) (rbac.PermissionSet, error) {
	var perms rbac.PermissionSet
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		ok, err := exists(ctx, tx, "roles", roleID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrNotFound
		}
		perms, err = grantsOf(ctx, tx, roleID)
		return err
	})
	return perms, err
}

func (s *Store) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleID, permissionID)
	if db.IsCode(err, db.ForeignKeyViolation) {
		return shared.ErrNotFound
	}
	return err
}

func (s *Store) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		ok, err := exists(ctx, tx, "roles", roleID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrNotFound
		}
		_, err = tx.Exec(ctx,
			`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
		return err
	})
}

func (s *Store) RolesWithPermission(ctx context.Context, permissionID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role_id FROM role_permissions WHERE permission_id = $1 ORDER BY role_id`, permissionID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (int64, error) {
		var id int64
		return id, row.Scan(&id)
	})
}
