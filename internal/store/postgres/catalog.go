package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/cloven/rbac-admin/internal/platform/db"
	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
)

const (
	permissionFields = `p.id, p.description, p.created_at, p.updated_at,
	r.id, r.name, r.description, r.created_at, r.updated_at,
	a.id, a.name, a.description, a.created_at, a.updated_at`
	permissionFrom = ` FROM permissions p
	JOIN resources r ON r.id = p.resource_id
	JOIN actions a ON a.id = p.action_id`
	permissionSelect = `SELECT ` + permissionFields + permissionFrom
)

func scanResource(row pgx.Row) (rbac.Resource, error) {
	var r rbac.Resource
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return r, db.MapError(err)
}

func scanAction(row pgx.Row) (rbac.Action, error) {
	var a rbac.Action
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.CreatedAt, &a.UpdatedAt)
	return a, db.MapError(err)
}

// permissionDest lists scan targets matching permissionFields.
func permissionDest(p *rbac.Permission) []any {
	return []any{&p.ID, &p.Description, &p.CreatedAt, &p.UpdatedAt,
		&p.Resource.ID, &p.Resource.Name, &p.Resource.Description, &p.Resource.CreatedAt, &p.Resource.UpdatedAt,
		&p.Action.ID, &p.Action.Name, &p.Action.Description, &p.Action.CreatedAt, &p.Action.UpdatedAt}
}

func scanPermission(row pgx.Row) (rbac.Permission, error) {
	var p rbac.Permission
	err := row.Scan(permissionDest(&p)...)
	return p, db.MapError(err)
}

// Resources

func (s *Store) FindResourceByID(ctx context.Context, id int64) (rbac.Resource, error) {
	return scanResource(s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM resources WHERE id = $1`, id))
}

func (s *Store) FindResourceByName(ctx context.Context, name string) (rbac.Resource, error) {
	return scanResource(s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM resources WHERE name = $1`, name))
}

func (s *Store) ListResources(ctx context.Context) ([]rbac.Resource, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM resources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanResource)
}

func (s *Store) CreateResource(ctx context.Context, name, description string) (rbac.Resource, error) {
	return scanResource(s.pool.QueryRow(ctx,
		`INSERT INTO resources (name, description) VALUES ($1, $2)
		 RETURNING id, name, description, created_at, updated_at`, name, description))
}

func (s *Store) UpdateResource(ctx context.Context, r rbac.Resource) (rbac.Resource, error) {
	return scanResource(s.pool.QueryRow(ctx,
		`UPDATE resources SET name = $2, description = $3, updated_at = now() WHERE id = $1
		 RETURNING id, name, description, created_at, updated_at`, r.ID, r.Name, r.Description))
}

// DeleteResource relies on ON DELETE CASCADE to drop dependent permissions and grants.
func (s *Store) DeleteResource(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(tag.RowsAffected())
}

// Actions

func (s *Store) FindActionByID(ctx context.Context, id int64) (rbac.Action, error) {
	return scanAction(s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM actions WHERE id = $1`, id))
}

func (s *Store) FindActionByName(ctx context.Context, name string) (rbac.Action, error) {
	return scanAction(s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM actions WHERE name = $1`, name))
}

func (s *Store) ListActions(ctx context.Context) ([]rbac.Action, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM actions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAction)
}

func (s *Store) CreateAction(ctx context.Context, name, description string) (rbac.Action, error) {
	return scanAction(s.pool.QueryRow(ctx,
		`INSERT INTO actions (name, description) VALUES ($1, $2)
		 RETURNING id, name, description, created_at, updated_at`, name, description))
}

func (s *Store) UpdateAction(ctx context.Context, a rbac.Action) (rbac.Action, error) {
	return scanAction(s.pool.QueryRow(ctx,
		`UPDATE actions SET name = $2, description = $3, updated_at = now() WHERE id = $1
		 RETURNING id, name, description, created_at, updated_at`, a.ID, a.Name, a.Description))
}

func (s *Store) DeleteAction(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM actions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(tag.RowsAffected())
}

// Permissions

func (s *Store) FindPermissionByID(ctx context.Context, id int64) (rbac.Permission, error) {
	return scanPermission(s.pool.QueryRow(ctx, permissionSelect+` WHERE p.id = $1`, id))
}

func (s *Store) FindPermissionByResourceAndAction(ctx context.Context, resourceID, actionID int64) (rbac.Permission, error) {
	return scanPermission(s.pool.QueryRow(ctx,
		permissionSelect+` WHERE p.resource_id = $1 AND p.action_id = $2`, resourceID, actionID))
}

func (s *Store) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	rows, err := s.pool.Query(ctx, permissionSelect+` ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPermission)
}

func (s *Store) CreatePermission(ctx context.Context, resource rbac.Resource, action rbac.Action, description string) (rbac.Permission, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO permissions (resource_id, action_id, description) VALUES ($1, $2, $3) RETURNING id`,
		resource.ID, action.ID, description).Scan(&id)
	if err != nil {
		if db.IsCode(err, db.ForeignKeyViolation) {
			return rbac.Permission{}, shared.ErrNotFound
		}
		return rbac.Permission{}, db.MapError(err)
	}
	return s.FindPermissionByID(ctx, id)
}

func (s *Store) UpdatePermissionDescription(ctx context.Context, id int64, description string) (rbac.Permission, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE permissions SET description = $2, updated_at = now() WHERE id = $1`, id, description)
	if err != nil {
		return rbac.Permission{}, err
	}
	if err := requireAffected(tag.RowsAffected()); err != nil {
		return rbac.Permission{}, err
	}
	return s.FindPermissionByID(ctx, id)
}

func (s *Store) DeletePermission(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(tag.RowsAffected())
}
