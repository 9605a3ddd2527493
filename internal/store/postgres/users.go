package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/cloven/rbac-admin/internal/platform/db"
	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
	"github.com/cloven/rbac-admin/internal/users"
)

const userColumns = `id, full_name, email, password_hash, role_id, created_at, updated_at`

func scanUser(row pgx.Row) (users.User, error) {
	var u users.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.Role.ID, &u.CreatedAt, &u.UpdatedAt)
	return u, db.MapError(err)
}

// withRole replaces the bare role ID on u with the full role.
func (s *Store) withRole(ctx context.Context, u users.User, err error) (users.User, error) {
	if err != nil {
		return users.User{}, err
	}
	role, err := s.FindRoleByID(ctx, u.Role.ID)
	if err != nil {
		return users.User{}, err
	}
	u.Role = role
	return u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (users.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	return s.withRole(ctx, u, err)
}

func (s *Store) FindByID(ctx context.Context, id int64) (users.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	return s.withRole(ctx, u, err)
}

func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&ok)
	return ok, err
}

func (s *Store) Create(ctx context.Context, in users.NewUser) (users.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO users (full_name, email, password_hash, role_id) VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns, in.FullName, in.Email, in.PasswordHash, in.RoleID))
	if db.IsCode(err, db.ForeignKeyViolation) {
		return users.User{}, shared.ErrNotFound
	}
	return s.withRole(ctx, u, err)
}

func (s *Store) Update(ctx context.Context, in users.User) (users.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET full_name = $2, email = $3, password_hash = $4, role_id = $5, updated_at = now()
		 WHERE id = $1 RETURNING `+userColumns,
		in.ID, in.FullName, in.Email, in.PasswordHash, in.Role.ID))
	if db.IsCode(err, db.ForeignKeyViolation) {
		return users.User{}, shared.ErrNotFound
	}
	return s.withRole(ctx, u, err)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(tag.RowsAffected())
}

// List resolves roles once for the whole page instead of per user.
func (s *Store) List(ctx context.Context) ([]users.User, error) {
	roles, err := s.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]rbac.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	list, err := collect(rows, scanUser)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Role = byID[list[i].Role.ID]
	}
	return list, nil
}

func (s *Store) CountByRole(ctx context.Context, roleID int64) (int, error) {
	return s.CountUsersWithRole(ctx, roleID)
}

// Directory

func (s *Store) RoleIDForUser(ctx context.Context, userID int64) (int64, error) {
	var roleID int64
	err := s.pool.QueryRow(ctx, `SELECT role_id FROM users WHERE id = $1`, userID).Scan(&roleID)
	return roleID, db.MapError(err)
}

func (s *Store) CountUsersWithRole(ctx context.Context, roleID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE role_id = $1`, roleID).Scan(&n)
	return n, err
}
