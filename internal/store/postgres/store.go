// Package postgres persists the identity model in PostgreSQL.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloven/rbac-admin/internal/platform/db"
	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/shared"
	"github.com/cloven/rbac-admin/internal/users"
)

var (
	_ rbac.Repository    = (*Store)(nil)
	_ rbac.UserDirectory = (*Store)(nil)
	_ users.Repository   = (*Store)(nil)
)

// Store implements the rbac and users repositories on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for health checks.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// requireAffected maps a zero-row write to ErrNotFound.
func requireAffected(n int64) error {
	if n == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// exists reports whether a row with id is present in table. table is never
// caller-supplied.
func exists(ctx context.Context, q db.Querier, table string, id int64) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
