package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cloven/rbac-admin/internal/shared"
)

// SQLSTATE codes the stores react to.
const (
	UniqueViolation     = "23505"
	ForeignKeyViolation = "23503"
)

// MapError translates missing rows and unique violations into domain sentinels.
// Other errors are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	if IsCode(err, UniqueViolation) {
		return shared.ErrAlreadyExists
	}
	return err
}

// IsCode reports whether err is a Postgres error with the given SQLSTATE.
func IsCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
