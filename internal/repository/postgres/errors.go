package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports a duplicate key, e.g. a replayed message id.
func IsUniqueViolation(err error) bool { return sqlState(err) == sqlStateUniqueViolation }

// IsForeignKeyViolation reports a write against a thread that no longer exists.
func IsForeignKeyViolation(err error) bool { return sqlState(err) == sqlStateForeignKeyViolation }

// IsNoRows reports an empty single-row result.
func IsNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
