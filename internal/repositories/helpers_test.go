package repositories

import (
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func uniqueViolation() error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_lower_idx"}
}
