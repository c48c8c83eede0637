// Package repository persists finished assessment reports in Postgres.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when a record with the same ID is already stored.
var ErrDuplicate = errors.New("repository: duplicate record")

// uniqueViolation is the SQLSTATE of a unique constraint violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
