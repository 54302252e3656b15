package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kunoai/kuno-engine/internal/task"
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// checkViolationCode is the PostgreSQL error code for check constraint violations
	checkViolationCode = "23514"

	// notNullViolationCode is the PostgreSQL error code for not null violations
	notNullViolationCode = "23502"
)

// ErrInvalidRow is returned when a row violates a schema constraint other than
// the status check.
var ErrInvalidRow = errors.New("invalid task row")

// MapError maps a database error to the task package's errors, wrapping the
// original to keep the driver detail for logs.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", task.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %v", task.ErrDuplicateID, err)
		case checkViolationCode:
			if pgErr.ConstraintName == "tasks_status_check" {
				return fmt.Errorf("%w: %v", task.ErrInvalidStatus, err)
			}
			return fmt.Errorf(
				"%w: check constraint violation (%s): %v",
				ErrInvalidRow,
				pgErr.ConstraintName,
				err,
			)
		case notNullViolationCode:
			return fmt.Errorf(
				"%w: not null violation (%s): %v",
				ErrInvalidRow,
				pgErr.ColumnName,
				err,
			)
		}
	}

	return err
}
