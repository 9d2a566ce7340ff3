package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/sqlport/internal/dialect"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// pgDuplicateTable is raised by CREATE TABLE on an existing relation.
const pgDuplicateTable = "42P07"

// wrapExecError tags a failed statement with ErrExecutionFailed, and with
// ErrTableAlreadyExists when the server reported a duplicate relation.
// The *pgconn.PgError stays reachable through errors.As.
func wrapExecError(err error, sql string) error {
	if isDuplicateTable(err) {
		return fmt.Errorf("%w: %w: %s: %w", sqlport.ErrExecutionFailed, sqlport.ErrTableAlreadyExists, dialect.Preview(sql), err)
	}
	return fmt.Errorf("%w: %s: %w", sqlport.ErrExecutionFailed, dialect.Preview(sql), err)
}

func isDuplicateTable(err error) bool {
	if errors.Is(err, sqlport.ErrTableAlreadyExists) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgDuplicateTable
}
