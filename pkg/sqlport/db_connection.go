package sqlport

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the statement surface shared by a PostgreSQL connection and a
// transaction running on it. It decouples the adapters from pgx concrete types
// so they can be exercised against hand-written fakes.
type Querier interface {
	// Exec executes a statement without returning rows.
	// Without args the simple protocol is used, so sql may hold several statements.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a query that is expected to return at most one row.
	// Always returns a non-nil Row. Errors are deferred until Row's Scan method is called.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// CopyFrom streams r into a COPY ... FROM STDIN statement.
	CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error)
}

// DBConnection is a single dedicated PostgreSQL connection.
//
// Thread-Safety: NOT safe for concurrent use. The connection executes one
// statement at a time; callers serialize access.
type DBConnection interface {
	Querier

	// Begin starts a transaction on this connection.
	Begin(ctx context.Context) (Tx, error)

	// ParameterStatus returns a run-time parameter reported by the server
	// at startup (server_version, server_encoding, ...).
	ParameterStatus(key string) string
}

// Tx is a transaction opened by DBConnection.Begin.
type Tx interface {
	Querier

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Row represents a single row returned by QueryRow.
type Row interface {
	// Scan reads the values from the row into dest values.
	// Returns an error if no row was found or if the scan fails.
	Scan(dest ...any) error
}

// Rows is a result set. pgx.Rows satisfies it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Values() ([]any, error)
	FieldDescriptions() []pgconn.FieldDescription
	Err() error
	Close()
}
