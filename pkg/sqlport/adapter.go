package sqlport

import "context"

// Adapter executes MySQL-flavoured statements against one database engine.
// The PostgreSQL implementation translates; the MySQL one passes through.
//
// Thread-Safety: an Adapter owns a single connection. Calls are serialized,
// and a bulk load holds the connection for its whole sequence.
type Adapter interface {
	// Engine reports the server behind this adapter.
	Engine() Engine

	// Exec classifies and executes sql and returns the affected row count.
	// A lock instruction reports 1 on engines without table locks.
	Exec(ctx context.Context, sql string) (int64, error)

	// ExecStatement executes an already classified statement.
	ExecStatement(ctx context.Context, stmt Statement) (int64, error)

	// BulkLoad imports a data file into req.Table, replacing rows whose
	// primary key already exists, and returns the affected row count.
	BulkLoad(ctx context.Context, req BulkLoadRequest) (int64, error)

	// FetchAll returns every row of a query keyed by column name.
	FetchAll(ctx context.Context, sql string, args ...any) ([]map[string]any, error)

	// FetchOne returns the first row of a query, or nil when it has none.
	FetchOne(ctx context.Context, sql string, args ...any) (map[string]any, error)

	// FetchCol returns the first column of every row.
	FetchCol(ctx context.Context, sql string, args ...any) ([]any, error)

	// ServerVersion returns the server release as reported by the server.
	ServerVersion(ctx context.Context) (string, error)

	// CheckServerVersion fails with ErrServerVersion if the server is older than minimum.
	CheckServerVersion(ctx context.Context, minimum string) error

	// IsConnectionUTF8 reports whether the connection exchanges UTF-8 text.
	IsConnectionUTF8(ctx context.Context) (bool, error)

	// IsDuplicateTable reports whether err is the engine's "table already exists" error.
	IsDuplicateTable(err error) bool

	// HasBulkLoader reports whether BulkLoad is available.
	HasBulkLoader() bool

	// HasBlobDataType reports whether the engine stores binary columns natively.
	HasBlobDataType() bool

	// Close releases the connection.
	Close() error
}
