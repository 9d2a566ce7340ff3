package postgres

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/vvka-141/sqlport/internal/dialect"
	"github.com/vvka-141/sqlport/internal/retry"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// Adapter implements sqlport.Adapter on a single PostgreSQL connection.
// Thread-Safety: calls are serialized; a bulk load holds the connection
// for its whole staging sequence.
type Adapter struct {
	mu       sync.Mutex
	conn     sqlport.DBConnection
	logger   sqlport.Logger
	bulkOpts sqlport.BulkLoadOptions
	retry    *retry.Executor
	closer   io.Closer
	newID    func() string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBulkLoadOptions overrides sqlport.DefaultBulkLoadOptions.
func WithBulkLoadOptions(opts sqlport.BulkLoadOptions) Option {
	return func(a *Adapter) { a.bulkOpts = opts }
}

// WithCloser makes Close release c, typically the session owning conn.
func WithCloser(c io.Closer) Option {
	return func(a *Adapter) { a.closer = c }
}

// WithRetryExecutor replaces the executor used to replay transactional
// bulk loads aborted by serialization failures or deadlocks.
func WithRetryExecutor(e *retry.Executor) Option {
	return func(a *Adapter) { a.retry = e }
}

// New creates an adapter on conn.
// Panics if conn or logger is nil.
func New(conn sqlport.DBConnection, logger sqlport.Logger, opts ...Option) *Adapter {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	a := &Adapter{
		conn:     conn,
		logger:   logger,
		bulkOpts: sqlport.DefaultBulkLoadOptions(),
		newID:    newLoadID,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.retry == nil {
		a.retry = retry.NewDefaultExecutor(retry.NewStatementClassifier())
	}
	a.retry = a.retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Info("bulk load aborted (attempt %d), retrying in %v: %v", attempt+1, delay, err)
	})
	return a
}

// Engine implements sqlport.Adapter.
func (a *Adapter) Engine() sqlport.Engine { return sqlport.EnginePostgres }

// Exec classifies sql and executes it.
func (a *Adapter) Exec(ctx context.Context, sql string) (int64, error) {
	stmt, err := dialect.Parse(sql)
	if err != nil {
		return 0, err
	}
	return a.ExecStatement(ctx, stmt)
}

// ExecStatement executes an already classified statement.
//
// Lock instructions return 1 without contacting the server. Plain statements
// are not retried since they may run inside a transaction the caller opened.
func (a *Adapter) ExecStatement(ctx context.Context, stmt sqlport.Statement) (int64, error) {
	switch s := stmt.(type) {
	case sqlport.LockStatement:
		a.logger.Verbose("table lock acknowledged without server call: %s", dialect.Preview(s.SQL))
		return 1, nil
	case sqlport.BulkLoadRequest:
		return a.BulkLoad(ctx, s)
	case sqlport.PlainStatement:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.execPlain(ctx, a.conn, s.SQL)
	default:
		return 0, fmt.Errorf("statement %T: %w", stmt, sqlport.ErrUnsupportedStatement)
	}
}

func (a *Adapter) execPlain(ctx context.Context, q sqlport.Querier, sql string) (int64, error) {
	translated := dialect.RewriteQuotes(sql)
	a.logger.Verbose("exec: %s", dialect.Preview(translated))

	tag, err := q.Exec(ctx, translated)
	if err != nil {
		return 0, wrapExecError(err, translated)
	}
	return tag.RowsAffected(), nil
}

// bindQuery turns a MySQL-style query with ? markers into PostgreSQL text.
// Queries without args, or already using $n markers, are only quote-rewritten.
func bindQuery(sql string, args []any) (string, error) {
	if len(args) > 0 {
		bound, n := dialect.BindPlaceholders(sql)
		if n > 0 && n != len(args) {
			return "", fmt.Errorf("query has %d placeholders but %d arguments: %w", n, len(args), sqlport.ErrInvalidConfig)
		}
		sql = bound
	}
	return dialect.RewriteQuotes(sql), nil
}

func (a *Adapter) query(ctx context.Context, sql string, args []any) (sqlport.Rows, string, error) {
	translated, err := bindQuery(sql, args)
	if err != nil {
		return nil, "", err
	}
	a.logger.Verbose("query: %s", dialect.Preview(translated))

	rows, err := a.conn.Query(ctx, translated, args...)
	if err != nil {
		return nil, translated, wrapExecError(err, translated)
	}
	return rows, translated, nil
}

// FetchAll returns every row keyed by column name.
func (a *Adapter) FetchAll(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, translated, err := a.query(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row, err := rowMap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapExecError(err, translated)
	}
	return out, nil
}

// FetchOne returns the first row, or nil when the query returned none.
func (a *Adapter) FetchOne(ctx context.Context, sql string, args ...any) (map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, translated, err := a.query(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, wrapExecError(err, translated)
		}
		return nil, nil
	}
	return rowMap(rows)
}

// FetchCol returns the first column of every row.
func (a *Adapter) FetchCol(ctx context.Context, sql string, args ...any) ([]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, translated, err := a.query(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("query %q returned no columns: %w", dialect.Preview(translated), sqlport.ErrExecutionFailed)
		}
		out = append(out, values[0])
	}
	if err := rows.Err(); err != nil {
		return nil, wrapExecError(err, translated)
	}
	return out, nil
}

func rowMap(rows sqlport.Rows) (map[string]any, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("read row: %w", err)
	}
	fields := rows.FieldDescriptions()
	row := make(map[string]any, len(fields))
	for i, fd := range fields {
		row[fd.Name] = values[i]
	}
	return row, nil
}

// ServerVersion returns the server_version setting, e.g. "16.4".
func (a *Adapter) ServerVersion(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var version string
	if err := a.conn.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", wrapExecError(err, "SHOW server_version")
	}
	return version, nil
}

// ClientVersion returns the server version announced at connection
// startup, normalized to major.minor.patch.
func (a *Adapter) ClientVersion() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	parts, err := sqlport.ParseVersion(a.conn.ParameterStatus("server_version"))
	if err != nil {
		return ""
	}
	for len(parts) < 3 {
		parts = append(parts, 0)
	}
	return fmt.Sprintf("%d.%d.%d", parts[0], parts[1], parts[2])
}

// CheckServerVersion fails with ErrServerVersion if the server is older than minimum.
func (a *Adapter) CheckServerVersion(ctx context.Context, minimum string) error {
	if _, err := sqlport.ParseVersion(minimum); err != nil {
		return fmt.Errorf("minimum server version %q: %w", minimum, sqlport.ErrInvalidConfig)
	}
	version, err := a.ServerVersion(ctx)
	if err != nil {
		return err
	}
	return sqlport.CheckVersion(sqlport.EnginePostgres, version, minimum)
}

// IsConnectionUTF8 reports whether the database stores text as UTF-8.
func (a *Adapter) IsConnectionUTF8(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	encoding := a.conn.ParameterStatus("server_encoding")
	if encoding == "" {
		if err := a.conn.QueryRow(ctx, "SHOW server_encoding").Scan(&encoding); err != nil {
			return false, wrapExecError(err, "SHOW server_encoding")
		}
	}
	return strings.EqualFold(encoding, "UTF8"), nil
}

// IsDuplicateTable reports whether err is PostgreSQL's duplicate_table error.
func (a *Adapter) IsDuplicateTable(err error) bool {
	return isDuplicateTable(err)
}

// HasBulkLoader implements sqlport.Adapter.
func (a *Adapter) HasBulkLoader() bool { return true }

// HasBlobDataType implements sqlport.Adapter.
func (a *Adapter) HasBlobDataType() bool { return true }

// DefaultPort returns the standard PostgreSQL port.
func (a *Adapter) DefaultPort() int { return sqlport.DefaultPostgresPort }

// Close releases the connection owner passed with WithCloser.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

var _ sqlport.Adapter = (*Adapter)(nil)
