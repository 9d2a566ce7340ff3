package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/vvka-141/sqlport/internal/datafile"
	"github.com/vvka-141/sqlport/internal/dialect"
	"github.com/vvka-141/sqlport/internal/retry"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// mysqlTableExists is ER_TABLE_EXISTS_ERROR.
const mysqlTableExists = 1050

// readerPrefix marks a LOAD DATA LOCAL path served by a registered reader.
const readerPrefix = "Reader::"

// Adapter implements sqlport.Adapter on one dedicated MySQL connection.
// Table locks are session state, so every call goes through the same
// *sql.Conn rather than the pool.
type Adapter struct {
	mu     sync.Mutex
	conn   *sql.Conn
	logger sqlport.Logger
	retry  *retry.Executor
	closer io.Closer
	newID  func() string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCloser makes Close also release c, typically the pool conn came from.
func WithCloser(c io.Closer) Option {
	return func(a *Adapter) { a.closer = c }
}

// WithRetryExecutor replaces the executor used to replay bulk loads
// aborted by deadlocks or lock wait timeouts.
func WithRetryExecutor(e *retry.Executor) Option {
	return func(a *Adapter) { a.retry = e }
}

// New creates an adapter on conn.
// Panics if conn or logger is nil.
func New(conn *sql.Conn, logger sqlport.Logger, opts ...Option) *Adapter {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	a := &Adapter{
		conn:   conn,
		logger: logger,
		newID:  func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.retry == nil {
		a.retry = retry.NewDefaultExecutor(retry.NewMySQLErrorClassifier())
	}
	a.retry = a.retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		logger.Info("bulk load aborted (attempt %d), retrying in %v: %v", attempt+1, delay, err)
	})
	return a
}

// Open connects to the server described by cfg, retrying while the server
// is unreachable or out of connections.
func Open(ctx context.Context, cfg *sqlport.ConnectionConfig, logger sqlport.Logger, opts ...Option) (*Adapter, error) {
	mc, err := NewConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("create MySQL connector: %v: %w", err, sqlport.ErrInvalidConfig)
	}

	pool := sql.OpenDB(connector)
	pool.SetMaxOpenConns(1)
	pool.SetMaxIdleConns(1)

	connectRetry := retry.NewDefaultExecutor(retry.NewMySQLConnectionClassifier()).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Info("connection attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
		})
	conn, err := retry.Do(ctx, connectRetry, func(ctx context.Context) (*sql.Conn, error) {
		c, err := pool.Conn(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.PingContext(ctx); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to connect to %s: %w", sqlport.ErrConnectionFailed, mc.Addr, err)
	}

	logger.Verbose("connected to MySQL at %s/%s", mc.Addr, mc.DBName)
	return New(conn, logger, append([]Option{WithCloser(pool)}, opts...)...), nil
}

// Engine implements sqlport.Adapter.
func (a *Adapter) Engine() sqlport.Engine { return sqlport.EngineMySQL }

// Exec classifies sql and executes it.
func (a *Adapter) Exec(ctx context.Context, query string) (int64, error) {
	stmt, err := dialect.Parse(query)
	if err != nil {
		return 0, err
	}
	return a.ExecStatement(ctx, stmt)
}

// ExecStatement executes an already classified statement. Lock and plain
// statements reach the server unchanged.
func (a *Adapter) ExecStatement(ctx context.Context, stmt sqlport.Statement) (int64, error) {
	switch s := stmt.(type) {
	case sqlport.LockStatement:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.exec(ctx, s.SQL)
	case sqlport.PlainStatement:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.exec(ctx, s.SQL)
	case sqlport.BulkLoadRequest:
		return a.BulkLoad(ctx, s)
	default:
		return 0, fmt.Errorf("statement %T: %w", stmt, sqlport.ErrUnsupportedStatement)
	}
}

func (a *Adapter) exec(ctx context.Context, query string) (int64, error) {
	a.logger.Verbose("exec: %s", dialect.Preview(query))
	res, err := a.conn.ExecContext(ctx, query)
	if err != nil {
		return 0, wrapExecError(err, query)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// BulkLoad runs LOAD DATA natively. LOCAL files are registered with the
// driver for the duration of the load; compressed ones are decompressed
// on the client and streamed through a reader handler.
func (a *Adapter) BulkLoad(ctx context.Context, req sqlport.BulkLoadRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.newID()
	served, release, err := registerLocalFile(id, req)
	if err != nil {
		return 0, err
	}
	defer release()

	query := dialect.FormatLoadData(served)
	a.logger.Info("bulk load %s: %s into %s", id, req.Path, req.Table)
	a.logger.Verbose("bulk load %s: %s", id, query)

	n, err := retry.Do(ctx, a.retry, func(ctx context.Context) (int64, error) {
		return a.exec(ctx, query)
	})
	if err != nil {
		a.logger.Error("bulk load %s failed: %v", id, err)
		return 0, fmt.Errorf("bulk load into %s: %w", req.Table, err)
	}

	a.logger.Info("bulk load %s: %d rows affected", id, n)
	return n, nil
}

// registerLocalFile makes req's file readable by the driver and returns the
// request to send along with a function undoing the registration.
func registerLocalFile(id string, req sqlport.BulkLoadRequest) (sqlport.BulkLoadRequest, func(), error) {
	compression := datafile.DetectCompression(req.Path)

	if !req.Local {
		if compression != datafile.CompressionNone {
			return req, nil, fmt.Errorf("server-side load of %s compressed file %s: %w", compression, req.Path, sqlport.ErrUnsupportedStatement)
		}
		return req, func() {}, nil
	}

	if compression == datafile.CompressionNone {
		path := req.Path
		mysql.RegisterLocalFile(path)
		return req, func() { mysql.DeregisterLocalFile(path) }, nil
	}

	name := "sqlport-" + id
	path := req.Path
	mysql.RegisterReaderHandler(name, func() io.Reader {
		f, err := datafile.Open(path, datafile.Options{})
		if err != nil {
			return errReader{err: err}
		}
		return f
	})

	served := req
	served.Path = readerPrefix + name
	return served, func() { mysql.DeregisterReaderHandler(name) }, nil
}

// errReader fails the LOAD DATA LOCAL transfer with err.
type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// FetchAll returns every row keyed by column name.
func (a *Adapter) FetchAll(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []map[string]any
	err := a.scan(ctx, query, args, func(cols []string, values []any) bool {
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchOne returns the first row, or nil when the query returned none.
func (a *Adapter) FetchOne(ctx context.Context, query string, args ...any) (map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out map[string]any
	err := a.scan(ctx, query, args, func(cols []string, values []any) bool {
		out = make(map[string]any, len(cols))
		for i, c := range cols {
			out[c] = values[i]
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchCol returns the first column of every row.
func (a *Adapter) FetchCol(ctx context.Context, query string, args ...any) ([]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []any
	err := a.scan(ctx, query, args, func(_ []string, values []any) bool {
		out = append(out, values[0])
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scan runs query and hands each row to fn until it returns false.
// Text columns arrive as []byte and are converted to string.
func (a *Adapter) scan(ctx context.Context, query string, args []any, fn func(cols []string, values []any) bool) error {
	a.logger.Verbose("query: %s", dialect.Preview(query))

	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return wrapExecError(err, query)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return wrapExecError(err, query)
	}
	if len(cols) == 0 {
		return fmt.Errorf("query %q returned no columns: %w", dialect.Preview(query), sqlport.ErrExecutionFailed)
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		if !fn(cols, values) {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return wrapExecError(err, query)
	}
	return nil
}

// ServerVersion returns VERSION(), e.g. "8.4.3" or "10.11.6-MariaDB".
func (a *Adapter) ServerVersion(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var version string
	if err := a.conn.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", wrapExecError(err, "SELECT VERSION()")
	}
	return version, nil
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
	return sqlport.CheckVersion(sqlport.EngineMySQL, version, minimum)
}

// IsConnectionUTF8 reports whether the connection character set is utf8 or utf8mb4.
func (a *Adapter) IsConnectionUTF8(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	const query = "SELECT @@character_set_connection"
	var charset string
	if err := a.conn.QueryRowContext(ctx, query).Scan(&charset); err != nil {
		return false, wrapExecError(err, query)
	}
	return strings.HasPrefix(strings.ToLower(charset), "utf8"), nil
}

// IsDuplicateTable reports whether err is ER_TABLE_EXISTS_ERROR.
func (a *Adapter) IsDuplicateTable(err error) bool {
	return isDuplicateTable(err)
}

// HasBulkLoader implements sqlport.Adapter.
func (a *Adapter) HasBulkLoader() bool { return true }

// HasBlobDataType implements sqlport.Adapter.
func (a *Adapter) HasBlobDataType() bool { return true }

// DefaultPort returns the standard MySQL port.
func (a *Adapter) DefaultPort() int { return sqlport.DefaultMySQLPort }

// Close returns the connection and releases the pool passed with WithCloser.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	if a.closer != nil {
		err = errors.Join(err, a.closer.Close())
		a.closer = nil
	}
	return err
}

func wrapExecError(err error, query string) error {
	if isDuplicateTable(err) {
		return fmt.Errorf("%w: %w: %s: %w", sqlport.ErrExecutionFailed, sqlport.ErrTableAlreadyExists, dialect.Preview(query), err)
	}
	return fmt.Errorf("%w: %s: %w", sqlport.ErrExecutionFailed, dialect.Preview(query), err)
}

func isDuplicateTable(err error) bool {
	if errors.Is(err, sqlport.ErrTableAlreadyExists) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlTableExists
}

var _ sqlport.Adapter = (*Adapter)(nil)
