package testing

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// Call is one statement observed by FakeConn.
type Call struct {
	Method string
	SQL    string
	Args   []any
	// Data holds the bytes streamed through CopyFrom.
	Data string
}

// FakeConn is a scriptable sqlport.DBConnection that records every call.
// Unset func fields behave like a server that accepts everything and
// returns no rows. Transactions opened by Begin record into the same log.
type FakeConn struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (sqlport.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) sqlport.Row
	CopyFromFunc func(ctx context.Context, data string, sql string) (pgconn.CommandTag, error)
	BeginFunc    func(ctx context.Context) error
	CommitFunc   func(ctx context.Context) error
	Parameters   map[string]string

	mu    sync.Mutex
	calls []Call
}

func (c *FakeConn) record(call Call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

// Calls returns a copy of the recorded calls.
func (c *FakeConn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Statements returns the SQL text of every recorded call, with transaction
// control rendered as BEGIN, COMMIT and ROLLBACK.
func (c *FakeConn) Statements() []string {
	calls := c.Calls()
	out := make([]string, len(calls))
	for i, call := range calls {
		out[i] = call.SQL
	}
	return out
}

// Executed reports whether any recorded statement contains fragment.
func (c *FakeConn) Executed(fragment string) bool {
	for _, s := range c.Statements() {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}

func (c *FakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.record(Call{Method: "Exec", SQL: sql, Args: args})
	if c.ExecFunc != nil {
		return c.ExecFunc(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("SELECT 0"), nil
}

func (c *FakeConn) Query(ctx context.Context, sql string, args ...any) (sqlport.Rows, error) {
	c.record(Call{Method: "Query", SQL: sql, Args: args})
	if c.QueryFunc != nil {
		return c.QueryFunc(ctx, sql, args...)
	}
	return NewRows(nil), nil
}

func (c *FakeConn) QueryRow(ctx context.Context, sql string, args ...any) sqlport.Row {
	c.record(Call{Method: "QueryRow", SQL: sql, Args: args})
	if c.QueryRowFunc != nil {
		return c.QueryRowFunc(ctx, sql, args...)
	}
	return ErrRow(pgx.ErrNoRows)
}

func (c *FakeConn) CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	c.record(Call{Method: "CopyFrom", SQL: sql, Data: string(data)})
	if c.CopyFromFunc != nil {
		return c.CopyFromFunc(ctx, string(data), sql)
	}
	return pgconn.NewCommandTag(fmt.Sprintf("COPY %d", strings.Count(string(data), "\n"))), nil
}

func (c *FakeConn) Begin(ctx context.Context) (sqlport.Tx, error) {
	c.record(Call{Method: "Begin", SQL: "BEGIN"})
	if c.BeginFunc != nil {
		if err := c.BeginFunc(ctx); err != nil {
			return nil, err
		}
	}
	return &FakeTx{conn: c}, nil
}

func (c *FakeConn) ParameterStatus(key string) string {
	return c.Parameters[key]
}

// FakeTx delegates statements to its FakeConn.
type FakeTx struct {
	conn *FakeConn
	done bool
}

func (t *FakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.conn.Exec(ctx, sql, args...)
}

func (t *FakeTx) Query(ctx context.Context, sql string, args ...any) (sqlport.Rows, error) {
	return t.conn.Query(ctx, sql, args...)
}

func (t *FakeTx) QueryRow(ctx context.Context, sql string, args ...any) sqlport.Row {
	return t.conn.QueryRow(ctx, sql, args...)
}

func (t *FakeTx) CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	return t.conn.CopyFrom(ctx, r, sql)
}

func (t *FakeTx) Commit(ctx context.Context) error {
	t.conn.record(Call{Method: "Commit", SQL: "COMMIT"})
	t.done = true
	if t.conn.CommitFunc != nil {
		return t.conn.CommitFunc(ctx)
	}
	return nil
}

// Rollback after Commit is a no-op, matching pgx.
func (t *FakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.conn.record(Call{Method: "Rollback", SQL: "ROLLBACK"})
	return nil
}

// FakeRow is a sqlport.Row holding one row of values or an error.
type FakeRow struct {
	values []any
	err    error
}

// RowOf returns a row that scans values into its destinations.
func RowOf(values ...any) *FakeRow {
	return &FakeRow{values: values}
}

// ErrRow returns a row whose Scan fails with err.
func ErrRow(err error) *FakeRow {
	return &FakeRow{err: err}
}

func (r *FakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

// FakeRows is an in-memory sqlport.Rows.
type FakeRows struct {
	columns []string
	data    [][]any
	pos     int
	err     error
	closed  bool
}

// NewRows builds a result set; each row must have len(columns) values.
func NewRows(columns []string, rows ...[]any) *FakeRows {
	return &FakeRows{columns: columns, data: rows, pos: -1}
}

// WithErr makes Err report err once iteration finishes.
func (r *FakeRows) WithErr(err error) *FakeRows {
	r.err = err
	return r
}

func (r *FakeRows) Next() bool {
	if r.closed || r.pos+1 >= len(r.data) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *FakeRows) Scan(dest ...any) error {
	return assign(r.data[r.pos], dest)
}

func (r *FakeRows) Values() ([]any, error) {
	return append([]any(nil), r.data[r.pos]...), nil
}

func (r *FakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.columns))
	for i, name := range r.columns {
		fds[i] = pgconn.FieldDescription{Name: name}
	}
	return fds
}

func (r *FakeRows) Err() error { return r.err }

func (r *FakeRows) Close() { r.closed = true }

// Closed reports whether the result set was closed or fully read.
func (r *FakeRows) Closed() bool { return r.closed }

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("fake row has %d values, scan wants %d", len(values), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("scan destination %d is not a pointer", i)
		}
		elem := target.Elem()
		if values[i] == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		v := reflect.ValueOf(values[i])
		switch {
		case v.Type().AssignableTo(elem.Type()):
			elem.Set(v)
		case v.Type().ConvertibleTo(elem.Type()):
			elem.Set(v.Convert(elem.Type()))
		default:
			return fmt.Errorf("cannot scan %T into %s", values[i], elem.Type())
		}
	}
	return nil
}

var (
	_ sqlport.DBConnection = (*FakeConn)(nil)
	_ sqlport.Tx           = (*FakeTx)(nil)
	_ sqlport.Rows         = (*FakeRows)(nil)
)
