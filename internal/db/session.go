package db

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// Session pins one pooled connection so temporary tables and session
// settings survive between statements.
//
// Thread-Safety: NOT safe for concurrent use.
type Session struct {
	pool      *pgxpool.Pool
	conn      *pgxpool.Conn
	connector sqlport.Connector
	closeOnce sync.Once
}

// OpenSession connects and acquires the dedicated connection.
func OpenSession(ctx context.Context, connector sqlport.Connector) (*Session, error) {
	pool, err := connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		closeConnector(connector)
		return nil, fmt.Errorf("failed to acquire connection: %v: %w", err, sqlport.ErrConnectionFailed)
	}

	return &Session{pool: pool, conn: conn, connector: connector}, nil
}

func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.conn.Exec(ctx, sql, args...)
}

func (s *Session) Query(ctx context.Context, sql string, args ...any) (sqlport.Rows, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) sqlport.Row {
	return s.conn.QueryRow(ctx, sql, args...)
}

func (s *Session) CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	return s.conn.Conn().PgConn().CopyFrom(ctx, r, sql)
}

func (s *Session) Begin(ctx context.Context) (sqlport.Tx, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txAdapter{tx: tx}, nil
}

func (s *Session) ParameterStatus(key string) string {
	return s.conn.Conn().PgConn().ParameterStatus(key)
}

// Pool exposes the underlying pool for statements that must not run on the
// pinned connection.
func (s *Session) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the connection and the pool. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.conn.Release()
		s.pool.Close()
		closeConnector(s.connector)
	})
	return nil
}

// closeConnector releases connector resources such as the Cloud SQL dialer.
func closeConnector(connector sqlport.Connector) {
	if closer, ok := connector.(io.Closer); ok {
		_ = closer.Close()
	}
}

type txAdapter struct {
	tx pgx.Tx
}

func (t *txAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *txAdapter) Query(ctx context.Context, sql string, args ...any) (sqlport.Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *txAdapter) QueryRow(ctx context.Context, sql string, args ...any) sqlport.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *txAdapter) CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	return t.tx.Conn().PgConn().CopyFrom(ctx, r, sql)
}

func (t *txAdapter) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txAdapter) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

var (
	_ sqlport.DBConnection = (*Session)(nil)
	_ sqlport.Tx           = (*txAdapter)(nil)
)
