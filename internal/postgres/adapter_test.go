package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlport/internal/logging"
	"github.com/vvka-141/sqlport/internal/retry"
	testhelpers "github.com/vvka-141/sqlport/internal/testing"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

func fastRetry() *retry.Executor {
	return retry.NewExecutor(retry.NewStatementClassifier(),
		retry.NewExponentialBackoff(2, retry.WithInitialDelay(time.Millisecond), retry.WithJitter(0)))
}

func newTestAdapter(conn *testhelpers.FakeConn, opts ...Option) *Adapter {
	opts = append([]Option{WithRetryExecutor(fastRetry())}, opts...)
	a := New(conn, logging.NewNullLogger(), opts...)
	a.newID = func() string { return "test" }
	return a
}

func TestNew_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() { New(nil, logging.NewNullLogger()) })
	assert.Panics(t, func() { New(&testhelpers.FakeConn{}, nil) })
}

func TestAdapter_Capabilities(t *testing.T) {
	a := newTestAdapter(&testhelpers.FakeConn{})
	assert.Equal(t, sqlport.EnginePostgres, a.Engine())
	assert.True(t, a.HasBulkLoader())
	assert.True(t, a.HasBlobDataType())
	assert.Equal(t, 5432, a.DefaultPort())
}

func TestExec_LockIsAcknowledgedLocally(t *testing.T) {
	for _, sql := range []string{
		"LOCK TABLES `piwik_log_visit` WRITE",
		"UNLOCK TABLES",
		"/* archiver */ LOCK TABLES piwik_option READ",
	} {
		t.Run(sql, func(t *testing.T) {
			conn := &testhelpers.FakeConn{}
			n, err := newTestAdapter(conn).Exec(context.Background(), sql)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
			assert.Empty(t, conn.Calls())
		})
	}
}

func TestExec_PlainRewritesIdentifierQuotes(t *testing.T) {
	conn := &testhelpers.FakeConn{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 3"), nil
		},
	}

	n, err := newTestAdapter(conn).Exec(context.Background(),
		"UPDATE `piwik_option` SET `option_value` = 'a`b' WHERE `autoload` = 1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t,
		[]string{`UPDATE "piwik_option" SET "option_value" = 'a` + "`" + `b' WHERE "autoload" = 1`},
		conn.Statements())
}

func TestExec_RowCountIsUniformAcrossKinds(t *testing.T) {
	tests := map[string]int64{
		"SELECT 4":     4,
		"INSERT 0 2":   2,
		"DELETE 7":     7,
		"CREATE TABLE": 0,
	}
	for tag, want := range tests {
		t.Run(tag, func(t *testing.T) {
			conn := &testhelpers.FakeConn{
				ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
					return pgconn.NewCommandTag(tag), nil
				},
			}
			n, err := newTestAdapter(conn).Exec(context.Background(), "SELECT 1")
			require.NoError(t, err)
			assert.Equal(t, want, n)
		})
	}
}

func TestExec_UnsupportedStatements(t *testing.T) {
	for _, sql := range []string{"", "   ", "-- only a comment", "LOAD DATA INFILE"} {
		t.Run(sql, func(t *testing.T) {
			conn := &testhelpers.FakeConn{}
			_, err := newTestAdapter(conn).Exec(context.Background(), sql)
			assert.ErrorIs(t, err, sqlport.ErrUnsupportedStatement)
			assert.Empty(t, conn.Calls())
		})
	}
}

func TestExec_DuplicateTableError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42P07", Message: `relation "piwik_site" already exists`}
	conn := &testhelpers.FakeConn{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, pgErr
		},
	}
	a := newTestAdapter(conn)

	_, err := a.Exec(context.Background(), "CREATE TABLE `piwik_site` (idsite SERIAL)")
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlport.ErrTableAlreadyExists)
	assert.ErrorIs(t, err, sqlport.ErrExecutionFailed)
	assert.True(t, a.IsDuplicateTable(err))

	var got *pgconn.PgError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, "42P07", got.Code)
}

func TestExec_OtherErrorsAreNotDuplicates(t *testing.T) {
	conn := &testhelpers.FakeConn{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "42601"}
		},
	}
	a := newTestAdapter(conn)

	_, err := a.Exec(context.Background(), "SELEC 1")
	assert.ErrorIs(t, err, sqlport.ErrExecutionFailed)
	assert.NotErrorIs(t, err, sqlport.ErrTableAlreadyExists)
	assert.False(t, a.IsDuplicateTable(err))
	assert.False(t, a.IsDuplicateTable(nil))
}

func TestExecStatement_Variants(t *testing.T) {
	conn := &testhelpers.FakeConn{}
	a := newTestAdapter(conn)
	ctx := context.Background()

	n, err := a.ExecStatement(ctx, sqlport.LockStatement{SQL: "UNLOCK TABLES", Unlock: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = a.ExecStatement(ctx, sqlport.PlainStatement{SQL: "DELETE FROM `t`"})
	require.NoError(t, err)
	assert.Equal(t, []string{`DELETE FROM "t"`}, conn.Statements())

	_, err = a.ExecStatement(ctx, nil)
	assert.ErrorIs(t, err, sqlport.ErrUnsupportedStatement)

	_, err = a.ExecStatement(ctx, sqlport.BulkLoadRequest{})
	assert.ErrorIs(t, err, sqlport.ErrInvalidConfig)
}

func TestFetchAll_BindsPlaceholders(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	conn := &testhelpers.FakeConn{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (sqlport.Rows, error) {
			gotSQL, gotArgs = sql, args
			return testhelpers.NewRows([]string{"idsite", "name"},
				[]any{int32(1), "a"},
				[]any{int32(2), "b"},
			), nil
		},
	}

	rows, err := newTestAdapter(conn).FetchAll(context.Background(),
		"SELECT `idsite`, `name` FROM `piwik_site` WHERE `idsite` > ? AND `name` <> '?'", 0)
	require.NoError(t, err)

	assert.Equal(t, `SELECT "idsite", "name" FROM "piwik_site" WHERE "idsite" > $1 AND "name" <> '?'`, gotSQL)
	assert.Equal(t, []any{0}, gotArgs)
	assert.Equal(t, []map[string]any{
		{"idsite": int32(1), "name": "a"},
		{"idsite": int32(2), "name": "b"},
	}, rows)
}

func TestFetchAll_PlaceholderCountMismatch(t *testing.T) {
	conn := &testhelpers.FakeConn{}
	_, err := newTestAdapter(conn).FetchAll(context.Background(), "SELECT ? , ?", 1)
	assert.ErrorIs(t, err, sqlport.ErrInvalidConfig)
	assert.Empty(t, conn.Calls())
}

func TestFetchAll_RowsError(t *testing.T) {
	rows := testhelpers.NewRows([]string{"a"}).WithErr(&pgconn.PgError{Code: "57014"})
	conn := &testhelpers.FakeConn{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (sqlport.Rows, error) {
			return rows, nil
		},
	}
	_, err := newTestAdapter(conn).FetchAll(context.Background(), "SELECT a FROM t")
	assert.ErrorIs(t, err, sqlport.ErrExecutionFailed)
	assert.True(t, rows.Closed())
}

func TestFetchOne(t *testing.T) {
	conn := &testhelpers.FakeConn{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (sqlport.Rows, error) {
			if strings.Contains(sql, "missing") {
				return testhelpers.NewRows([]string{"v"}), nil
			}
			return testhelpers.NewRows([]string{"v"}, []any{"first"}, []any{"second"}), nil
		},
	}
	a := newTestAdapter(conn)

	row, err := a.FetchOne(context.Background(), "SELECT v FROM present")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": "first"}, row)

	row, err = a.FetchOne(context.Background(), "SELECT v FROM missing")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestFetchCol(t *testing.T) {
	conn := &testhelpers.FakeConn{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (sqlport.Rows, error) {
			return testhelpers.NewRows([]string{"name", "other"},
				[]any{"piwik_site", 1},
				[]any{"piwik_user", 2},
			), nil
		},
	}
	col, err := newTestAdapter(conn).FetchCol(context.Background(), "SELECT name, other FROM t")
	require.NoError(t, err)
	assert.Equal(t, []any{"piwik_site", "piwik_user"}, col)
}

func TestCheckServerVersion(t *testing.T) {
	tests := []struct {
		server  string
		minimum string
		target  error
	}{
		{"16.4 (Debian 16.4-1.pgdg120+1)", "9.5", nil},
		{"9.5.0", "9.5", nil},
		{"9.4.26", "9.5", sqlport.ErrServerVersion},
		{"10.1", "9.5", nil},
		{"9.6", "9.10", sqlport.ErrServerVersion},
		{"16.4", "latest", sqlport.ErrInvalidConfig},
		{"devel", "9.5", sqlport.ErrServerVersion},
	}
	for _, tt := range tests {
		t.Run(tt.server+">="+tt.minimum, func(t *testing.T) {
			conn := &testhelpers.FakeConn{
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) sqlport.Row {
					assert.Equal(t, "SHOW server_version", sql)
					return testhelpers.RowOf(tt.server)
				},
			}
			err := newTestAdapter(conn).CheckServerVersion(context.Background(), tt.minimum)
			if tt.target == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestClientVersion(t *testing.T) {
	a := newTestAdapter(&testhelpers.FakeConn{Parameters: map[string]string{"server_version": "16.4 (Homebrew)"}})
	assert.Equal(t, "16.4.0", a.ClientVersion())

	a = newTestAdapter(&testhelpers.FakeConn{})
	assert.Equal(t, "", a.ClientVersion())
}

func TestIsConnectionUTF8(t *testing.T) {
	tests := []struct {
		name      string
		parameter string
		shown     string
		want      bool
	}{
		{"startup parameter", "UTF8", "", true},
		{"other encoding", "SQL_ASCII", "", false},
		{"queried when not reported", "", "utf8", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &testhelpers.FakeConn{
				Parameters: map[string]string{"server_encoding": tt.parameter},
				QueryRowFunc: func(ctx context.Context, sql string, args ...any) sqlport.Row {
					return testhelpers.RowOf(tt.shown)
				},
			}
			got, err := newTestAdapter(conn).IsConnectionUTF8(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type countingCloser struct{ n int }

func (c *countingCloser) Close() error {
	c.n++
	return nil
}

func TestClose(t *testing.T) {
	closer := &countingCloser{}
	a := newTestAdapter(&testhelpers.FakeConn{}, WithCloser(closer))

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, closer.n)

	assert.NoError(t, newTestAdapter(&testhelpers.FakeConn{}).Close())
}
