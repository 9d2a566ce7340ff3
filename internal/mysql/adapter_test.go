package mysql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlport/internal/logging"
	"github.com/vvka-141/sqlport/internal/retry"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	conn, err := db.Conn(context.Background())
	require.NoError(t, err)

	fast := retry.NewExecutor(retry.NewMySQLErrorClassifier(),
		retry.NewExponentialBackoff(2, retry.WithInitialDelay(time.Millisecond), retry.WithJitter(0)))
	a := New(conn, logging.NewNullLogger(), WithCloser(db), WithRetryExecutor(fast))
	a.newID = func() string { return "test" }
	return a, mock
}

func TestNew_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() { New(nil, logging.NewNullLogger()) })
}

func TestAdapter_Capabilities(t *testing.T) {
	a, _ := newMockAdapter(t)
	assert.Equal(t, sqlport.EngineMySQL, a.Engine())
	assert.True(t, a.HasBulkLoader())
	assert.True(t, a.HasBlobDataType())
	assert.Equal(t, 3306, a.DefaultPort())
}

func TestExec_PassesStatementsThrough(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		rows int64
	}{
		{"backticks untouched", "UPDATE `piwik_option` SET `option_value` = '1' WHERE `option_name` = 'x'", 1},
		{"lock runs on the server", "LOCK TABLES `piwik_log_action` WRITE", 0},
		{"unlock", "UNLOCK TABLES", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newMockAdapter(t)
			mock.ExpectExec(tt.sql).WillReturnResult(sqlmock.NewResult(0, tt.rows))

			n, err := a.Exec(context.Background(), tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.rows, n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExec_DuplicateTable(t *testing.T) {
	a, mock := newMockAdapter(t)
	const create = "CREATE TABLE `piwik_user` (`login` VARCHAR(100) NOT NULL)"
	mock.ExpectExec(create).WillReturnError(&mysql.MySQLError{Number: 1050, Message: "Table 'piwik_user' already exists"})

	_, err := a.Exec(context.Background(), create)
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlport.ErrExecutionFailed)
	assert.ErrorIs(t, err, sqlport.ErrTableAlreadyExists)
	assert.True(t, a.IsDuplicateTable(err))

	var myErr *mysql.MySQLError
	require.True(t, errors.As(err, &myErr))
	assert.Equal(t, uint16(1050), myErr.Number)
}

func TestExec_OtherErrors(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectExec("DROP TABLE nope").WillReturnError(&mysql.MySQLError{Number: 1051, Message: "Unknown table"})

	_, err := a.Exec(context.Background(), "DROP TABLE nope")
	assert.ErrorIs(t, err, sqlport.ErrExecutionFailed)
	assert.False(t, a.IsDuplicateTable(err))
}

func TestExec_UnparsableLoadData(t *testing.T) {
	a, mock := newMockAdapter(t)
	_, err := a.Exec(context.Background(), "LOAD DATA whatever")
	assert.ErrorIs(t, err, sqlport.ErrUnsupportedStatement)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExec_RoutesLoadData(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectExec("LOAD DATA LOCAL INFILE '/data/rows.csv' IGNORE INTO TABLE `t` FIELDS TERMINATED BY ','").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := a.Exec(context.Background(), "LOAD DATA LOCAL INFILE '/data/rows.csv' IGNORE INTO TABLE `t` FIELDS TERMINATED BY ','")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkLoad_LocalFile(t *testing.T) {
	a, mock := newMockAdapter(t)
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,a\n"), 0600))

	mock.ExpectExec(fmt.Sprintf("LOAD DATA LOCAL INFILE '%s' REPLACE INTO TABLE `t` FIELDS TERMINATED BY ',' (`id`, `name`)", path)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := a.BulkLoad(context.Background(), sqlport.BulkLoadRequest{
		Table:              "t",
		Columns:            []string{"id", "name"},
		Path:               path,
		Local:              true,
		FieldsTerminatedBy: ",",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkLoad_CompressedLocalFileUsesReader(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectExec("LOAD DATA LOCAL INFILE 'Reader::sqlport-test' REPLACE INTO TABLE `t`").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := a.BulkLoad(context.Background(), sqlport.BulkLoadRequest{
		Table: "t",
		Path:  "/data/rows.csv.gz",
		Local: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkLoad_RejectsServerSideCompressedFile(t *testing.T) {
	a, mock := newMockAdapter(t)
	_, err := a.BulkLoad(context.Background(), sqlport.BulkLoadRequest{Table: "t", Path: "/data/rows.csv.zst"})
	assert.ErrorIs(t, err, sqlport.ErrUnsupportedStatement)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkLoad_InvalidRequest(t *testing.T) {
	a, _ := newMockAdapter(t)
	_, err := a.BulkLoad(context.Background(), sqlport.BulkLoadRequest{Path: "/f"})
	assert.ErrorIs(t, err, sqlport.ErrInvalidConfig)
}

func TestBulkLoad_RetriesDeadlock(t *testing.T) {
	a, mock := newMockAdapter(t)
	const load = "LOAD DATA INFILE '/srv/rows.csv' REPLACE INTO TABLE `t`"
	mock.ExpectExec(load).WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectExec(load).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := a.BulkLoad(context.Background(), sqlport.BulkLoadRequest{Table: "t", Path: "/srv/rows.csv"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkLoad_FatalErrorNotRetried(t *testing.T) {
	a, mock := newMockAdapter(t)
	const load = "LOAD DATA INFILE '/srv/rows.csv' REPLACE INTO TABLE `t`"
	mock.ExpectExec(load).WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"})

	_, err := a.BulkLoad(context.Background(), sqlport.BulkLoadRequest{Table: "t", Path: "/srv/rows.csv"})
	assert.ErrorIs(t, err, sqlport.ErrExecutionFailed)
	assert.Contains(t, err.Error(), "bulk load into t")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchAll(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("SELECT idsite, name FROM piwik_site WHERE idsite > ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"idsite", "name"}).
			AddRow(int64(2), []byte("blog")).
			AddRow(int64(3), nil))

	rows, err := a.FetchAll(context.Background(), "SELECT idsite, name FROM piwik_site WHERE idsite > ?", 1)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"idsite": int64(2), "name": "blog"},
		{"idsite": int64(3), "name": nil},
	}, rows)
}

func TestFetchOne(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("SELECT option_value FROM piwik_option WHERE option_name = ?").
		WithArgs("version_core").
		WillReturnRows(sqlmock.NewRows([]string{"option_value"}).AddRow([]byte("4.0.0")).AddRow([]byte("ignored")))
	mock.ExpectQuery("SELECT 1 FROM piwik_option WHERE 0").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	row, err := a.FetchOne(context.Background(), "SELECT option_value FROM piwik_option WHERE option_name = ?", "version_core")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"option_value": "4.0.0"}, row)

	row, err = a.FetchOne(context.Background(), "SELECT 1 FROM piwik_option WHERE 0")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestFetchCol(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("SHOW TABLES LIKE 'piwik\\_%'").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_piwik"}).AddRow([]byte("piwik_log_visit")).AddRow([]byte("piwik_site")))

	col, err := a.FetchCol(context.Background(), "SHOW TABLES LIKE 'piwik\\_%'")
	require.NoError(t, err)
	assert.Equal(t, []any{"piwik_log_visit", "piwik_site"}, col)
}

func TestFetch_QueryError(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery("SELECT broken").WillReturnError(&mysql.MySQLError{Number: 1064, Message: "syntax"})

	_, err := a.FetchAll(context.Background(), "SELECT broken")
	assert.ErrorIs(t, err, sqlport.ErrExecutionFailed)
}

func TestCheckServerVersion(t *testing.T) {
	tests := []struct {
		name    string
		server  string
		minimum string
		wantErr error
	}{
		{"newer", "8.4.3", "5.5", nil},
		{"mariadb suffix", "10.11.6-MariaDB-log", "5.5", nil},
		{"older", "5.1.73", "5.5", sqlport.ErrServerVersion},
		{"garbage", "unknown", "5.5", sqlport.ErrServerVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mock := newMockAdapter(t)
			mock.ExpectQuery("SELECT VERSION()").
				WillReturnRows(sqlmock.NewRows([]string{"VERSION()"}).AddRow(tt.server))

			err := a.CheckServerVersion(context.Background(), tt.minimum)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCheckServerVersion_InvalidMinimum(t *testing.T) {
	a, mock := newMockAdapter(t)
	err := a.CheckServerVersion(context.Background(), "latest")
	assert.ErrorIs(t, err, sqlport.ErrInvalidConfig)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsConnectionUTF8(t *testing.T) {
	tests := map[string]bool{
		"utf8mb4": true,
		"utf8":    true,
		"UTF8MB3": true,
		"latin1":  false,
	}
	for charset, want := range tests {
		t.Run(charset, func(t *testing.T) {
			a, mock := newMockAdapter(t)
			mock.ExpectQuery("SELECT @@character_set_connection").
				WillReturnRows(sqlmock.NewRows([]string{"@@character_set_connection"}).AddRow(charset))

			got, err := a.IsConnectionUTF8(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestClose(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectClose()

	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
