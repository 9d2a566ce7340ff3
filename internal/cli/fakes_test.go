package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	testhelpers "github.com/vvka-141/sqlport/internal/testing"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// fakeAdapter satisfies sqlport.Adapter and schema.Database.
// Unset func fields succeed with zero results.
type fakeAdapter struct {
	engine        sqlport.Engine
	execFunc      func(sql string) (int64, error)
	fetchAllFunc  func(sql string) ([]map[string]any, error)
	bulkLoadFunc  func(req sqlport.BulkLoadRequest) (int64, error)
	serverVersion string
	checkErr      error
	utf8          bool
	tables        []string
	columns       map[string][]string

	executed []string
	minimum  string
	closed   bool
}

func (f *fakeAdapter) Engine() sqlport.Engine {
	if f.engine == "" {
		return sqlport.EnginePostgres
	}
	return f.engine
}

func (f *fakeAdapter) Exec(_ context.Context, sql string) (int64, error) {
	f.executed = append(f.executed, sql)
	if f.execFunc != nil {
		return f.execFunc(sql)
	}
	return 0, nil
}

func (f *fakeAdapter) ExecStatement(ctx context.Context, stmt sqlport.Statement) (int64, error) {
	return 0, errors.New("not used")
}

func (f *fakeAdapter) BulkLoad(_ context.Context, req sqlport.BulkLoadRequest) (int64, error) {
	if f.bulkLoadFunc != nil {
		return f.bulkLoadFunc(req)
	}
	return 0, nil
}

func (f *fakeAdapter) FetchAll(_ context.Context, sql string, _ ...any) ([]map[string]any, error) {
	if f.fetchAllFunc != nil {
		return f.fetchAllFunc(sql)
	}
	return nil, nil
}

func (f *fakeAdapter) FetchOne(context.Context, string, ...any) (map[string]any, error) {
	return nil, nil
}

func (f *fakeAdapter) FetchCol(context.Context, string, ...any) ([]any, error) {
	return nil, nil
}

func (f *fakeAdapter) ServerVersion(context.Context) (string, error) {
	return f.serverVersion, nil
}

func (f *fakeAdapter) CheckServerVersion(_ context.Context, minimum string) error {
	f.minimum = minimum
	return f.checkErr
}

func (f *fakeAdapter) IsConnectionUTF8(context.Context) (bool, error) { return f.utf8, nil }
func (f *fakeAdapter) IsDuplicateTable(err error) bool {
	return errors.Is(err, sqlport.ErrTableAlreadyExists)
}
func (f *fakeAdapter) HasBulkLoader() bool   { return true }
func (f *fakeAdapter) HasBlobDataType() bool { return true }

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func (f *fakeAdapter) ListTables(context.Context, string) ([]string, error) {
	return f.tables, nil
}

func (f *fakeAdapter) TableColumns(_ context.Context, table string) ([]string, error) {
	return f.columns[table], nil
}

// mysqlOnly hides the catalog methods the way the MySQL adapter lacks them.
type mysqlOnly struct{ sqlport.Adapter }

type fakeMaintenance struct {
	*testhelpers.FakeConn
	closed bool
}

func (f *fakeMaintenance) Close() error {
	f.closed = true
	return nil
}

type fakeApprover struct {
	approve bool
	action  string
	target  string
}

func (a *fakeApprover) RequestApproval(_ context.Context, action, target string) (bool, error) {
	a.action, a.target = action, target
	return a.approve, nil
}

// resetFlags restores every package-level flag value to its default.
func resetFlags() {
	for _, f := range []*connectionFlags{&execFlags, &queryFlags, &loadFlags, &checkFlags, &schemaFlags} {
		*f = connectionFlags{projectDir: "."}
	}
	execFile = ""
	queryFormat = "table"
	loadOpts = loadOptions{delimiter: sqlport.DefaultFieldDelimiter}
	checkMinimum = ""
	schemaPrefix = ""
	schemaForce = false
	schemaCreateDatabase = false
	schemaAll = false
}

// runCLI executes the root command with a fake adapter and a clean
// environment, returning stdout.
func runCLI(t *testing.T, adapter sqlport.Adapter, args ...string) (string, error) {
	t.Helper()
	for _, v := range []string{
		"SQLPORT_CONNECTION_STRING", "DATABASE_URL", "PGHOST", "PGPORT", "PGUSER",
		"PGPASSWORD", "PGDATABASE", "PGSSLMODE", "MYSQL_HOST", "MYSQL_TCP_PORT", "MYSQL_PWD",
		"AZURE_TENANT_ID", "AZURE_CLIENT_ID",
	} {
		t.Setenv(v, "")
	}
	resetFlags()

	origOpen := openAdapter
	t.Cleanup(func() { openAdapter = origOpen })
	openAdapter = func(context.Context, *commandEnv) (sqlport.Adapter, error) {
		require.NotNil(t, adapter, "command opened an adapter")
		return adapter, nil
	}

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append(args, "--project", t.TempDir()))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), err
}
