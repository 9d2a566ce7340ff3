// Package testing holds helpers shared by sqlport tests: database
// provisioning for integration tests and in-memory connection fakes.
package testing

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/vvka-141/sqlport/internal/db"
	"github.com/vvka-141/sqlport/internal/db/manager"
	"github.com/vvka-141/sqlport/internal/logging"
	"github.com/vvka-141/sqlport/internal/testinfra"
)

var (
	pgContainerOnce sync.Once
	pgContainerConn string
	pgContainerErr  error

	mysqlContainerOnce sync.Once
	mysqlContainerDSN  string
	mysqlContainerErr  error
)

func getOrStartPostgres() (string, error) {
	pgContainerOnce.Do(func() {
		container, err := testinfra.StartSimplePostgres(context.Background())
		if err != nil {
			pgContainerErr = err
			return
		}
		pgContainerConn = container.ConnString
	})
	return pgContainerConn, pgContainerErr
}

func getOrStartMySQL() (string, error) {
	mysqlContainerOnce.Do(func() {
		container, err := testinfra.StartMySQL(context.Background())
		if err != nil {
			mysqlContainerErr = err
			return
		}
		mysqlContainerDSN = container.DSN
	})
	return mysqlContainerDSN, mysqlContainerErr
}

// GetTestConnectionString returns the PostgreSQL test connection string.
// Priority: SQLPORT_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv("SQLPORT_TEST_CONN"); connString != "" {
		return connString
	}

	connString, err := getOrStartPostgres()
	if err != nil {
		t.Skipf("SQLPORT_TEST_CONN not set and Docker unavailable: %v", err)
	}
	return connString
}

// GetTestMySQLDSN returns a go-sql-driver DSN for the MySQL test server.
// Priority: SQLPORT_TEST_MYSQL_DSN env var > auto-started testcontainer > skip test.
func GetTestMySQLDSN(t *testing.T) string {
	t.Helper()

	if dsn := os.Getenv("SQLPORT_TEST_MYSQL_DSN"); dsn != "" {
		return dsn
	}

	dsn, err := getOrStartMySQL()
	if err != nil {
		t.Skipf("SQLPORT_TEST_MYSQL_DSN not set and Docker unavailable: %v", err)
	}
	return dsn
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// RequireMySQL combines SkipIfShort and GetTestMySQLDSN.
func RequireMySQL(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestMySQLDSN(t)
}

// UniqueDBName returns a database name that will not collide across test runs.
func UniqueDBName(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}

// CreateTestDB creates a scratch database and registers its removal with t.Cleanup.
// It returns a connection string pointing at the new database.
func CreateTestDB(t *testing.T, connString, dbName string) string {
	t.Helper()

	session, closeSession := openSession(t, connString)
	defer closeSession()

	if err := manager.New().Create(context.Background(), session, dbName); err != nil {
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}
	t.Cleanup(func() { CleanupTestDB(t, connString, dbName) })

	cfg, _, err := db.ParseConnectionString(connString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	cfg.Database = dbName
	return db.BuildConnectionString(cfg)
}

// CleanupTestDB terminates connections to dbName and drops it.
func CleanupTestDB(t *testing.T, connString, dbName string) {
	t.Helper()

	session, closeSession := openSession(t, connString)
	defer closeSession()

	ctx := context.Background()
	mgr := manager.New()
	if err := mgr.TerminateConnections(ctx, session, dbName); err != nil {
		t.Logf("Warning: %v", err)
	}
	if err := mgr.Drop(ctx, session, dbName); err != nil {
		t.Logf("Warning: %v", err)
	}
}

// OpenTestSession opens a Session on connString and closes it with the test.
func OpenTestSession(t *testing.T, connString string) *db.Session {
	t.Helper()

	session, closeSession := openSession(t, connString)
	t.Cleanup(closeSession)
	return session
}

func openSession(t *testing.T, connString string) (*db.Session, func()) {
	t.Helper()

	cfg, _, err := db.ParseConnectionString(connString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}
	connector, err := db.NewConnector(cfg, logging.NewNullLogger())
	if err != nil {
		t.Fatalf("Failed to create connector: %v", err)
	}
	session, err := db.OpenSession(context.Background(), connector)
	if err != nil {
		t.Fatalf("Failed to open session: %v", err)
	}
	return session, func() { _ = session.Close() }
}
