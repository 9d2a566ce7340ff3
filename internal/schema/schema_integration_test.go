package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlport/internal/logging"
	"github.com/vvka-141/sqlport/internal/postgres"
	"github.com/vvka-141/sqlport/internal/schema"
	testhelpers "github.com/vvka-141/sqlport/internal/testing"
)

func TestIntegration_InstallCoreTables(t *testing.T) {
	connString := testhelpers.RequireDatabase(t)
	dbConn := testhelpers.CreateTestDB(t, connString, testhelpers.UniqueDBName("sqlport_schema"))
	adapter := postgres.New(testhelpers.OpenTestSession(t, dbConn), logging.NewNullLogger())
	ctx := context.Background()

	m, err := schema.New(adapter, "piwik_", logging.NewNullLogger())
	require.NoError(t, err)

	has, err := m.HasTables(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	created, err := m.CreateTables(ctx)
	require.NoError(t, err)
	assert.Len(t, created, len(m.TableNames())-2)

	again, err := m.CreateTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, m.CreateAnonymousUser(ctx))
	require.NoError(t, m.CreateAnonymousUser(ctx))
	row, err := adapter.FetchOne(ctx, "SELECT COUNT(*) AS n FROM `piwik_user` WHERE login = 'anonymous'")
	require.NoError(t, err)
	assert.EqualValues(t, 1, row["n"])

	require.NoError(t, m.CreateTable(ctx, "archive_numeric_2024_01", "idarchive INT(10) UNSIGNED NOT NULL, name VARCHAR(255) NOT NULL, PRIMARY KEY (idarchive, name)"))
	require.NoError(t, m.CreateTable(ctx, "archive_numeric_2024_01", "idarchive INT(10) UNSIGNED NOT NULL"))

	installed, err := m.TablesInstalled(ctx, true)
	require.NoError(t, err)
	assert.Contains(t, installed, "piwik_archive_numeric_2024_01")
	assert.Contains(t, installed, "piwik_user")

	cols, err := m.TableColumns(ctx, "piwik_option")
	require.NoError(t, err)
	assert.Equal(t, []string{"option_name", "option_value", "autoload"}, cols)

	truncated, err := m.TruncateAllTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, truncated, "piwik_user")
	row, err = adapter.FetchOne(ctx, "SELECT COUNT(*) AS n FROM piwik_user")
	require.NoError(t, err)
	assert.EqualValues(t, 0, row["n"])
}
