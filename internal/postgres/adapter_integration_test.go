package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/vvka-141/sqlport/internal/logging"
	testhelpers "github.com/vvka-141/sqlport/internal/testing"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

func openIntegrationAdapter(t *testing.T) *Adapter {
	t.Helper()
	connString := testhelpers.RequireDatabase(t)
	dbConn := testhelpers.CreateTestDB(t, connString, testhelpers.UniqueDBName("sqlport_pg"))
	session := testhelpers.OpenTestSession(t, dbConn)
	return New(session, logging.NewNullLogger())
}

func TestIntegration_LoadDataMergesIntoTarget(t *testing.T) {
	a := openIntegrationAdapter(t)
	ctx := context.Background()

	_, err := a.Exec(ctx, "CREATE TABLE `t` (`id` INT PRIMARY KEY, `name` TEXT)")
	require.NoError(t, err)
	_, err = a.Exec(ctx, "INSERT INTO `t` VALUES (1, 'old')")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,new\n2,new2\n"), 0600))

	n, err := a.Exec(ctx, fmt.Sprintf(
		"LOAD DATA LOCAL INFILE '%s' REPLACE INTO TABLE `t` FIELDS TERMINATED BY ',' ENCLOSED BY '\"' ESCAPED BY '\\\\' (`id`, `name`)",
		path))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rows, err := a.FetchAll(ctx, "SELECT `id`, `name` FROM `t` ORDER BY `id`")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": int32(1), "name": "new"},
		{"id": int32(2), "name": "new2"},
	}, rows)

	exists, err := a.TableExists(ctx, "t_tmp")
	require.NoError(t, err)
	assert.False(t, exists, "staging table must be dropped")
}

func TestIntegration_LoadDataNullsHeaderAndIgnore(t *testing.T) {
	a := openIntegrationAdapter(t)
	ctx := context.Background()

	_, err := a.Exec(ctx, "CREATE TABLE `site` (`idsite` INT, `host` TEXT, `note` TEXT, PRIMARY KEY (`idsite`, `host`))")
	require.NoError(t, err)
	_, err = a.Exec(ctx, "INSERT INTO site VALUES (1, 'a', 'kept')")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sites.csv")
	require.NoError(t, os.WriteFile(path, []byte("idsite,host,note\n1,a,replaced\n2,b,\\N\n"), 0600))

	n, err := a.BulkLoad(ctx, sqlport.BulkLoadRequest{
		Table:       "site",
		Path:        path,
		Local:       true,
		EscapedBy:   `\`,
		IgnoreLines: 1,
		OnConflict:  sqlport.ConflictIgnore,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := a.FetchAll(ctx, "SELECT idsite, host, note FROM site ORDER BY idsite")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"idsite": int32(1), "host": "a", "note": "kept"},
		{"idsite": int32(2), "host": "b", "note": nil},
	}, got)
}

func TestIntegration_LoadDataTranscodesClientCharset(t *testing.T) {
	a := openIntegrationAdapter(t)
	ctx := context.Background()

	_, err := a.Exec(ctx, "CREATE TABLE `t` (`id` INT PRIMARY KEY, `name` TEXT)")
	require.NoError(t, err)

	encoded, err := charmap.CodePage850.NewEncoder().String("1,Zürich\n")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "cp850.csv")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0600))

	_, err = a.BulkLoad(ctx, sqlport.BulkLoadRequest{Table: "t", Path: path, Local: true, CharacterSet: "cp850"})
	require.NoError(t, err)

	name, err := a.FetchOne(ctx, "SELECT name FROM t WHERE id = ?", 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Zürich"}, name)
}

func TestIntegration_LoadDataWithoutPrimaryKeyLeavesTableUntouched(t *testing.T) {
	a := openIntegrationAdapter(t)
	ctx := context.Background()

	_, err := a.Exec(ctx, "CREATE TABLE nokey (id INT, name TEXT)")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,a\n"), 0600))

	_, err = a.BulkLoad(ctx, sqlport.BulkLoadRequest{Table: "nokey", Path: path, Local: true})
	assert.ErrorIs(t, err, sqlport.ErrMissingPrimaryKey)

	col, err := a.FetchCol(ctx, "SELECT count(*) FROM nokey")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(0)}, col)

	exists, err := a.TableExists(ctx, "nokey_tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIntegration_ServerFacts(t *testing.T) {
	a := openIntegrationAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.CheckServerVersion(ctx, sqlport.DefaultMinimumServerVersion))
	assert.ErrorIs(t, a.CheckServerVersion(ctx, "99"), sqlport.ErrServerVersion)
	assert.Regexp(t, `^\d+\.\d+\.\d+$`, a.ClientVersion())

	utf8, err := a.IsConnectionUTF8(ctx)
	require.NoError(t, err)
	assert.True(t, utf8)

	n, err := a.Exec(ctx, "LOCK TABLES `anything` WRITE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestIntegration_DuplicateTableAndCatalog(t *testing.T) {
	a := openIntegrationAdapter(t)
	ctx := context.Background()

	ddl := "CREATE TABLE `piwik_option` (`option_name` VARCHAR(255) NOT NULL, `option_value` TEXT, `autoload` SMALLINT, PRIMARY KEY (`option_name`))"
	_, err := a.Exec(ctx, ddl)
	require.NoError(t, err)

	_, err = a.Exec(ctx, ddl)
	require.Error(t, err)
	assert.True(t, a.IsDuplicateTable(err))

	cols, err := a.TableColumns(ctx, "piwik_option")
	require.NoError(t, err)
	assert.Equal(t, []string{"option_name", "option_value", "autoload"}, cols)

	pk, err := a.PrimaryKeyColumns(ctx, "piwik_option")
	require.NoError(t, err)
	assert.Equal(t, []string{"option_name"}, pk)

	tables, err := a.ListTables(ctx, `piwik\_%`)
	require.NoError(t, err)
	assert.Equal(t, []string{"piwik_option"}, tables)
}
