package dialect

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want sqlport.StatementKind
	}{
		{"lock write", "LOCK TABLES `piwik_option` WRITE", sqlport.KindLock},
		{"lock several", "LOCK TABLES t1 READ, t2 WRITE", sqlport.KindLock},
		{"unlock", "UNLOCK TABLES", sqlport.KindLock},
		{"lowercase unlock", "  unlock tables;", sqlport.KindLock},
		{"lock after comment", "/* archiver */ LOCK TABLES `t` WRITE", sqlport.KindLock},
		{"load data", "LOAD DATA INFILE '/tmp/a.csv' INTO TABLE `t`", sqlport.KindBulkLoad},
		{"load data local", "load data local infile '/tmp/a.csv' replace into table t", sqlport.KindBulkLoad},
		{"select", "SELECT * FROM `t`", sqlport.KindPlain},
		{"insert", "INSERT INTO t (a) VALUES (1)", sqlport.KindPlain},
		{"lock text inside literal", "INSERT INTO log (msg) VALUES ('LOCK TABLES failed')", sqlport.KindPlain},
		{"load text inside literal", "SELECT 'LOAD DATA INFILE x'", sqlport.KindPlain},
		{"block tables column", "SELECT block_tables FROM t", sqlport.KindPlain},
		{"postgres native", "SELECT a.attname FROM pg_index i WHERE i.indisprimary", sqlport.KindPlain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t"},
		{"only comment", "-- nothing here\n"},
		{"lock without tables", "LOCK TABLES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.sql)
			if !errors.Is(err, sqlport.ErrUnsupportedStatement) {
				t.Errorf("Classify(%q) error = %v, want ErrUnsupportedStatement", tt.sql, err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	stmt, err := Parse("UNLOCK TABLES")
	require.NoError(t, err)
	lock, ok := stmt.(sqlport.LockStatement)
	require.True(t, ok, "expected LockStatement, got %T", stmt)
	assert.True(t, lock.Unlock)

	stmt, err = Parse("LOCK TABLES `t` WRITE")
	require.NoError(t, err)
	assert.False(t, stmt.(sqlport.LockStatement).Unlock)

	stmt, err = Parse("LOAD DATA INFILE '/tmp/x' INTO TABLE `t` (`id`)")
	require.NoError(t, err)
	req, ok := stmt.(sqlport.BulkLoadRequest)
	require.True(t, ok, "expected BulkLoadRequest, got %T", stmt)
	assert.Equal(t, "t", req.Table)
	assert.Equal(t, []string{"id"}, req.Columns)

	stmt, err = Parse("SELECT `a` FROM `t`")
	require.NoError(t, err)
	assert.Equal(t, sqlport.PlainStatement{SQL: "SELECT `a` FROM `t`"}, stmt)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "SELECT 1 FROM t", Preview("SELECT 1\n\tFROM   t"))

	long := "SELECT " + strings.Repeat("x", 300)
	got := Preview(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Len(t, got, sqlport.MaxErrorPreviewLength+3)
}

func TestSplitStatements(t *testing.T) {
	script := "LOCK TABLES `t` WRITE;\n" +
		"INSERT INTO `t` VALUES ('a;b');\n" +
		"-- trailing comment; still one statement\n" +
		"UNLOCK TABLES;\n;\n"

	got, err := SplitStatements(script)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "LOCK TABLES `t` WRITE", got[0])
	assert.Equal(t, "INSERT INTO `t` VALUES ('a;b')", got[1])
	assert.Contains(t, got[2], "UNLOCK TABLES")
}

func TestSplitStatements_Empty(t *testing.T) {
	got, err := SplitStatements("  \n ")
	require.NoError(t, err)
	assert.Empty(t, got)
}
