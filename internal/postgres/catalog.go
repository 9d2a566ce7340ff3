package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

const (
	// Table names are resolved with the search_path, the way the server
	// resolves them in the statements being translated.
	primaryKeyQuery = `
SELECT a.attname
FROM pg_catalog.pg_index i
JOIN pg_catalog.pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = $1::text::regclass AND i.indisprimary
ORDER BY array_position(i.indkey::int2[], a.attnum)`

	tableColumnsQuery = `
SELECT attname
FROM pg_catalog.pg_attribute
WHERE attrelid = $1::text::regclass AND attnum > 0 AND NOT attisdropped
ORDER BY attnum`

	tableExistsQuery = `SELECT to_regclass($1) IS NOT NULL`

	listTablesQuery = `
SELECT tablename
FROM pg_catalog.pg_tables
WHERE schemaname = current_schema() AND tablename LIKE $1
ORDER BY tablename`
)

// relation quotes a table name for a regclass lookup.
func relation(table string) string {
	return pgx.Identifier{table}.Sanitize()
}

func queryStrings(ctx context.Context, q sqlport.Querier, sql string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapExecError(err, sql)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapExecError(err, sql)
	}
	return out, nil
}

// primaryKeyColumns returns the primary key of table in index order.
// A table without a primary key yields an empty slice.
func primaryKeyColumns(ctx context.Context, q sqlport.Querier, table string) ([]string, error) {
	cols, err := queryStrings(ctx, q, primaryKeyQuery, relation(table))
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", table, err)
	}
	return cols, nil
}

// tableColumns returns the live columns of table in ordinal order.
func tableColumns(ctx context.Context, q sqlport.Querier, table string) ([]string, error) {
	cols, err := queryStrings(ctx, q, tableColumnsQuery, relation(table))
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	return cols, nil
}

func tableExists(ctx context.Context, q sqlport.Querier, table string) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, tableExistsQuery, relation(table)).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup of %s: %w", table, wrapExecError(err, tableExistsQuery))
	}
	return exists, nil
}

func listTables(ctx context.Context, q sqlport.Querier, like string) ([]string, error) {
	return queryStrings(ctx, q, listTablesQuery, like)
}

// PrimaryKeyColumns returns the primary key columns of table in index order.
func (a *Adapter) PrimaryKeyColumns(ctx context.Context, table string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return primaryKeyColumns(ctx, a.conn, table)
}

// TableColumns returns the column names of table in ordinal order.
func (a *Adapter) TableColumns(ctx context.Context, table string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return tableColumns(ctx, a.conn, table)
}

// TableExists reports whether table is visible on the search path.
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return tableExists(ctx, a.conn, table)
}

// ListTables returns the tables of the current schema whose name matches
// the LIKE pattern, sorted by name.
func (a *Adapter) ListTables(ctx context.Context, like string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return listTables(ctx, a.conn, like)
}
