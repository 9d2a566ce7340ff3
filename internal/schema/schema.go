// Package schema installs and inspects the application's core tables on
// PostgreSQL.
//
// Table definitions are embedded from tables/*.sql with a {prefix}
// placeholder in front of every table and index name.
package schema

import (
	"context"
	"embed"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/sqlport/internal/db/manager"
	"github.com/vvka-141/sqlport/internal/dialect"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

//go:embed tables/*.sql
var tableFiles embed.FS

const prefixPlaceholder = "{prefix}"

// coreTables lists the catalogue in creation order.
var coreTables = []string{
	"user",
	"access",
	"site",
	"site_setting",
	"site_url",
	"goal",
	"logger_message",
	"log_action",
	"log_visit",
	"log_conversion_item",
	"log_conversion",
	"log_link_visit_action",
	"log_profiling",
	"option",
	"session",
	"archive_numeric",
	"archive_blob",
	"sequence",
}

// archiveTemplates are copied per month by the application and never
// created by CreateTables.
var archiveTemplates = []string{"archive_numeric", "archive_blob"}

var validPrefix = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

var templates = loadTemplates()

func loadTemplates() map[string]string {
	out := make(map[string]string, len(coreTables))
	for _, name := range coreTables {
		data, err := tableFiles.ReadFile("tables/" + name + ".sql")
		if err != nil {
			panic(fmt.Sprintf("missing table definition %s: %v", name, err))
		}
		out[name] = strings.TrimSpace(string(data))
	}
	return out
}

// Database is the connection surface the manager needs.
// *postgres.Adapter satisfies it.
type Database interface {
	Exec(ctx context.Context, sql string) (int64, error)
	ListTables(ctx context.Context, like string) ([]string, error)
	TableColumns(ctx context.Context, table string) ([]string, error)
	IsDuplicateTable(err error) bool
}

// Manager installs the core tables under one table prefix.
//
// Thread-Safety: safe for concurrent use if db is. The installed-table
// list is cached until a call changes the schema.
type Manager struct {
	db        Database
	prefix    string
	logger    sqlport.Logger
	databases sqlport.DatabaseManager
	now       func() time.Time

	mu        sync.Mutex
	installed []string
	loaded    bool
}

// New creates a schema manager for tables named prefix+name.
// Panics if db or logger is nil.
func New(db Database, prefix string, logger sqlport.Logger) (*Manager, error) {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if !validPrefix.MatchString(prefix) {
		return nil, fmt.Errorf("table prefix %q may only contain letters, digits and underscores: %w", prefix, sqlport.ErrInvalidConfig)
	}
	return &Manager{
		db:        db,
		prefix:    prefix,
		logger:    logger,
		databases: manager.New(),
		now:       time.Now,
	}, nil
}

// Prefix returns the table prefix.
func (m *Manager) Prefix() string { return m.prefix }

func (m *Manager) table(name string) string {
	return pgx.Identifier{m.prefix + name}.Sanitize()
}

// TablesCreateSQL returns the CREATE statements of every core table keyed
// by unprefixed name.
func (m *Manager) TablesCreateSQL() map[string]string {
	out := make(map[string]string, len(templates))
	for name, sql := range templates {
		out[name] = strings.ReplaceAll(sql, prefixPlaceholder, m.prefix)
	}
	return out
}

// TableCreateSQL returns the CREATE statement of one core table.
func (m *Manager) TableCreateSQL(name string) (string, error) {
	sql, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("table %q: %w", name, sqlport.ErrUnknownTable)
	}
	return strings.ReplaceAll(sql, prefixPlaceholder, m.prefix), nil
}

// TableNames returns the prefixed names of the core tables in creation order.
func (m *Manager) TableNames() []string {
	out := make([]string, len(coreTables))
	for i, name := range coreTables {
		out[i] = m.prefix + name
	}
	return out
}

// TablesInstalled returns the core tables present in the database followed
// by the monthly archive tables. The result is cached; forceReload reads
// the catalog again.
func (m *Manager) TablesInstalled(ctx context.Context, forceReload bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded && !forceReload {
		return slices.Clone(m.installed), nil
	}

	existing, err := m.db.ListTables(ctx, EscapeLike(m.prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("list installed tables: %w", err)
	}

	installed := []string{}
	seen := make(map[string]bool)
	for _, name := range m.TableNames() {
		if slices.Contains(existing, name) {
			installed = append(installed, name)
			seen[name] = true
		}
	}
	for _, tmpl := range archiveTemplates {
		for _, name := range existing {
			if strings.HasPrefix(name, m.prefix+tmpl) && !seen[name] {
				installed = append(installed, name)
				seen[name] = true
			}
		}
	}

	m.installed = installed
	m.loaded = true
	return slices.Clone(installed), nil
}

// HasTables reports whether any core or archive table is installed.
func (m *Manager) HasTables(ctx context.Context) (bool, error) {
	tables, err := m.TablesInstalled(ctx, true)
	if err != nil {
		return false, err
	}
	return len(tables) > 0, nil
}

func (m *Manager) invalidate() {
	m.mu.Lock()
	m.loaded = false
	m.mu.Unlock()
}

// CreateTable creates prefix+nameWithoutPrefix from a MySQL column
// definition list. Integer column types are rewritten for PostgreSQL.
// A table that already exists is not an error.
func (m *Manager) CreateTable(ctx context.Context, nameWithoutPrefix, definition string) error {
	stmt := fmt.Sprintf("CREATE TABLE %s ( %s )", m.table(nameWithoutPrefix), dialect.RewriteColumnDefinitions(definition))
	defer m.invalidate()

	if _, err := m.db.Exec(ctx, stmt); err != nil {
		if m.db.IsDuplicateTable(err) {
			m.logger.Verbose("table %s%s already exists", m.prefix, nameWithoutPrefix)
			return nil
		}
		return err
	}
	return nil
}

// CreateTables creates every missing core table except the archive
// templates. It returns the names of the tables it created.
func (m *Manager) CreateTables(ctx context.Context) ([]string, error) {
	installed, err := m.TablesInstalled(ctx, true)
	if err != nil {
		return nil, err
	}
	defer m.invalidate()

	var created []string
	for _, name := range coreTables {
		if slices.Contains(archiveTemplates, name) || slices.Contains(installed, m.prefix+name) {
			continue
		}
		sql, _ := m.TableCreateSQL(name)
		m.logger.Verbose("creating table %s%s", m.prefix, name)
		if _, err := m.db.Exec(ctx, sql); err != nil {
			return created, fmt.Errorf("create table %s%s: %w", m.prefix, name, err)
		}
		created = append(created, m.prefix+name)
	}
	return created, nil
}

// CreateAnonymousUser inserts the anonymous user row unless it exists.
func (m *Manager) CreateAnonymousUser(ctx context.Context) error {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (login, password, alias, email, token_auth, superuser_access, date_registered) "+
			"VALUES ('anonymous', '', 'anonymous', 'anonymous@example.org', 'anonymous', 0, '%s') ON CONFLICT DO NOTHING",
		m.table("user"), m.now().UTC().Format(time.DateTime))
	if _, err := m.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create anonymous user: %w", err)
	}
	return nil
}

// TruncateAllTables empties every table carrying the prefix and returns
// their names.
func (m *Manager) TruncateAllTables(ctx context.Context) ([]string, error) {
	tables, err := m.db.ListTables(ctx, EscapeLike(m.prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for _, t := range tables {
		m.logger.Verbose("truncating %s", t)
		if _, err := m.db.Exec(ctx, "TRUNCATE "+pgx.Identifier{t}.Sanitize()); err != nil {
			return nil, fmt.Errorf("truncate %s: %w", t, err)
		}
	}
	return tables, nil
}

// TableColumns returns the column names of table in ordinal order.
func (m *Manager) TableColumns(ctx context.Context, table string) ([]string, error) {
	return m.db.TableColumns(ctx, table)
}

// CreateDatabase creates name unless it exists. conn must be a connection
// to another database, outside any transaction.
func (m *Manager) CreateDatabase(ctx context.Context, conn sqlport.Querier, name string) (bool, error) {
	exists, err := m.databases.Exists(ctx, conn, name)
	if err != nil {
		return false, err
	}
	if exists {
		m.logger.Verbose("database %s already exists", name)
		return false, nil
	}
	if err := m.databases.Create(ctx, conn, name); err != nil {
		return false, err
	}
	return true, nil
}

// DropDatabase disconnects other sessions from name and drops it if it exists.
func (m *Manager) DropDatabase(ctx context.Context, conn sqlport.Querier, name string) error {
	if err := m.databases.TerminateConnections(ctx, conn, name); err != nil {
		return err
	}
	return m.databases.Drop(ctx, conn, name)
}

// EscapeLike makes s match literally in a LIKE pattern.
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `_`, `\_`, `%`, `\%`).Replace(s)
}
