package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlport/internal/schema"
	"github.com/vvka-141/sqlport/internal/ui"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

var (
	schemaFlags          connectionFlags
	schemaPrefix         string
	schemaForce          bool
	schemaCreateDatabase bool
	schemaAll            bool
)

// newApprover builds the confirmation prompt for destructive commands. Tests replace it.
var newApprover = ui.NewApprover

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Install and inspect the core tables on PostgreSQL",
	Long: `Manages the application's core tables on a PostgreSQL database.

Table names carry a prefix: --prefix, else table_prefix in sqlport.yaml,
else piwik_.`,
}

var schemaInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Create missing core tables and the anonymous user",
	Long: `Creates every core table that does not exist yet, except the monthly
archive templates, then inserts the anonymous user unless present.

Example:
  sqlport schema install -d piwik --create-database`,
	Args: cobra.NoArgs,
	RunE: runSchemaInstall,
}

var schemaTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List installed core and archive tables",
	Args:  cobra.NoArgs,
	RunE:  runSchemaTables,
}

var schemaSQLCmd = &cobra.Command{
	Use:   "sql [name]",
	Short: "Print the CREATE statement of one or every core table",
	Long: `Prints CREATE statements without connecting. name is the table name
without prefix, for example log_visit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchemaSQL,
}

var schemaColumnsCmd = &cobra.Command{
	Use:   "columns <table>",
	Short: "List the columns of a table",
	Args:  RequireTableName,
	RunE:  runSchemaColumns,
}

var schemaCreateTableCmd = &cobra.Command{
	Use:   "create-table <name> <definition>",
	Short: "Create prefix+name from a MySQL column definition list",
	Long: `Creates a table from a MySQL column definition list. Integer display
widths and UNSIGNED are rewritten for PostgreSQL. An existing table is left alone.

Example:
  sqlport schema create-table archive_numeric_2024_01 \
    "idarchive INT(10) UNSIGNED NOT NULL, name VARCHAR(255) NOT NULL, PRIMARY KEY (idarchive, name)"`,
	Args: requireArgs(`archive_blob_2024_01 "idarchive INT(10) UNSIGNED NOT NULL"`, "name", "definition"),
	RunE: runSchemaCreateTable,
}

var schemaTruncateCmd = &cobra.Command{
	Use:   "truncate",
	Short: "Empty every table carrying the prefix",
	Args:  cobra.NoArgs,
	RunE:  runSchemaTruncate,
}

var schemaCreateDatabaseCmd = &cobra.Command{
	Use:   "create-database [name]",
	Short: "Create the target database unless it exists",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchemaCreateDatabase,
}

var schemaDropDatabaseCmd = &cobra.Command{
	Use:   "drop-database [name]",
	Short: "Disconnect other sessions and drop the target database",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchemaDropDatabase,
}

func init() {
	for _, c := range []*cobra.Command{
		schemaInstallCmd, schemaTablesCmd, schemaSQLCmd, schemaColumnsCmd, schemaCreateTableCmd,
		schemaTruncateCmd, schemaCreateDatabaseCmd, schemaDropDatabaseCmd,
	} {
		addConnectionFlags(c, &schemaFlags)
		c.Flags().StringVar(&schemaPrefix, "prefix", "", "Table prefix (default from sqlport.yaml, else piwik_)")
		schemaCmd.AddCommand(c)
	}
	schemaInstallCmd.Flags().BoolVar(&schemaCreateDatabase, "create-database", false, "Create the target database first")
	schemaTablesCmd.Flags().BoolVar(&schemaAll, "all", false, "List the whole catalogue, installed or not")
	for _, c := range []*cobra.Command{schemaTruncateCmd, schemaDropDatabaseCmd} {
		c.Flags().BoolVar(&schemaForce, "force", false, "Skip the typed confirmation (a countdown still runs)")
	}
	rootCmd.AddCommand(schemaCmd)
}

func tablePrefix(env *commandEnv) string {
	if schemaPrefix != "" {
		return schemaPrefix
	}
	return env.project.TablePrefixOrDefault()
}

// withSchema opens the adapter and wraps it in a schema manager.
func withSchema(cmd *cobra.Command, fn func(ctx context.Context, env *commandEnv, m *schema.Manager) error) error {
	return withAdapter(cmd, &schemaFlags, func(ctx context.Context, env *commandEnv, adapter sqlport.Adapter) error {
		database, ok := adapter.(schema.Database)
		if !ok {
			return fmt.Errorf("schema commands need PostgreSQL, not %s: %w", adapter.Engine(), sqlport.ErrUnsupportedEngine)
		}
		m, err := schema.New(database, tablePrefix(env), env.logger)
		if err != nil {
			return err
		}
		return fn(ctx, env, m)
	})
}

func runSchemaInstall(cmd *cobra.Command, _ []string) error {
	if schemaCreateDatabase {
		if err := createDatabase(cmd, ""); err != nil {
			return err
		}
	}
	return withSchema(cmd, func(ctx context.Context, env *commandEnv, m *schema.Manager) error {
		out := cmd.OutOrStdout()
		created, err := m.CreateTables(ctx)
		for _, name := range created {
			fmt.Fprintf(out, "created %s\n", name)
		}
		if err != nil {
			return err
		}
		if err := m.CreateAnonymousUser(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d table(s) created\n", len(created))
		return nil
	})
}

func runSchemaTables(cmd *cobra.Command, _ []string) error {
	return withSchema(cmd, func(ctx context.Context, _ *commandEnv, m *schema.Manager) error {
		installed, err := m.TablesInstalled(ctx, true)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !schemaAll {
			for _, name := range installed {
				fmt.Fprintln(out, name)
			}
			return nil
		}
		for _, name := range m.TableNames() {
			mark := "missing"
			if slices.Contains(installed, name) {
				mark = "installed"
			}
			fmt.Fprintf(out, "%-40s %s\n", name, mark)
		}
		return nil
	})
}

func runSchemaSQL(cmd *cobra.Command, args []string) error {
	env, err := resolveCommandEnv(cmd, &schemaFlags)
	if err != nil {
		return err
	}
	m, err := schema.New(offlineDatabase{}, tablePrefix(env), env.logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		stmt, err := m.TableCreateSQL(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, stmt)
		return nil
	}
	all := m.TablesCreateSQL()
	for _, name := range m.TableNames() {
		fmt.Fprintln(out, all[name[len(m.Prefix()):]])
		fmt.Fprintln(out)
	}
	return nil
}

func runSchemaColumns(cmd *cobra.Command, args []string) error {
	return withSchema(cmd, func(ctx context.Context, _ *commandEnv, m *schema.Manager) error {
		cols, err := m.TableColumns(ctx, args[0])
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return fmt.Errorf("table %s: %w", args[0], sqlport.ErrUnknownTable)
		}
		for _, c := range cols {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	})
}

func runSchemaCreateTable(cmd *cobra.Command, args []string) error {
	return withSchema(cmd, func(ctx context.Context, _ *commandEnv, m *schema.Manager) error {
		if err := m.CreateTable(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "table %s%s ready\n", m.Prefix(), args[0])
		return nil
	})
}

func runSchemaTruncate(cmd *cobra.Command, _ []string) error {
	return withSchema(cmd, func(ctx context.Context, env *commandEnv, m *schema.Manager) error {
		if err := approve(ctx, env, "truncate every table of", m.Prefix()+"*"); err != nil {
			return err
		}
		tables, err := m.TruncateAllTables(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d table(s) truncated\n", len(tables))
		return nil
	})
}

func runSchemaCreateDatabase(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	return createDatabase(cmd, name)
}

func createDatabase(cmd *cobra.Command, name string) error {
	return withMaintenance(cmd, name, func(ctx context.Context, env *commandEnv, m *schema.Manager, conn maintenanceConn, name string) error {
		created, err := m.CreateDatabase(ctx, conn, name)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "database %s created\n", name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "database %s already exists\n", name)
		}
		return nil
	})
}

func runSchemaDropDatabase(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	return withMaintenance(cmd, name, func(ctx context.Context, env *commandEnv, m *schema.Manager, conn maintenanceConn, name string) error {
		if err := approve(ctx, env, "drop database", name); err != nil {
			return err
		}
		if err := m.DropDatabase(ctx, conn, name); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "database %s dropped\n", name)
		return nil
	})
}

// withMaintenance connects to the maintenance database. name defaults to
// the resolved target database.
func withMaintenance(cmd *cobra.Command, name string, fn func(ctx context.Context, env *commandEnv, m *schema.Manager, conn maintenanceConn, name string) error) error {
	env, err := resolveCommandEnv(cmd, &schemaFlags)
	if err != nil {
		return err
	}
	if name == "" {
		if err := requireDatabase(env, cmd.Name()); err != nil {
			return err
		}
		name = env.resolution.Config.Database
	}
	if name == env.resolution.MaintenanceDB {
		return fmt.Errorf("database %s is the maintenance database; set connection.management_database in sqlport.yaml: %w", name, sqlport.ErrInvalidConfig)
	}

	ctx, cancel, err := commandContext(cmd, &schemaFlags, env.project)
	if err != nil {
		return err
	}
	defer cancel()

	conn, err := openMaintenance(ctx, env)
	if err != nil {
		return err
	}
	defer conn.Close()

	m, err := schema.New(offlineDatabase{}, tablePrefix(env), env.logger)
	if err != nil {
		return err
	}
	return fn(ctx, env, m, conn, name)
}

func approve(ctx context.Context, env *commandEnv, action, target string) error {
	approver, err := newApprover(schemaForce, env.verbose)
	if err != nil {
		return err
	}
	ok, err := approver.RequestApproval(ctx, action, target)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s: %w", action, target, sqlport.ErrApprovalDenied)
	}
	return nil
}

// offlineDatabase backs schema managers that only render SQL or manage
// databases through a separate connection.
type offlineDatabase struct{}

func (offlineDatabase) Exec(context.Context, string) (int64, error) {
	return 0, fmt.Errorf("no table connection: %w", sqlport.ErrInvalidConfig)
}

func (offlineDatabase) ListTables(context.Context, string) ([]string, error) {
	return nil, fmt.Errorf("no table connection: %w", sqlport.ErrInvalidConfig)
}

func (offlineDatabase) TableColumns(context.Context, string) ([]string, error) {
	return nil, fmt.Errorf("no table connection: %w", sqlport.ErrInvalidConfig)
}

func (offlineDatabase) IsDuplicateTable(error) bool { return false }
