package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlport/internal/config"
	"github.com/vvka-141/sqlport/internal/db"
	"github.com/vvka-141/sqlport/internal/logging"
	"github.com/vvka-141/sqlport/internal/mysql"
	"github.com/vvka-141/sqlport/internal/postgres"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// connectionFlags holds the common connection-related flag values.
type connectionFlags struct {
	connection     string
	engine         string
	host           string
	port           int
	username       string
	database       string
	sslMode        string
	authMethod     string
	azureTenantID  string
	azureClientID  string
	awsRegion      string
	googleInstance string
	projectDir     string
	envFiles       []string
	timeout        time.Duration
}

// addConnectionFlags registers the connection flags on cmd.
func addConnectionFlags(cmd *cobra.Command, f *connectionFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.connection, "connection", "", "Connection string (postgresql://, mysql:// or ADO.NET form)")
	fs.StringVar(&f.engine, "engine", "", "Database engine when no connection string names it: postgres or mysql")
	fs.StringVarP(&f.host, "host", "h", "", "Server host")
	fs.IntVarP(&f.port, "port", "p", 0, "Server port (default 5432 for postgres, 3306 for mysql)")
	fs.StringVarP(&f.username, "username", "U", "", "User name")
	fs.StringVarP(&f.database, "database", "d", "", "Target database")
	fs.StringVar(&f.sslMode, "sslmode", "", "SSL mode: disable, prefer, require, verify-ca, verify-full")
	fs.StringVar(&f.authMethod, "auth", "", "Authentication method: standard, aws, google, azure")
	fs.StringVar(&f.azureTenantID, "azure-tenant-id", "", "Azure tenant ID for Entra ID authentication")
	fs.StringVar(&f.azureClientID, "azure-client-id", "", "Azure client ID for Entra ID authentication")
	fs.StringVar(&f.awsRegion, "aws-region", "", "AWS region for RDS IAM authentication")
	fs.StringVar(&f.googleInstance, "google-instance", "", "Cloud SQL instance (project:region:instance) for Google IAM authentication")
	fs.StringVar(&f.projectDir, "project", ".", "Directory holding sqlport.yaml")
	fs.StringSliceVar(&f.envFiles, "env-file", nil, "Environment file(s) to load before resolving the connection")
	fs.DurationVar(&f.timeout, "timeout", 0, "Abort the command after this duration (0 disables)")
}

// commandEnv is everything a database command needs after flag resolution.
type commandEnv struct {
	project    *config.ProjectConfig
	resolution *db.Resolution
	logger     sqlport.Logger
	verbose    bool
}

// resolveCommandEnv loads the environment files and sqlport.yaml, then
// resolves the connection.
func resolveCommandEnv(cmd *cobra.Command, f *connectionFlags) (*commandEnv, error) {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	project, err := config.LoadProject(f.projectDir, f.envFiles...)
	if err != nil {
		return nil, err
	}

	res, err := db.ResolveConnectionParams(
		f.connection,
		f.engine,
		&db.GranularConnFlags{
			Host:     f.host,
			Port:     f.port,
			Username: f.username,
			Database: f.database,
			SSLMode:  f.sslMode,
		},
		&db.CloudFlags{
			AuthMethod:     f.authMethod,
			AWSRegion:      f.awsRegion,
			GoogleInstance: f.googleInstance,
			AzureTenantID:  f.azureTenantID,
			AzureClientID:  f.azureClientID,
		},
		db.LoadFromEnvironment(),
		project,
	)
	if err != nil {
		return nil, err
	}
	res.Config.AppName = "sqlport"

	env := &commandEnv{project: project, resolution: res, logger: logger, verbose: verbose}
	logConnectionVerbose(logger, res)
	return env, nil
}

// commandContext applies --timeout, then sqlport.yaml's timeout, to the
// command context.
func commandContext(cmd *cobra.Command, f *connectionFlags, project *config.ProjectConfig) (context.Context, context.CancelFunc, error) {
	timeout := f.timeout
	if project != nil && project.Timeout != "" && !cmd.Flags().Changed("timeout") {
		parsed, err := time.ParseDuration(project.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid timeout in %s: %v: %w", config.ConfigFileName, err, sqlport.ErrInvalidConfig)
		}
		timeout = parsed
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

// logConnectionVerbose logs connection details when verbose mode is enabled.
func logConnectionVerbose(logger sqlport.Logger, res *db.Resolution) {
	c := res.Config
	logger.Verbose("Connection resolved:")
	logger.Verbose("  Engine: %s", res.Engine)
	logger.Verbose("  Host: %s", c.Host)
	logger.Verbose("  Port: %d", c.Port)
	logger.Verbose("  User: %s", c.Username)
	logger.Verbose("  Target Database: %s", c.Database)
	if res.MaintenanceDB != "" {
		logger.Verbose("  Maintenance Database: %s", res.MaintenanceDB)
	}
	logger.Verbose("  SSL Mode: %s", c.SSLMode)
	logger.Verbose("  Auth Method: %s", c.AuthMethod)
}

// openAdapter connects to the target database. Tests replace it.
var openAdapter = func(ctx context.Context, env *commandEnv) (sqlport.Adapter, error) {
	switch env.resolution.Engine {
	case sqlport.EngineMySQL:
		adapter, err := mysql.Open(ctx, env.resolution.Config, env.logger)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		session, err := openSession(ctx, env.resolution.Config, env.logger)
		if err != nil {
			return nil, err
		}
		return postgres.New(session, env.logger,
			postgres.WithCloser(session),
			postgres.WithBulkLoadOptions(env.project.BulkLoadOptions()),
		), nil
	}
}

// maintenanceConn is a connection to the maintenance database.
type maintenanceConn interface {
	sqlport.Querier
	io.Closer
}

// openMaintenance connects to the PostgreSQL maintenance database for
// CREATE and DROP DATABASE. Tests replace it.
var openMaintenance = func(ctx context.Context, env *commandEnv) (maintenanceConn, error) {
	if env.resolution.Engine != sqlport.EnginePostgres {
		return nil, fmt.Errorf("database management needs PostgreSQL, not %s: %w", env.resolution.Engine, sqlport.ErrUnsupportedEngine)
	}
	cfg := *env.resolution.Config
	cfg.Database = env.resolution.MaintenanceDB
	session, err := openSession(ctx, &cfg, env.logger)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func openSession(ctx context.Context, cfg *sqlport.ConnectionConfig, logger sqlport.Logger) (*db.Session, error) {
	connector, err := db.NewConnector(cfg, logger)
	if err != nil {
		return nil, err
	}
	return db.OpenSession(ctx, connector)
}

// requireDatabase fails when no target database was resolved.
func requireDatabase(env *commandEnv, commandName string) error {
	if env.resolution.Config.Database != "" {
		return nil
	}
	return fmt.Errorf("database name is required\n"+
		"Provide via:\n"+
		"  1. --database/-d flag: sqlport %s -d piwik\n"+
		"  2. Connection string: sqlport %s --connection \"postgresql://user@host/piwik\"\n"+
		"  3. Environment variable: export PGDATABASE=piwik\n"+
		"  4. sqlport.yaml: connection.database: %w",
		commandName, commandName, sqlport.ErrInvalidConfig)
}

// withAdapter resolves the connection, opens the adapter, and runs fn.
func withAdapter(cmd *cobra.Command, f *connectionFlags, fn func(ctx context.Context, env *commandEnv, adapter sqlport.Adapter) error) error {
	env, err := resolveCommandEnv(cmd, f)
	if err != nil {
		return err
	}
	if err := requireDatabase(env, cmd.Name()); err != nil {
		return err
	}
	ctx, cancel, err := commandContext(cmd, f, env.project)
	if err != nil {
		return err
	}
	defer cancel()

	adapter, err := openAdapter(ctx, env)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := adapter.Close(); cerr != nil {
			env.logger.Error("close connection: %v", cerr)
		}
	}()
	return fn(ctx, env, adapter)
}
