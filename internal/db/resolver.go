package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/sqlport/internal/config"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// GranularConnFlags holds connection parameters given as individual CLI flags.
//
// Password is deliberately not a flag. Use $PGPASSWORD, $MYSQL_PWD or a
// connection string instead.
type GranularConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
}

// IsEmpty reports whether no server-addressing flag was given.
// Database is excluded because it may override the database of a connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == ""
}

// CloudFlags selects a cloud authentication method and its parameters.
// Secrets only come from the environment.
type CloudFlags struct {
	AuthMethod     string
	AWSRegion      string
	GoogleInstance string
	AzureTenantID  string
	AzureClientID  string
}

// EnvVars captures the environment variables the resolver consults.
type EnvVars struct {
	SQLPORT_CONNECTION_STRING string
	DATABASE_URL              string

	PGHOST     string
	PGPORT     string
	PGUSER     string
	PGPASSWORD string
	PGDATABASE string
	PGSSLMODE  string

	MYSQL_HOST     string
	MYSQL_TCP_PORT string
	MYSQL_PWD      string

	AWS_REGION          string
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		SQLPORT_CONNECTION_STRING: os.Getenv("SQLPORT_CONNECTION_STRING"),
		DATABASE_URL:              os.Getenv("DATABASE_URL"),
		PGHOST:                    os.Getenv("PGHOST"),
		PGPORT:                    os.Getenv("PGPORT"),
		PGUSER:                    os.Getenv("PGUSER"),
		PGPASSWORD:                os.Getenv("PGPASSWORD"),
		PGDATABASE:                os.Getenv("PGDATABASE"),
		PGSSLMODE:                 os.Getenv("PGSSLMODE"),
		MYSQL_HOST:                os.Getenv("MYSQL_HOST"),
		MYSQL_TCP_PORT:            os.Getenv("MYSQL_TCP_PORT"),
		MYSQL_PWD:                 os.Getenv("MYSQL_PWD"),
		AWS_REGION:                os.Getenv("AWS_REGION"),
		AZURE_TENANT_ID:           os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:           os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET:       os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// Resolution is the outcome of ResolveConnectionParams.
type Resolution struct {
	Config *sqlport.ConnectionConfig
	Engine sqlport.Engine
	// MaintenanceDB is the database used for CREATE/DROP DATABASE.
	// Empty for MySQL, which needs no database to connect.
	MaintenanceDB string
}

// ResolveConnectionParams resolves connection parameters with this precedence:
//
//  1. --connection flag
//  2. granular flags (-h, -p, -U, -d), then engine environment variables
//     (PG* or MYSQL_*), then sqlport.yaml, then defaults
//  3. $SQLPORT_CONNECTION_STRING, then $DATABASE_URL, when no granular flag is set
//
// The engine comes from the connection string scheme, else engineFlag, else
// sqlport.yaml, else PostgreSQL. Giving both --connection and granular flags
// is an error.
func ResolveConnectionParams(
	connStringFlag string,
	engineFlag string,
	granularFlags *GranularConnFlags,
	cloudFlags *CloudFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*Resolution, error) {
	if granularFlags == nil {
		granularFlags = &GranularConnFlags{}
	}
	if cloudFlags == nil {
		cloudFlags = &CloudFlags{}
	}
	if envVars == nil {
		envVars = &EnvVars{}
	}

	if connStringFlag != "" && !granularFlags.IsEmpty() {
		return nil, fmt.Errorf(
			"cannot specify both --connection and granular flags (-h, -p, -U)\n"+
				"Choose one approach:\n"+
				"  1. Connection string: --connection \"postgresql://user@localhost:5432/piwik\"\n"+
				"  2. Granular flags: -h localhost -p 5432 -U myuser -d piwik\n"+
				"  3. Environment variables: export PGHOST=localhost PGPORT=5432 PGUSER=myuser: %w",
			sqlport.ErrInvalidConfig,
		)
	}

	engine, err := resolveEngine(engineFlag, projectConfig)
	if err != nil {
		return nil, err
	}

	connStr := connStringFlag
	if connStr == "" && granularFlags.IsEmpty() {
		connStr = envVars.SQLPORT_CONNECTION_STRING
		if connStr == "" {
			connStr = envVars.DATABASE_URL
		}
	}

	var res *Resolution
	if connStr != "" {
		res, err = resolveFromConnectionString(connStr, engineFlag, granularFlags, envVars, projectConfig)
	} else {
		res, err = resolveFromGranularParams(engine, granularFlags, envVars, projectConfig)
	}
	if err != nil {
		return nil, err
	}

	if err := applyCloudAuth(res.Config, cloudFlags, envVars, projectConfig); err != nil {
		return nil, err
	}
	return res, nil
}

func resolveEngine(engineFlag string, projectConfig *config.ProjectConfig) (sqlport.Engine, error) {
	if engineFlag != "" {
		return sqlport.ParseEngine(engineFlag)
	}
	return projectConfig.EngineOrDefault(), nil
}

// applyCloudAuth picks the authentication method: flag > sqlport.yaml >
// Azure credentials in the environment > standard.
func applyCloudAuth(cfg *sqlport.ConnectionConfig, flags *CloudFlags, env *EnvVars, projectConfig *config.ProjectConfig) error {
	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	method := firstNonEmpty(flags.AuthMethod, pc.AuthMethod)
	authMethod, err := sqlport.ParseAuthMethod(method)
	if err != nil {
		return err
	}

	tenantID := firstNonEmpty(flags.AzureTenantID, env.AZURE_TENANT_ID, pc.AzureTenantID)
	clientID := firstNonEmpty(flags.AzureClientID, env.AZURE_CLIENT_ID, pc.AzureClientID)
	if method == "" && (tenantID != "" || clientID != "") {
		authMethod = sqlport.AuthMethodAzureEntraID
	}

	cfg.AuthMethod = authMethod
	switch authMethod {
	case sqlport.AuthMethodAzureEntraID:
		cfg.AzureTenantID = tenantID
		cfg.AzureClientID = clientID
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	case sqlport.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(flags.AWSRegion, env.AWS_REGION, pc.AWSRegion)
	case sqlport.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(flags.GoogleInstance, pc.GoogleInstance)
	}
	return nil
}

// resolveFromConnectionString parses connStr. Its database becomes the
// maintenance database; -d selects the target. Unset parameters fall back
// to the environment as libpq does.
func resolveFromConnectionString(
	connStr string,
	engineFlag string,
	flags *GranularConnFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*Resolution, error) {
	cfg, engine, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %v: %w", err, sqlport.ErrInvalidConfig)
	}
	if engineFlag != "" {
		flagEngine, err := sqlport.ParseEngine(engineFlag)
		if err != nil {
			return nil, err
		}
		if flagEngine != engine {
			return nil, fmt.Errorf("--engine %s contradicts %s connection string: %w", flagEngine, engine, sqlport.ErrInvalidConfig)
		}
	}

	maintenanceDB := ""
	if engine == sqlport.EnginePostgres {
		if cfg.SSLMode == "" {
			cfg.SSLMode = firstNonEmpty(envVars.PGSSLMODE, "prefer")
		}
		maintenanceDB = cfg.Database
		if projectConfig != nil && projectConfig.Connection.ManagementDatabase != "" {
			maintenanceDB = projectConfig.Connection.ManagementDatabase
		}
		if maintenanceDB == "" {
			maintenanceDB = sqlport.DefaultManagementDB
		}
	}

	if flags.Database != "" {
		cfg.Database = flags.Database
	}

	return &Resolution{Config: cfg, Engine: engine, MaintenanceDB: maintenanceDB}, nil
}

// resolveFromGranularParams builds the config with, per parameter,
// flag > environment > sqlport.yaml > default precedence.
func resolveFromGranularParams(
	engine sqlport.Engine,
	flags *GranularConnFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*Resolution, error) {
	cfg := &sqlport.ConnectionConfig{
		AuthMethod:       sqlport.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	envHost, envPort, envUser, envPassword, envDatabase, envSSLMode := envVars.PGHOST, envVars.PGPORT,
		envVars.PGUSER, envVars.PGPASSWORD, envVars.PGDATABASE, envVars.PGSSLMODE
	portVar := "PGPORT"
	if engine == sqlport.EngineMySQL {
		envHost, envPort, envUser, envPassword, envDatabase, envSSLMode = envVars.MYSQL_HOST, envVars.MYSQL_TCP_PORT,
			"", envVars.MYSQL_PWD, "", ""
		portVar = "MYSQL_TCP_PORT"
	}

	cfg.Host = firstNonEmpty(flags.Host, envHost, pc.Host, "localhost")

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case envPort != "":
		port, err := strconv.Atoi(envPort)
		if err != nil {
			return nil, fmt.Errorf("invalid $%s value '%s': must be an integer: %w", portVar, envPort, sqlport.ErrInvalidConfig)
		}
		cfg.Port = port
	case pc.Port != 0:
		cfg.Port = pc.Port
	default:
		cfg.Port = engine.DefaultPort()
	}

	cfg.Username = firstNonEmpty(flags.Username, envUser, pc.Username, os.Getenv("USER"), os.Getenv("USERNAME"))
	cfg.Password = envPassword
	cfg.Database = firstNonEmpty(flags.Database, envDatabase, pc.Database)

	maintenanceDB := ""
	if engine == sqlport.EnginePostgres {
		cfg.SSLMode = firstNonEmpty(flags.SSLMode, envSSLMode, pc.SSLMode, "prefer")
		maintenanceDB = firstNonEmpty(pc.ManagementDatabase, sqlport.DefaultManagementDB)
	} else {
		cfg.SSLMode = firstNonEmpty(flags.SSLMode, pc.SSLMode)
	}

	return &Resolution{Config: cfg, Engine: engine, MaintenanceDB: maintenanceDB}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
