package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/sqlport/internal/logging"
	"github.com/vvka-141/sqlport/internal/retry"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

const (
	// DefaultMaxConns bounds the pool. An adapter pins one connection;
	// the rest serve management queries.
	DefaultMaxConns = 4

	DefaultMinConns = 1

	DefaultMaxConnIdleTime = 30 * time.Minute
)

func configurePool(poolConfig *pgxpool.Config, logger sqlport.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Verbose("%s: %s", notice.Severity, notice.Message)
	}
}

func newConnectRetryExecutor(logger sqlport.Logger) *retry.Executor {
	strategy := retry.NewExponentialBackoff(sqlport.DefaultRetryMaxAttempts,
		retry.WithInitialDelay(sqlport.DefaultRetryInitialDelay),
		retry.WithMaxDelay(sqlport.DefaultRetryMaxDelay),
	)
	return retry.NewExecutor(retry.NewPostgreSQLErrorClassifier(), strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Verbose("connect attempt %d failed, retrying in %v: %v", attempt, delay, err)
		})
}

// openPool parses connStr, opens a pool and pings it.
func openPool(ctx context.Context, connStr string, config *sqlport.ConnectionConfig, logger sqlport.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	configurePool(poolConfig, logger)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}
	return pool, nil
}

// StandardConnector connects with username/password authentication and
// retries transient failures.
type StandardConnector struct {
	config        *sqlport.ConnectionConfig
	logger        sqlport.Logger
	retryExecutor *retry.Executor
}

func NewStandardConnector(config *sqlport.ConnectionConfig, logger sqlport.Logger) *StandardConnector {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &StandardConnector{
		config:        config,
		logger:        logger,
		retryExecutor: newConnectRetryExecutor(logger),
	}
}

func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := BuildConnectionString(c.config)
	return retry.Do(ctx, c.retryExecutor, func(ctx context.Context) (*pgxpool.Pool, error) {
		return openPool(ctx, connStr, c.config, c.logger)
	})
}

// NewConnector creates the Connector matching config.AuthMethod.
func NewConnector(config *sqlport.ConnectionConfig, logger sqlport.Logger) (sqlport.Connector, error) {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	switch config.AuthMethod {
	case sqlport.AuthMethodStandard:
		return NewStandardConnector(config, logger), nil
	case sqlport.AuthMethodAWSIAM:
		return newAWSConnector(config, logger)
	case sqlport.AuthMethodGoogleIAM:
		return newGoogleConnector(config, logger)
	case sqlport.AuthMethodAzureEntraID:
		return newAzureConnector(config, logger)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, sqlport.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError adds actionable guidance to a raw pgx connection error
// and chains sqlport.ErrConnectionFailed.
func wrapConnectionError(err error, host string, port int, database string) error {
	return fmt.Errorf("%w: %w", sqlport.ErrConnectionFailed, guideConnectionError(err, host, port, database))
}

func guideConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port
  - Firewall blocking the connection

Original error: %w`, addr, host, port, err)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable

Original error: %w`, host, err)

	case strings.Contains(errStr, "password authentication failed"):
		return fmt.Errorf(`password authentication failed for database "%s"

Possible causes:
  - Wrong password (check $PGPASSWORD or the connection string)
  - Wrong username

Original error: %w`, database, err)

	case strings.Contains(errStr, "does not exist"):
		return fmt.Errorf(`database "%s" does not exist

To create it:
  sqlport schema create-database %s

Original error: %w`, database, database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets

Original error: %w`, addr, err)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		return fmt.Errorf(`SSL/TLS connection error

Possible causes:
  - Server requires SSL but --sslmode is wrong
  - Certificate verification failed (try --sslmode=require)

Original error: %w`, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf(`too many connections to database "%s"

max_connections is exhausted on the server.

Original error: %w`, database, err)

	default:
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
}

func newAWSConnector(config *sqlport.ConnectionConfig, logger sqlport.Logger) (sqlport.Connector, error) {
	tokenProvider, err := NewTokenProvider(config)
	if err != nil {
		return nil, err
	}
	return NewTokenBasedConnector(config, tokenProvider, "AWS IAM", logger), nil
}

func newGoogleConnector(config *sqlport.ConnectionConfig, logger sqlport.Logger) (sqlport.Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", sqlport.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires username (-U): %w", sqlport.ErrInvalidConfig)
	}

	return NewGoogleCloudSQLConnector(config, config.GoogleInstance, logger), nil
}

func newAzureConnector(config *sqlport.ConnectionConfig, logger sqlport.Logger) (sqlport.Connector, error) {
	tokenProvider, err := NewTokenProvider(config)
	if err != nil {
		return nil, err
	}
	return NewTokenBasedConnector(config, tokenProvider, "Azure", logger), nil
}

// NewTokenProvider returns the password token source for a token-based
// auth method. Azure uses Service Principal auth when tenant, client and
// secret are all set, and DefaultAzureCredential otherwise.
func NewTokenProvider(config *sqlport.ConnectionConfig) (TokenProvider, error) {
	switch config.AuthMethod {
	case sqlport.AuthMethodAWSIAM:
		endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)
		provider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS IAM token provider: %w", err)
		}
		return provider, nil

	case sqlport.AuthMethodAzureEntraID:
		if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
			provider, err := NewAzureServicePrincipalProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
			if err != nil {
				return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
			}
			return provider, nil
		}
		provider, err := NewAzureDefaultCredentialProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
		}
		return provider, nil

	default:
		return nil, fmt.Errorf("%s authentication does not use tokens: %w", config.AuthMethod, sqlport.ErrUnsupportedAuthMethod)
	}
}
