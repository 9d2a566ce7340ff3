package db

import (
	"context"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/sqlport/internal/logging"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// GoogleCloudSQLConnector connects to Cloud SQL for PostgreSQL with IAM
// database authentication through the Cloud SQL Go Connector.
//
// Close must be called after the returned pool is closed to release the dialer.
type GoogleCloudSQLConnector struct {
	config   *sqlport.ConnectionConfig
	instance string
	logger   sqlport.Logger
	dialer   *cloudsqlconn.Dialer
}

// NewGoogleCloudSQLConnector takes the instance connection name (project:region:instance).
func NewGoogleCloudSQLConnector(config *sqlport.ConnectionConfig, instance string, logger sqlport.Logger) *GoogleCloudSQLConnector {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &GoogleCloudSQLConnector{config: config, instance: instance, logger: logger}
}

func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud SQL dialer: %w", err)
	}

	// TLS is handled by the dialer.
	dsn := fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable",
		c.instance, c.config.Username, c.config.Database)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	poolConfig.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.Dial(ctx, c.instance)
	}
	configurePool(poolConfig, c.logger)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("failed to connect to Cloud SQL instance %s: %w", c.instance, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		dialer.Close()
		return nil, fmt.Errorf("failed to ping Cloud SQL instance %s: %w", c.instance, err)
	}

	c.logger.Verbose("connected to Cloud SQL instance %s", c.instance)
	c.dialer = dialer
	return pool, nil
}

// Close releases the Cloud SQL dialer.
func (c *GoogleCloudSQLConnector) Close() error {
	if c.dialer != nil {
		c.dialer.Close()
		c.dialer = nil
	}
	return nil
}
