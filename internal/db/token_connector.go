package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/sqlport/internal/logging"
	"github.com/vvka-141/sqlport/internal/retry"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// tokenExpiryWarning is how close to expiry a freshly issued token triggers a warning.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector authenticates with a short-lived cloud token used as
// the PostgreSQL password (AWS IAM, Azure Entra ID).
type TokenBasedConnector struct {
	config        *sqlport.ConnectionConfig
	tokenProvider TokenProvider
	retryExecutor *retry.Executor
	providerName  string
	logger        sqlport.Logger
}

// NewTokenBasedConnector creates a connector that uses a TokenProvider for authentication.
// providerName appears in log and error messages.
func NewTokenBasedConnector(config *sqlport.ConnectionConfig, tokenProvider TokenProvider, providerName string, logger sqlport.Logger) *TokenBasedConnector {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		retryExecutor: newConnectRetryExecutor(logger),
		providerName:  providerName,
		logger:        logger,
	}
}

func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	return retry.Do(ctx, c.retryExecutor, func(ctx context.Context) (*pgxpool.Pool, error) {
		token, expiresOn, err := c.tokenProvider.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire %s token: %w", c.providerName, err)
		}
		c.logger.Verbose("acquired token from %s", c.tokenProvider)

		if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning {
			c.logger.Info("Warning: %s token expires in %v", c.providerName, remaining.Round(time.Second))
		}

		configWithToken := *c.config
		configWithToken.Password = token

		return openPool(ctx, BuildConnectionString(&configWithToken), c.config, c.logger)
	})
}
