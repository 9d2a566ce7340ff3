package mysql

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/vvka-141/sqlport/internal/db"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// defaultCharset makes every connection exchange UTF-8 unless the
// connection string asks for something else.
const defaultCharset = "utf8mb4"

// tlsModes maps PostgreSQL-style sslmode values, accepted by every sqlport
// connection flag, to go-sql-driver tls settings.
var tlsModes = map[string]string{
	"":            "",
	"disable":     "false",
	"false":       "false",
	"allow":       "preferred",
	"prefer":      "preferred",
	"preferred":   "preferred",
	"require":     "skip-verify",
	"required":    "skip-verify",
	"skip-verify": "skip-verify",
	"verify-ca":   "true",
	"verify-full": "true",
	"true":        "true",
}

// BuildDSN renders cfg as a go-sql-driver DSN. Token-based authentication
// is not part of the DSN; NewConfig installs it as a connect hook.
func BuildDSN(cfg *sqlport.ConnectionConfig) (string, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	port := cfg.Port
	if port == 0 {
		port = sqlport.DefaultMySQLPort
	}
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.Timeout = cfg.ConnectTimeout

	tlsMode, ok := tlsModes[strings.ToLower(cfg.SSLMode)]
	if !ok {
		return "", fmt.Errorf("sslmode %q: %w", cfg.SSLMode, sqlport.ErrInvalidConfig)
	}
	mc.TLSConfig = tlsMode

	if cfg.AppName != "" {
		mc.ConnectionAttributes = "program_name:" + cfg.AppName
	}
	if len(cfg.AdditionalParams) > 0 {
		mc.Params = make(map[string]string, len(cfg.AdditionalParams))
		for k, v := range cfg.AdditionalParams {
			mc.Params[k] = v
		}
	}

	switch cfg.AuthMethod {
	case sqlport.AuthMethodStandard:
	case sqlport.AuthMethodAWSIAM, sqlport.AuthMethodAzureEntraID:
		// Tokens are sent as cleartext passwords, so TLS is mandatory.
		switch mc.TLSConfig {
		case "":
			mc.TLSConfig = "true"
		case "false", "preferred":
			return "", fmt.Errorf("%s authentication requires TLS, got sslmode %q: %w", cfg.AuthMethod, cfg.SSLMode, sqlport.ErrInvalidConfig)
		}
		mc.AllowCleartextPasswords = true
	default:
		return "", fmt.Errorf("%s authentication is not available for MySQL: %w", cfg.AuthMethod, sqlport.ErrUnsupportedAuthMethod)
	}

	return mc.FormatDSN(), nil
}

// NewConfig builds the driver configuration for cfg. Cloud IAM methods
// fetch a fresh token before every new connection.
func NewConfig(cfg *sqlport.ConnectionConfig, logger sqlport.Logger) (*mysql.Config, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}
	// Parsing normalizes driver parameters such as charset.
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse MySQL DSN: %v: %w", err, sqlport.ErrInvalidConfig)
	}
	mc.Logger = driverLogger{logger: logger}

	var opts []mysql.Option
	if _, ok := cfg.AdditionalParams["charset"]; !ok {
		opts = append(opts, mysql.Charset(defaultCharset, ""))
	}

	if cfg.AuthMethod != sqlport.AuthMethodStandard {
		provider, err := db.NewTokenProvider(cfg)
		if err != nil {
			return nil, err
		}
		logger.Verbose("MySQL %s authentication via %s", cfg.AuthMethod, provider)
		opts = append(opts, mysql.BeforeConnect(func(ctx context.Context, c *mysql.Config) error {
			token, _, err := provider.GetToken(ctx)
			if err != nil {
				return fmt.Errorf("failed to acquire %s token: %w", cfg.AuthMethod, err)
			}
			c.Passwd = token
			return nil
		}))
	}

	if err := mc.Apply(opts...); err != nil {
		return nil, fmt.Errorf("configure MySQL driver: %v: %w", err, sqlport.ErrInvalidConfig)
	}
	return mc, nil
}

// driverLogger sends go-sql-driver diagnostics to the verbose log.
type driverLogger struct {
	logger sqlport.Logger
}

func (l driverLogger) Print(v ...any) {
	l.logger.Verbose("mysql driver: %s", fmt.Sprint(v...))
}
