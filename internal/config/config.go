// Package config loads the sqlport.yaml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

const ConfigFileName = "sqlport.yaml"

type ConnectionConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Username           string `yaml:"username"`
	Database           string `yaml:"database"`
	ManagementDatabase string `yaml:"management_database,omitempty"`
	SSLMode            string `yaml:"sslmode"`
	AuthMethod         string `yaml:"auth_method,omitempty"`
	AzureTenantID      string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID      string `yaml:"azure_client_id,omitempty"`
	AWSRegion          string `yaml:"aws_region,omitempty"`
	GoogleInstance     string `yaml:"google_instance,omitempty"`
}

type BulkLoadConfig struct {
	// Transactional defaults to true when omitted.
	Transactional *bool `yaml:"transactional,omitempty"`
}

type ProjectConfig struct {
	Engine               string           `yaml:"engine"`
	Connection           ConnectionConfig `yaml:"connection"`
	TablePrefix          string           `yaml:"table_prefix"`
	MinimumServerVersion string           `yaml:"minimum_server_version,omitempty"`
	BulkLoad             BulkLoadConfig   `yaml:"bulk_load"`
	Timeout              string           `yaml:"timeout,omitempty"`
}

// Load reads sqlport.yaml from dir.
func Load(dir string) (*ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %v: %w", ConfigFileName, err, sqlport.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated fields.
func (c *ProjectConfig) Validate() error {
	var errs []error
	if _, err := sqlport.ParseEngine(c.Engine); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	if _, err := sqlport.ParseAuthMethod(c.Connection.AuthMethod); err != nil {
		errs = append(errs, fmt.Errorf("connection.auth_method: %w", err))
	}
	if c.Connection.Port < 0 || c.Connection.Port > 65535 {
		errs = append(errs, fmt.Errorf("connection.port %d out of range: %w", c.Connection.Port, sqlport.ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// EngineOrDefault returns the configured engine, PostgreSQL when unset.
func (c *ProjectConfig) EngineOrDefault() sqlport.Engine {
	if c == nil {
		return sqlport.EnginePostgres
	}
	e, err := sqlport.ParseEngine(c.Engine)
	if err != nil {
		return sqlport.EnginePostgres
	}
	return e
}

// BulkLoadOptions converts the bulk_load block into adapter options.
func (c *ProjectConfig) BulkLoadOptions() sqlport.BulkLoadOptions {
	opts := sqlport.DefaultBulkLoadOptions()
	if c != nil && c.BulkLoad.Transactional != nil {
		opts.Transactional = *c.BulkLoad.Transactional
	}
	return opts
}

// TablePrefixOrDefault returns the configured table prefix, DefaultTablePrefix when unset.
func (c *ProjectConfig) TablePrefixOrDefault() string {
	if c == nil || c.TablePrefix == "" {
		return sqlport.DefaultTablePrefix
	}
	return c.TablePrefix
}

// MinimumServerVersionOrDefault returns the configured minimum version,
// or the default of the configured engine.
func (c *ProjectConfig) MinimumServerVersionOrDefault() string {
	return c.MinimumServerVersionFor(c.EngineOrDefault())
}

// MinimumServerVersionFor returns the configured minimum version, or the
// default of engine when unset.
func (c *ProjectConfig) MinimumServerVersionFor(engine sqlport.Engine) string {
	if c != nil && c.MinimumServerVersion != "" {
		return c.MinimumServerVersion
	}
	if engine == sqlport.EngineMySQL {
		return sqlport.DefaultMySQLMinimumServerVersion
	}
	return sqlport.DefaultMinimumServerVersion
}

// LoadProject loads environment files and then sqlport.yaml from dir.
// A missing sqlport.yaml is not an error: the returned config is nil.
// envFiles are loaded in order without overriding variables already set;
// when none are given, a .env in the working directory is tried.
func LoadProject(dir string, envFiles ...string) (*ProjectConfig, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %v: %w", err, sqlport.ErrInvalidConfig)
	}

	cfg, err := Load(dir)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", ConfigFileName, err)
	}
	return cfg, nil
}
