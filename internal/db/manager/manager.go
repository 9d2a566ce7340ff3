package manager

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

const (
	queryDatabaseExists       = "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)"
	queryTerminateConnections = `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`
)

// Manager runs server-level database statements on PostgreSQL.
// CREATE and DROP DATABASE cannot run inside a transaction block, so conn
// must be a plain connection, never a Tx.
type Manager struct{}

func New() sqlport.DatabaseManager {
	return &Manager{}
}

func (m *Manager) Exists(ctx context.Context, conn sqlport.Querier, dbName string) (bool, error) {
	var exists bool
	if err := conn.QueryRow(ctx, queryDatabaseExists, dbName).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}
	return exists, nil
}

func (m *Manager) Create(ctx context.Context, conn sqlport.Querier, dbName string) error {
	query := fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{dbName}.Sanitize())
	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create database %q: %w", dbName, err)
	}
	return nil
}

func (m *Manager) Drop(ctx context.Context, conn sqlport.Querier, dbName string) error {
	query := fmt.Sprintf("DROP DATABASE IF EXISTS %s", pgx.Identifier{dbName}.Sanitize())
	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to drop database %q: %w", dbName, err)
	}
	return nil
}

func (m *Manager) TerminateConnections(ctx context.Context, conn sqlport.Querier, dbName string) error {
	if _, err := conn.Exec(ctx, queryTerminateConnections, dbName); err != nil {
		return fmt.Errorf("failed to terminate connections to database %q: %w", dbName, err)
	}
	return nil
}

var _ sqlport.DatabaseManager = (*Manager)(nil)
