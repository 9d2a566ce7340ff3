package db

import (
	"context"
	"time"
)

// TokenProvider issues the short-lived password of a cloud-managed server.
type TokenProvider interface {
	// GetToken returns a token and the time it stops being accepted.
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String describes the provider for logs. It must not contain secrets.
	String() string
}

// AzureDatabaseScope is the Entra ID resource scope of Azure Database for PostgreSQL and MySQL.
const AzureDatabaseScope = "https://ossrdbms-aad.database.windows.net/.default"
