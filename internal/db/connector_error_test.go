package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

func TestWrapConnectionError(t *testing.T) {
	tests := []struct {
		name         string
		errMsg       string
		host         string
		database     string
		wantContains string
	}{
		{"connection refused", "dial tcp 127.0.0.1:5432: connection refused", "127.0.0.1", "piwik", "connection refused to 127.0.0.1:5432"},
		{"actively refused", "No connection could be made because the target machine actively refused it", "127.0.0.1", "piwik", "connection refused to 127.0.0.1:5432"},
		{"no such host", "dial tcp: lookup badhost.example.com: no such host", "badhost.example.com", "piwik", `cannot resolve host "badhost.example.com"`},
		{"password auth failed", `password authentication failed for user "postgres"`, "localhost", "piwik", `password authentication failed for database "piwik"`},
		{"database does not exist", `database "nope" does not exist`, "localhost", "nope", "sqlport schema create-database nope"},
		{"timeout", "dial tcp 10.0.0.1:5432: i/o timeout", "10.0.0.1", "piwik", "connection timed out to 10.0.0.1:5432"},
		{"TLS error", "tls: handshake failure", "localhost", "piwik", "SSL/TLS connection error"},
		{"too many connections", "FATAL: too many connections for role", "localhost", "busy", `too many connections to database "busy"`},
		{"fallthrough", "something unexpected", "localhost", "piwik", "failed to connect to localhost:5432"},
		{"case insensitive", "CONNECTION REFUSED by firewall", "fw", "piwik", "connection refused to fw:5432"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := errors.New(tt.errMsg)
			wrapped := wrapConnectionError(original, tt.host, 5432, tt.database)

			assert.Contains(t, wrapped.Error(), tt.wantContains)
			assert.ErrorIs(t, wrapped, original)
			assert.ErrorIs(t, wrapped, sqlport.ErrConnectionFailed)
			assert.Equal(t, sqlport.ExitConnectionError, sqlport.ExitCodeForError(wrapped))
		})
	}
}
