package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlport/internal/logging"
	"github.com/vvka-141/sqlport/pkg/sqlport"
)

type stubTokenProvider struct {
	calls int
	err   error
}

func (s *stubTokenProvider) GetToken(context.Context) (string, time.Time, error) {
	s.calls++
	return "", time.Time{}, s.err
}

func (s *stubTokenProvider) String() string { return "stub" }

func TestNewConnector_SelectsImplementation(t *testing.T) {
	logger := logging.NewNullLogger()

	c, err := NewConnector(&sqlport.ConnectionConfig{AuthMethod: sqlport.AuthMethodStandard}, logger)
	require.NoError(t, err)
	assert.IsType(t, &StandardConnector{}, c)

	c, err = NewConnector(&sqlport.ConnectionConfig{
		AuthMethod: sqlport.AuthMethodAWSIAM, Host: "db.rds.amazonaws.com", Port: 5432,
		Username: "app", AWSRegion: "eu-west-1",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &TokenBasedConnector{}, c)

	c, err = NewConnector(&sqlport.ConnectionConfig{
		AuthMethod: sqlport.AuthMethodGoogleIAM, Username: "app@proj.iam", GoogleInstance: "proj:eu:inst",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &GoogleCloudSQLConnector{}, c)
}

func TestNewConnector_InvalidCloudConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *sqlport.ConnectionConfig
		target error
	}{
		{"aws without region", &sqlport.ConnectionConfig{AuthMethod: sqlport.AuthMethodAWSIAM, Host: "h", Port: 1, Username: "u"}, sqlport.ErrInvalidConfig},
		{"google without instance", &sqlport.ConnectionConfig{AuthMethod: sqlport.AuthMethodGoogleIAM, Username: "u"}, sqlport.ErrInvalidConfig},
		{"google without user", &sqlport.ConnectionConfig{AuthMethod: sqlport.AuthMethodGoogleIAM, GoogleInstance: "p:r:i"}, sqlport.ErrInvalidConfig},
		{"unknown method", &sqlport.ConnectionConfig{AuthMethod: sqlport.AuthMethod(42)}, sqlport.ErrUnsupportedAuthMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConnector(tt.config, nil)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestTokenBasedConnector_TokenFailureIsNotRetried(t *testing.T) {
	provider := &stubTokenProvider{err: errors.New("no credentials in chain")}
	connector := NewTokenBasedConnector(&sqlport.ConnectionConfig{Host: "h", Port: 5432}, provider, "Stub", nil)

	_, err := connector.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to acquire Stub token")
	assert.Equal(t, 1, provider.calls)
}

func TestNewAzureServicePrincipalProvider_RequiresAllFields(t *testing.T) {
	_, err := NewAzureServicePrincipalProvider("tenant", "", "secret")
	assert.ErrorIs(t, err, sqlport.ErrInvalidConfig)
}

func TestAWSIAMTokenProvider_String(t *testing.T) {
	p, err := NewAWSIAMTokenProvider("db:5432", "eu-west-1", "app")
	require.NoError(t, err)
	assert.Equal(t, "AWSIAMTokenProvider(endpoint=db:5432, region=eu-west-1, user=app)", p.String())
}

func TestNewTokenProvider(t *testing.T) {
	_, err := NewTokenProvider(&sqlport.ConnectionConfig{AuthMethod: sqlport.AuthMethodStandard})
	assert.ErrorIs(t, err, sqlport.ErrUnsupportedAuthMethod)

	provider, err := NewTokenProvider(&sqlport.ConnectionConfig{
		AuthMethod: sqlport.AuthMethodAWSIAM,
		Host:       "db.example.com",
		Port:       3306,
		AWSRegion:  "us-east-1",
		Username:   "piwik",
	})
	require.NoError(t, err)
	assert.Contains(t, provider.String(), "endpoint=db.example.com:3306")
}
