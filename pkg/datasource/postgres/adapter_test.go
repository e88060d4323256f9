package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/quill-data/quill-engine/pkg/config"
	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/sqlsafety"
)

func testConfig() models.ConnectionConfig {
	return models.ConnectionConfig{
		DBType:   models.DBTypePostgres,
		Host:     "localhost",
		Port:     5432,
		Database: "appdb",
		Username: "app",
		Password: "secret",
	}
}

func TestBuildConnectionStringEscapesCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Username = "user@corp"
	cfg.Password = "p@ss/w?rd#1"

	got := buildConnectionString(cfg, config.PolicyForHost(cfg.Host))

	assert.Contains(t, got, "user%40corp")
	assert.Contains(t, got, "p%40ss%2Fw%3Frd%231")
	assert.NotContains(t, got, "p@ss/w?rd#1")
}

func TestBuildConnectionStringPreservesSpacesInPassword(t *testing.T) {
	cfg := testConfig()
	cfg.Password = "my secret pass"

	got := buildConnectionString(cfg, config.PolicyForHost(cfg.Host))

	// Spaces must encode as %20 in userinfo; a query-style + would
	// round-trip as a literal plus sign.
	assert.Contains(t, got, "my%20secret%20pass")
	assert.NotContains(t, got, "+")
}

func TestBuildConnectionStringSSLPolicy(t *testing.T) {
	local := testConfig()
	localStr := buildConnectionString(local, config.PolicyForHost(local.Host))
	assert.Contains(t, localStr, "sslmode=disable")

	cloud := testConfig()
	cloud.Host = "mydb.abc123.us-east-1.rds.amazonaws.com"
	cloudStr := buildConnectionString(cloud, config.PolicyForHost(cloud.Host))
	assert.Contains(t, cloudStr, "sslmode=require")
	assert.Contains(t, cloudStr, "connect_timeout=30")
}

func TestBuildConnectionStringDefaultPort(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 0
	got := buildConnectionString(cfg, config.PolicyForHost(cfg.Host))
	assert.Contains(t, got, "localhost:5432")
}

func TestIsSyntaxError(t *testing.T) {
	a := NewAdapter(testConfig(), zaptest.NewLogger(t))

	assert.True(t, a.IsSyntaxError(&pgconn.PgError{Code: "42601"}))
	assert.False(t, a.IsSyntaxError(&pgconn.PgError{Code: "42P01"}))
	assert.False(t, a.IsSyntaxError(errors.New("some other error")))
	assert.False(t, a.IsSyntaxError(nil))
}

func TestIsTimeoutError(t *testing.T) {
	a := NewAdapter(testConfig(), zaptest.NewLogger(t))

	assert.True(t, a.IsTimeoutError(context.DeadlineExceeded))
	assert.True(t, a.IsTimeoutError(&pgconn.PgError{Code: "57014"}))
	assert.False(t, a.IsTimeoutError(&pgconn.PgError{Code: "42601"}))
	assert.False(t, a.IsTimeoutError(nil))
}

func TestPingBeforeConnect(t *testing.T) {
	a := NewAdapter(testConfig(), zaptest.NewLogger(t))
	assert.Error(t, a.Ping(context.Background()))
}

func TestCloseBeforeConnect(t *testing.T) {
	a := NewAdapter(testConfig(), zaptest.NewLogger(t))
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestTypeNameFromOID(t *testing.T) {
	assert.Equal(t, "TEXT", typeNameFromOID(25))
	assert.Equal(t, "INT8", typeNameFromOID(20))
	assert.Equal(t, "JSONB", typeNameFromOID(3802))
	assert.Equal(t, "OID(99999)", typeNameFromOID(99999))
}

func TestValidateQueryUsesPostgresDialect(t *testing.T) {
	a := NewAdapter(testConfig(), zaptest.NewLogger(t))
	result := a.ValidateQuery(`SELECT "id" FROM "users" LIMIT 5`, sqlsafety.DefaultOptions())
	assert.True(t, result.Valid, "errors: %v", result.Errors)
}
