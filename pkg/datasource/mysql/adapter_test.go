package mysql

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/quill-data/quill-engine/pkg/config"
	"github.com/quill-data/quill-engine/pkg/models"
)

func testConfig() models.ConnectionConfig {
	return models.ConnectionConfig{
		DBType:   models.DBTypeMySQL,
		Host:     "localhost",
		Port:     3306,
		Database: "appdb",
		Username: "app",
		Password: "secret",
	}
}

func TestBuildDSN(t *testing.T) {
	cfg := testConfig()
	dsn := buildDSN(cfg, config.PolicyForHost(cfg.Host))

	assert.Contains(t, dsn, "tcp(localhost:3306)")
	assert.Contains(t, dsn, "/appdb")
	assert.Contains(t, dsn, "transaction_read_only=1")
	assert.Contains(t, dsn, "parseTime=true")
	assert.NotContains(t, dsn, "tls=")
}

func TestBuildDSNCloudHostEnablesTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Host = "mydb.abc123.us-east-1.rds.amazonaws.com"
	dsn := buildDSN(cfg, config.PolicyForHost(cfg.Host))

	assert.Contains(t, dsn, "tls=skip-verify")
}

func TestBuildDSNDefaultPort(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 0
	dsn := buildDSN(cfg, config.PolicyForHost(cfg.Host))
	assert.Contains(t, dsn, "tcp(localhost:3306)")
}

func TestIsSyntaxError(t *testing.T) {
	a := NewAdapter(testConfig(), zaptest.NewLogger(t))

	assert.True(t, a.IsSyntaxError(&mysql.MySQLError{Number: 1064}))
	assert.False(t, a.IsSyntaxError(&mysql.MySQLError{Number: 1146}))
	assert.False(t, a.IsSyntaxError(errors.New("other")))
}

func TestIsTimeoutError(t *testing.T) {
	a := NewAdapter(testConfig(), zaptest.NewLogger(t))

	assert.True(t, a.IsTimeoutError(context.DeadlineExceeded))
	assert.True(t, a.IsTimeoutError(&mysql.MySQLError{Number: 1317}))
	assert.True(t, a.IsTimeoutError(&mysql.MySQLError{Number: 3024}))
	assert.False(t, a.IsTimeoutError(&mysql.MySQLError{Number: 1064}))
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
