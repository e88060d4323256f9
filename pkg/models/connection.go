package models

import (
	"time"

	"github.com/google/uuid"
)

// DBType identifies a supported database dialect.
type DBType string

const (
	DBTypePostgres  DBType = "postgresql"
	DBTypeMySQL     DBType = "mysql"
	DBTypeSQLite    DBType = "sqlite"
	DBTypeSQLServer DBType = "sqlserver"
)

// Valid reports whether t is one of the supported dialects.
func (t DBType) Valid() bool {
	switch t {
	case DBTypePostgres, DBTypeMySQL, DBTypeSQLite, DBTypeSQLServer:
		return true
	}
	return false
}

// DefaultPort returns the conventional port for the dialect.
// SQLite is file-based and returns 0.
func (t DBType) DefaultPort() int {
	switch t {
	case DBTypePostgres:
		return 5432
	case DBTypeMySQL:
		return 3306
	case DBTypeSQLServer:
		return 1433
	default:
		return 0
	}
}

// ConnectionConfig describes a user's database connection. The Password
// field holds plaintext only transiently, between decryption and adapter
// construction; it is never persisted or logged in that form.
type ConnectionConfig struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	DBType    DBType    `json:"db_type"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Database  string    `json:"database"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	SSL       bool      `json:"ssl"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// MaxPoolConns caps the adapter's connection pool. The adapter cache
	// sets it from engine config before construction; it is not
	// persisted. Zero means the adapter default.
	MaxPoolConns int32 `json:"-"`
}

// HealthStatus classifies a connection's responsiveness.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
	HealthUnknown  HealthStatus = "unknown"
)

// ConnectionHealth is the rolling health record for one connection.
// Uptime is cumulative over the record's lifetime unless the monitor is
// configured with a rolling window.
type ConnectionHealth struct {
	ConnectionID         uuid.UUID    `json:"connection_id"`
	Status               HealthStatus `json:"status"`
	LastCheck            time.Time    `json:"last_check"`
	LatencyMs            int64        `json:"latency_ms"`
	ConsecutiveFailures  int          `json:"consecutive_failures"`
	ConsecutiveSuccesses int          `json:"consecutive_successes"`
	TotalChecks          int          `json:"total_checks"`
	SuccessfulChecks     int          `json:"successful_checks"`
	UptimePercent        float64      `json:"uptime_percent"`
}

// QueryHistoryEntry records one executed (or rejected) query for the
// audit trail.
type QueryHistoryEntry struct {
	ID              uuid.UUID `json:"id"`
	UserID          string    `json:"user_id"`
	ConnectionID    uuid.UUID `json:"connection_id"`
	NaturalLanguage *string   `json:"natural_language,omitempty"`
	SQL             string    `json:"sql"`
	Status          string    `json:"status"` // "success", "error", "blocked"
	ErrorMessage    *string   `json:"error_message,omitempty"`
	RowCount        int       `json:"row_count"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	ExecutedAt      time.Time `json:"executed_at"`
}
