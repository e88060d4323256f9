// Package mssql implements the SQL Server datasource adapter on
// go-mssqldb.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/config"
	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/sqlsafety"
)

// Adapter provides SQL Server connectivity over database/sql.
type Adapter struct {
	cfg    models.ConnectionConfig
	policy config.ConnectPolicy
	logger *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewAdapter builds an unconnected adapter.
func NewAdapter(cfg models.ConnectionConfig, logger *zap.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		policy: config.PolicyForHost(cfg.Host),
		logger: logger,
	}
}

// buildConnectionString builds a sqlserver:// URL. Credentials go
// through userinfo encoding via url.URL so they round-trip exactly.
// Azure SQL hosts get encryption and certificate trust from the host
// policy.
func buildConnectionString(cfg models.ConnectionConfig, policy config.ConnectPolicy) string {
	port := cfg.Port
	if port == 0 {
		port = cfg.DBType.DefaultPort()
	}

	query := url.Values{}
	query.Add("database", cfg.Database)
	if cfg.SSL || policy.SSLDefault {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if policy.TrustServerCert {
		query.Add("TrustServerCertificate", "true")
	}
	query.Add("connection timeout", fmt.Sprintf("%d", int(policy.ConnectTimeout.Seconds())))

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Dialect identifies the adapter's database type.
func (a *Adapter) Dialect() models.DBType { return models.DBTypeSQLServer }

// Connect opens the pool and verifies it with a ping.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return nil
	}

	db, err := sql.Open("sqlserver", buildConnectionString(a.cfg, a.policy))
	if err != nil {
		return apperrors.Connection("invalid connection settings", err)
	}
	maxConns := a.cfg.MaxPoolConns
	if maxConns <= 0 {
		maxConns = datasource.DefaultPoolMaxConns
	}
	db.SetMaxOpenConns(int(maxConns))
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return apperrors.Connection("failed to connect to SQL Server", err)
	}

	a.db = db
	return nil
}

// Ping verifies the pool is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	db, err := a.getDB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (a *Adapter) getDB() (*sql.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil, apperrors.Connection("adapter is not connected", nil)
	}
	return a.db, nil
}

// Execute runs validated SQL under the given timeout.
func (a *Adapter) Execute(ctx context.Context, sqlText string, timeout time.Duration) (*datasource.QueryResult, error) {
	db, err := a.getDB()
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := db.QueryContext(queryCtx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	columns := make([]datasource.ColumnInfo, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = datasource.ColumnInfo{
			Name: ct.Name(),
			Type: ct.DatabaseTypeName(),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				rowMap[col.Name] = string(b)
			} else {
				rowMap[col.Name] = values[i]
			}
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &datasource.QueryResult{
		Columns:         columns,
		Rows:            resultRows,
		RowCount:        len(resultRows),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// ValidateQuery runs the safety validator under the SQL Server dialect.
func (a *Adapter) ValidateQuery(sqlText string, opts sqlsafety.Options) sqlsafety.ValidationResult {
	return sqlsafety.Validate(sqlText, models.DBTypeSQLServer, opts)
}

// Close releases the pool. Safe to call more than once.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

var _ datasource.Adapter = (*Adapter)(nil)
