// Package mysql implements the MySQL datasource adapter on
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/config"
	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/sqlsafety"
)

// Adapter provides MySQL connectivity over database/sql.
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

// buildDSN constructs the driver DSN via mysql.Config, which handles
// credential escaping. Sessions are forced read-only at the server.
func buildDSN(cfg models.ConnectionConfig, policy config.ConnectPolicy) string {
	port := cfg.Port
	if port == 0 {
		port = cfg.DBType.DefaultPort()
	}

	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Timeout = policy.ConnectTimeout
	mc.Params = map[string]string{
		"transaction_read_only": "1",
	}
	if cfg.SSL || policy.SSLDefault {
		if policy.TrustServerCert {
			mc.TLSConfig = "skip-verify"
		} else {
			mc.TLSConfig = "true"
		}
	}
	return mc.FormatDSN()
}

// Dialect identifies the adapter's database type.
func (a *Adapter) Dialect() models.DBType { return models.DBTypeMySQL }

// Connect opens the pool and verifies it with a ping.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return nil
	}

	db, err := sql.Open("mysql", buildDSN(a.cfg, a.policy))
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
		return apperrors.Connection("failed to connect to MySQL", err)
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

	result, err := collectRows(rows)
	if err != nil {
		return nil, err
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// collectRows drains a database/sql result set into the engine result
// shape, converting byte slices to strings for JSON friendliness.
func collectRows(rows *sql.Rows) (*datasource.QueryResult, error) {
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
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// ValidateQuery runs the safety validator under the MySQL dialect.
func (a *Adapter) ValidateQuery(sqlText string, opts sqlsafety.Options) sqlsafety.ValidationResult {
	return sqlsafety.Validate(sqlText, models.DBTypeMySQL, opts)
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
