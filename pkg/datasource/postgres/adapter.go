// Package postgres implements the PostgreSQL datasource adapter on
// pgx/v5 connection pools.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/config"
	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/sqlsafety"
)

// Adapter provides PostgreSQL connectivity over a pgx pool.
type Adapter struct {
	cfg    models.ConnectionConfig
	policy config.ConnectPolicy
	logger *zap.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewAdapter builds an unconnected adapter. The dial policy is derived
// from the host, so cloud-managed databases get TLS and a generous
// connect timeout without per-connection tuning.
func NewAdapter(cfg models.ConnectionConfig, logger *zap.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		policy: config.PolicyForHost(cfg.Host),
		logger: logger,
	}
}

// buildConnectionString builds a PostgreSQL URL. Credentials go through
// userinfo encoding via url.URL so passwords containing @, /, #, ?, or
// spaces round-trip exactly.
func buildConnectionString(cfg models.ConnectionConfig, policy config.ConnectPolicy) string {
	sslMode := "disable"
	if cfg.SSL || policy.SSLDefault {
		sslMode = "require"
	}

	port := cfg.Port
	if port == 0 {
		port = cfg.DBType.DefaultPort()
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	query.Set("connect_timeout", fmt.Sprintf("%d", int(policy.ConnectTimeout.Seconds())))

	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:     "/" + cfg.Database,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Dialect identifies the adapter's database type.
func (a *Adapter) Dialect() models.DBType { return models.DBTypePostgres }

// Connect creates the pool. Sessions default to read-only transactions;
// the AST gate is the primary control and this is the engine-level
// backstop.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pool != nil {
		return nil
	}

	poolConfig, err := pgxpool.ParseConfig(buildConnectionString(a.cfg, a.policy))
	if err != nil {
		return apperrors.Connection("invalid connection settings", err)
	}
	maxConns := a.cfg.MaxPoolConns
	if maxConns <= 0 {
		maxConns = datasource.DefaultPoolMaxConns
	}
	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = 1
	poolConfig.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return apperrors.Connection("failed to connect to PostgreSQL", err)
	}

	a.pool = pool
	return nil
}

// Ping verifies the pool is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	pool, err := a.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (a *Adapter) getPool() (*pgxpool.Pool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pool == nil {
		return nil, apperrors.Connection("adapter is not connected", nil)
	}
	return a.pool, nil
}

// Execute runs validated SQL under the given timeout and collects the
// full result set.
func (a *Adapter) Execute(ctx context.Context, sqlText string, timeout time.Duration) (*datasource.QueryResult, error) {
	pool, err := a.getPool()
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := pool.Query(queryCtx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: string(fd.Name),
			Type: typeNameFromOID(fd.DataTypeOID),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = values[i]
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

// ValidateQuery runs the safety validator under the PostgreSQL dialect.
func (a *Adapter) ValidateQuery(sqlText string, opts sqlsafety.Options) sqlsafety.ValidationResult {
	return sqlsafety.Validate(sqlText, models.DBTypePostgres, opts)
}

// Close releases the pool. Safe to call more than once.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

// typeNameFromOID maps common PostgreSQL type OIDs to their names so
// result columns carry readable types without a catalog lookup.
func typeNameFromOID(oid uint32) string {
	switch oid {
	case 16:
		return "BOOL"
	case 17:
		return "BYTEA"
	case 20:
		return "INT8"
	case 21:
		return "INT2"
	case 23:
		return "INT4"
	case 25:
		return "TEXT"
	case 114:
		return "JSON"
	case 700:
		return "FLOAT4"
	case 701:
		return "FLOAT8"
	case 1042:
		return "BPCHAR"
	case 1043:
		return "VARCHAR"
	case 1082:
		return "DATE"
	case 1083:
		return "TIME"
	case 1114:
		return "TIMESTAMP"
	case 1184:
		return "TIMESTAMPTZ"
	case 1186:
		return "INTERVAL"
	case 1700:
		return "NUMERIC"
	case 2950:
		return "UUID"
	case 3802:
		return "JSONB"
	default:
		return fmt.Sprintf("OID(%d)", oid)
	}
}

var _ datasource.Adapter = (*Adapter)(nil)
