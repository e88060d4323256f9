// Package sqlite implements the SQLite datasource adapter on the
// modernc.org/sqlite pure-Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/sqlsafety"
)

// Adapter provides SQLite connectivity. The connection is file-based:
// ConnectionConfig.Database holds the path, Host and Port are unused.
type Adapter struct {
	cfg    models.ConnectionConfig
	logger *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewAdapter builds an unconnected adapter.
func NewAdapter(cfg models.ConnectionConfig, logger *zap.Logger) *Adapter {
	return &Adapter{cfg: cfg, logger: logger}
}

// buildDSN opens the file in query-only mode, which makes the
// read-only guarantee hold at the engine even if a write slipped past
// validation.
func buildDSN(cfg models.ConnectionConfig) string {
	return fmt.Sprintf(
		"file:%s?_pragma=query_only(1)&_pragma=busy_timeout(5000)",
		url.PathEscape(cfg.Database),
	)
}

// Dialect identifies the adapter's database type.
func (a *Adapter) Dialect() models.DBType { return models.DBTypeSQLite }

// Connect opens the database file and verifies it with a ping.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", buildDSN(a.cfg))
	if err != nil {
		return apperrors.Connection("invalid connection settings", err)
	}
	// SQLite serializes writers; a single connection avoids lock
	// contention between pooled handles.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return apperrors.Connection("failed to open SQLite database", err)
	}

	a.db = db
	return nil
}

// Ping verifies the database file is readable.
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

// ValidateQuery runs the safety validator under the SQLite dialect.
func (a *Adapter) ValidateQuery(sqlText string, opts sqlsafety.Options) sqlsafety.ValidationResult {
	return sqlsafety.Validate(sqlText, models.DBTypeSQLite, opts)
}

// IsSyntaxError reports whether err is a SQLite syntax error. The
// driver folds everything into SQLITE_ERROR, so the message is the
// only signal.
func (a *Adapter) IsSyntaxError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "syntax error")
}

// IsTimeoutError reports whether err is a timeout or interrupt.
func (a *Adapter) IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if err == context.DeadlineExceeded {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "interrupted")
}

// TimeoutBehavior describes what happens when the timeout fires.
func (a *Adapter) TimeoutBehavior() string {
	return "the statement is interrupted when the timeout expires"
}

// Close releases the database handle. Safe to call more than once.
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
