// Package datasource defines the dialect adapter contract and the
// lifecycle machinery around it: the registry adapters self-register
// into, the per-user adapter cache, and the health monitor.
package datasource

import (
	"context"
	"sort"
	"time"

	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/sqlsafety"
)

// Adapter is the uniform surface over one live database connection.
// Implementations own their pool: Connect and Close are idempotent, and
// every blocking method honors its context.
type Adapter interface {
	// Dialect identifies the adapter's database type.
	Dialect() models.DBType

	// Connect establishes the underlying pool. Calling it on a connected
	// adapter is a no-op.
	Connect(ctx context.Context) error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Execute runs validated SQL and returns bounded results. The timeout
	// applies to the whole round trip; see TimeoutBehavior for what the
	// engine does with the statement when it fires.
	Execute(ctx context.Context, sqlText string, timeout time.Duration) (*QueryResult, error)

	// Schema introspects tables, columns, and foreign keys.
	Schema(ctx context.Context) (*Schema, error)

	// FormatSchemaForPrompt renders a schema as compact text for LLM
	// prompt context.
	FormatSchemaForPrompt(s *Schema) string

	// GenerationGuidelines returns dialect-specific rules for SQL
	// generation prompts (quoting style, LIMIT vs TOP, date functions).
	GenerationGuidelines() string

	// ExampleQueries returns a few idiomatic queries for prompt few-shots.
	ExampleQueries() []string

	// ValidateQuery runs the safety validator under this adapter's
	// dialect.
	ValidateQuery(sqlText string, opts sqlsafety.Options) sqlsafety.ValidationResult

	// IsSyntaxError reports whether err is a syntax error from this
	// dialect's driver.
	IsSyntaxError(err error) bool

	// IsTimeoutError reports whether err is a timeout or cancellation
	// from this dialect's driver.
	IsTimeoutError(err error) bool

	// TimeoutBehavior describes what happens server-side when a query
	// exceeds its timeout, for user-facing error detail.
	TimeoutBehavior() string

	// Close releases the pool. Safe to call more than once.
	Close() error
}

// ColumnInfo describes one result column with the driver's type name.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResult holds one bounded query execution outcome.
type QueryResult struct {
	Columns         []ColumnInfo     `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
}

// ColumnMeta describes one column in an introspected schema.
type ColumnMeta struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// Relationship is a foreign key edge between two tables.
type Relationship struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column"`
}

// Schema is a database's introspected structure.
type Schema struct {
	Tables        map[string][]ColumnMeta `json:"tables"`
	Relationships []Relationship          `json:"relationships"`
}

// TableNames returns schema table names in sorted order.
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
