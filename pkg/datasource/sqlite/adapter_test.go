package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quill-data/quill-engine/pkg/models"
)

// seedDatabase creates a populated SQLite file the adapter can open.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL REFERENCES customers(id),
			total REAL
		);
		INSERT INTO customers (id, name) VALUES (1, 'Ada'), (2, 'Grace');
		INSERT INTO orders (id, customer_id, total) VALUES (1, 1, 9.5), (2, 1, 12.0);
	`)
	require.NoError(t, err)
	return path
}

func newTestAdapter(t *testing.T, path string) *Adapter {
	t.Helper()
	a := NewAdapter(models.ConnectionConfig{
		DBType:   models.DBTypeSQLite,
		Database: path,
	}, zaptest.NewLogger(t))
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestConnectAndPing(t *testing.T) {
	a := newTestAdapter(t, seedDatabase(t))
	assert.NoError(t, a.Ping(context.Background()))
	assert.NoError(t, a.Connect(context.Background()), "Connect must be idempotent")
}

func TestExecuteReturnsRows(t *testing.T) {
	a := newTestAdapter(t, seedDatabase(t))

	result, err := a.Execute(context.Background(), "SELECT id, name FROM customers ORDER BY id", 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 2, result.RowCount)
	require.Len(t, result.Columns, 2)
	assert.Equal(t, "id", result.Columns[0].Name)
	assert.Equal(t, "name", result.Columns[1].Name)
	assert.Equal(t, "Ada", result.Rows[0]["name"])
}

func TestExecuteBlocksWritesAtEngine(t *testing.T) {
	a := newTestAdapter(t, seedDatabase(t))

	_, err := a.Execute(context.Background(), "INSERT INTO customers (id, name) VALUES (3, 'Eve')", 5*time.Second)
	assert.Error(t, err, "query_only pragma must reject writes that bypass validation")
}

func TestSchemaIntrospection(t *testing.T) {
	a := newTestAdapter(t, seedDatabase(t))

	schema, err := a.Schema(context.Background())
	require.NoError(t, err)

	require.Contains(t, schema.Tables, "customers")
	require.Contains(t, schema.Tables, "orders")

	customers := schema.Tables["customers"]
	require.Len(t, customers, 2)
	assert.Equal(t, "id", customers[0].Name)
	assert.True(t, customers[0].IsPrimary)
	assert.Equal(t, "name", customers[1].Name)
	assert.False(t, customers[1].IsNullable)

	require.Len(t, schema.Relationships, 1)
	rel := schema.Relationships[0]
	assert.Equal(t, "orders", rel.FromTable)
	assert.Equal(t, "customer_id", rel.FromColumn)
	assert.Equal(t, "customers", rel.ToTable)
	assert.Equal(t, "id", rel.ToColumn)
}

func TestFormatSchemaForPrompt(t *testing.T) {
	a := newTestAdapter(t, seedDatabase(t))

	schema, err := a.Schema(context.Background())
	require.NoError(t, err)

	text := a.FormatSchemaForPrompt(schema)
	assert.Contains(t, text, "TABLE customers")
	assert.Contains(t, text, "orders.customer_id -> customers.id")
}

func TestIsSyntaxError(t *testing.T) {
	a := newTestAdapter(t, seedDatabase(t))

	_, err := a.Execute(context.Background(), "SELECT FROM WHERE", 5*time.Second)
	require.Error(t, err)
	assert.True(t, a.IsSyntaxError(err))
	assert.False(t, a.IsSyntaxError(errors.New("no such table: widgets")))
}

func TestIsTimeoutError(t *testing.T) {
	a := newTestAdapter(t, seedDatabase(t))
	assert.True(t, a.IsTimeoutError(context.DeadlineExceeded))
	assert.False(t, a.IsTimeoutError(errors.New("no such table")))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"orders"`, quoteIdent("orders"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}
