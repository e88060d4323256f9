package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/sqlsafety"
)

// stubAdapter implements datasource.Adapter for service tests. Its
// validator runs against the postgres dialect so safety semantics stay
// real while execution is canned.
type stubAdapter struct {
	dialect models.DBType

	mu           sync.Mutex
	connectCalls int
	executeCalls int
	schemaCalls  int
	lastSQL      string
	lastTimeout  time.Duration
	closed       bool

	executeErr error
	timeoutErr error
	result     *datasource.QueryResult
	schema     *datasource.Schema
}

func (a *stubAdapter) Dialect() models.DBType { return a.dialect }

func (a *stubAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectCalls++
	return nil
}

func (a *stubAdapter) Ping(ctx context.Context) error { return nil }

func (a *stubAdapter) Execute(ctx context.Context, sqlText string, timeout time.Duration) (*datasource.QueryResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.executeCalls++
	a.lastSQL = sqlText
	a.lastTimeout = timeout
	if a.executeErr != nil {
		return nil, a.executeErr
	}
	if a.result != nil {
		return a.result, nil
	}
	return &datasource.QueryResult{
		Columns:         []datasource.ColumnInfo{{Name: "id", Type: "INT4"}},
		Rows:            []map[string]any{{"id": int64(1)}},
		RowCount:        1,
		ExecutionTimeMs: 3,
	}, nil
}

func (a *stubAdapter) Schema(ctx context.Context) (*datasource.Schema, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.schemaCalls++
	if a.schema != nil {
		return a.schema, nil
	}
	return &datasource.Schema{
		Tables: map[string][]datasource.ColumnMeta{
			"orders": {
				{Name: "id", DataType: "integer", IsPrimary: true},
				{Name: "total", DataType: "numeric", IsNullable: true},
			},
		},
	}, nil
}

func (a *stubAdapter) FormatSchemaForPrompt(s *datasource.Schema) string {
	return datasource.FormatSchema(s)
}

func (a *stubAdapter) GenerationGuidelines() string { return "Use double quotes for identifiers." }

func (a *stubAdapter) ExampleQueries() []string {
	return []string{"SELECT count(*) FROM orders"}
}

func (a *stubAdapter) ValidateQuery(sqlText string, opts sqlsafety.Options) sqlsafety.ValidationResult {
	return sqlsafety.Validate(sqlText, models.DBTypePostgres, opts)
}

func (a *stubAdapter) IsSyntaxError(err error) bool {
	return err != nil && err.Error() == "stub syntax error"
}

func (a *stubAdapter) IsTimeoutError(err error) bool {
	return err != nil && a.timeoutErr != nil && err.Error() == a.timeoutErr.Error()
}

func (a *stubAdapter) TimeoutBehavior() string {
	return "the statement is cancelled on the server"
}

func (a *stubAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// memoryConnRepo is an in-memory ConnectionRepository.
type memoryConnRepo struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*models.ConnectionConfig
}

func newMemoryConnRepo() *memoryConnRepo {
	return &memoryConnRepo{conns: make(map[uuid.UUID]*models.ConnectionConfig)}
}

func (r *memoryConnRepo) Create(ctx context.Context, conn *models.ConnectionConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn.ID == uuid.Nil {
		conn.ID = uuid.New()
	}
	conn.CreatedAt = time.Now()
	conn.UpdatedAt = conn.CreatedAt
	stored := *conn
	r.conns[conn.ID] = &stored
	return nil
}

func (r *memoryConnRepo) GetByID(ctx context.Context, userID string, id uuid.UUID) (*models.ConnectionConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok || conn.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	copied := *conn
	return &copied, nil
}

func (r *memoryConnRepo) ListByUser(ctx context.Context, userID string) ([]models.ConnectionConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ConnectionConfig
	for _, conn := range r.conns {
		if conn.UserID == userID {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (r *memoryConnRepo) GetActive(ctx context.Context, userID string) (*models.ConnectionConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.conns {
		if conn.UserID == userID && conn.IsActive {
			copied := *conn
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNoActiveConnection
}

func (r *memoryConnRepo) SetActive(ctx context.Context, userID string, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.conns[id]
	if !ok || target.UserID != userID {
		return apperrors.ErrNotFound
	}
	for _, conn := range r.conns {
		if conn.UserID == userID {
			conn.IsActive = false
		}
	}
	target.IsActive = true
	return nil
}

func (r *memoryConnRepo) Update(ctx context.Context, conn *models.ConnectionConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.conns[conn.ID]
	if !ok || existing.UserID != conn.UserID {
		return apperrors.ErrNotFound
	}
	conn.UpdatedAt = time.Now()
	stored := *conn
	r.conns[conn.ID] = &stored
	return nil
}

func (r *memoryConnRepo) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok || conn.UserID != userID {
		return apperrors.ErrNotFound
	}
	delete(r.conns, id)
	return nil
}

// memoryHistoryRepo records entries and signals each write.
type memoryHistoryRepo struct {
	mu      sync.Mutex
	entries []models.QueryHistoryEntry
	written chan struct{}
}

func newMemoryHistoryRepo() *memoryHistoryRepo {
	return &memoryHistoryRepo{written: make(chan struct{}, 16)}
}

func (r *memoryHistoryRepo) Record(ctx context.Context, entry *models.QueryHistoryEntry) error {
	r.mu.Lock()
	entry.ExecutedAt = time.Now()
	r.entries = append(r.entries, *entry)
	r.mu.Unlock()
	select {
	case r.written <- struct{}{}:
	default:
	}
	return nil
}

func (r *memoryHistoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.QueryHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.QueryHistoryEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryHistoryRepo) waitForWrite(timeout time.Duration) bool {
	select {
	case <-r.written:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (r *memoryHistoryRepo) last() models.QueryHistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[len(r.entries)-1]
}

// passthroughDecryptor returns ciphertext unchanged.
type passthroughDecryptor struct{}

func (passthroughDecryptor) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// testDialect registers a factory returning the given stub under a
// unique dialect so tests do not interfere through the global registry.
func testDialect(stub *stubAdapter) models.DBType {
	dialect := models.DBType(fmt.Sprintf("stub-%s", uuid.NewString()[:8]))
	stub.dialect = dialect
	datasource.Register(dialect, func(cfg models.ConnectionConfig, logger *zap.Logger) (datasource.Adapter, error) {
		return stub, nil
	})
	return dialect
}

// repoSource adapts memoryConnRepo to datasource.ConnectionSource.
type repoSource struct {
	repo *memoryConnRepo
}

func (s repoSource) Connection(ctx context.Context, userID string, connectionID uuid.UUID) (*models.ConnectionConfig, error) {
	return s.repo.GetByID(ctx, userID, connectionID)
}
