package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/datasource"
	"github.com/quill-data/quill-engine/pkg/ratelimit"
	"github.com/quill-data/quill-engine/pkg/repositories"
)

// defaultSchemaTTL bounds how stale a cached schema may get before a
// plain Get re-introspects.
const defaultSchemaTTL = 10 * time.Minute

// SchemaService serves introspected schemas for the user's active
// connection, cached per connection.
type SchemaService interface {
	// Get returns the cached schema, introspecting on a miss or after
	// the TTL.
	Get(ctx context.Context, userID string) (*datasource.Schema, error)

	// Refresh discards the cache and re-introspects. Gated by the
	// schema-refresh rate tier.
	Refresh(ctx context.Context, userID string) (*datasource.Schema, error)

	// Invalidate drops the cached schema for a connection.
	Invalidate(connectionID uuid.UUID)
}

type schemaEntry struct {
	schema    *datasource.Schema
	fetchedAt time.Time
}

type schemaService struct {
	limiter     *ratelimit.Limiter
	connections repositories.ConnectionRepository
	cache       *datasource.AdapterCache
	ttl         time.Duration
	logger      *zap.Logger

	mu      sync.RWMutex
	schemas map[uuid.UUID]schemaEntry
}

// NewSchemaService creates a schema service with the default TTL.
func NewSchemaService(
	limiter *ratelimit.Limiter,
	connections repositories.ConnectionRepository,
	cache *datasource.AdapterCache,
	logger *zap.Logger,
) SchemaService {
	return &schemaService{
		limiter:     limiter,
		connections: connections,
		cache:       cache,
		ttl:         defaultSchemaTTL,
		logger:      logger.Named("schema"),
		schemas:     make(map[uuid.UUID]schemaEntry),
	}
}

func (s *schemaService) Get(ctx context.Context, userID string) (*datasource.Schema, error) {
	conn, err := s.connections.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	entry, ok := s.schemas[conn.ID]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < s.ttl {
		return entry.schema, nil
	}

	return s.introspect(ctx, userID, conn.ID)
}

func (s *schemaService) Refresh(ctx context.Context, userID string) (*datasource.Schema, error) {
	if err := s.limiter.Check(ctx, ratelimit.TierSchemaRefresh, userID); err != nil {
		return nil, err
	}

	conn, err := s.connections.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.Invalidate(conn.ID)
	return s.introspect(ctx, userID, conn.ID)
}

func (s *schemaService) Invalidate(connectionID uuid.UUID) {
	s.mu.Lock()
	delete(s.schemas, connectionID)
	s.mu.Unlock()
}

func (s *schemaService) introspect(ctx context.Context, userID string, connectionID uuid.UUID) (*datasource.Schema, error) {
	adapter, err := s.cache.Acquire(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	schema, err := adapter.Schema(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.schemas[connectionID] = schemaEntry{schema: schema, fetchedAt: time.Now()}
	s.mu.Unlock()

	s.logger.Debug("schema introspected",
		zap.String("connection_id", connectionID.String()),
		zap.Int("tables", len(schema.Tables)))
	return schema, nil
}
