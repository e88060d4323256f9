package datasource

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/models"
)

// Factory builds an unconnected adapter for one connection config. The
// config's Password field holds plaintext at this point; factories must
// not log it.
type Factory func(cfg models.ConnectionConfig, logger *zap.Logger) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[models.DBType]Factory)
)

// Register is called by each dialect package's init(). Thread-safe for
// concurrent init calls.
func Register(dbType models.DBType, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[dbType] = factory
}

// RegisteredDialects returns the dialects with a registered factory.
func RegisteredDialects() []models.DBType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	dialects := make([]models.DBType, 0, len(registry))
	for dbType := range registry {
		dialects = append(dialects, dbType)
	}
	return dialects
}

// New builds an adapter for cfg's dialect without connecting it.
func New(cfg models.ConnectionConfig, logger *zap.Logger) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.DBType]
	registryMu.RUnlock()

	if !ok {
		return nil, apperrors.Connection(
			fmt.Sprintf("unsupported database type: %s", cfg.DBType),
			apperrors.ErrUnsupportedDialect,
		)
	}
	return factory(cfg, logger)
}
