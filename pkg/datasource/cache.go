package datasource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/config"
	"github.com/quill-data/quill-engine/pkg/models"
	"github.com/quill-data/quill-engine/pkg/retry"
)

const (
	DefaultAdapterTTL     = 30 * time.Minute
	DefaultIdleTimeout    = 10 * time.Minute
	DefaultHealthInterval = 60 * time.Second
	DefaultPoolMaxConns   = int32(5)

	cacheSweepInterval = 1 * time.Minute
)

// ConnectionSource loads connection configs for the cache. The returned
// config's Password is still encrypted.
type ConnectionSource interface {
	Connection(ctx context.Context, userID string, connectionID uuid.UUID) (*models.ConnectionConfig, error)
}

// Decryptor recovers plaintext credentials for adapter construction.
type Decryptor interface {
	Decrypt(ciphertext string) (string, error)
}

// CacheConfig bounds cached adapter lifetimes.
type CacheConfig struct {
	// TTL is the maximum age of a cached adapter regardless of use.
	TTL time.Duration
	// IdleTimeout evicts adapters not acquired recently.
	IdleTimeout time.Duration
	// HealthInterval is how long a successful ping stays trusted; an
	// acquire past it re-pings before handing the adapter out.
	HealthInterval time.Duration
	// PoolMaxConns caps each adapter's connection pool.
	PoolMaxConns int32
}

func (c *CacheConfig) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultAdapterTTL
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.PoolMaxConns <= 0 {
		c.PoolMaxConns = DefaultPoolMaxConns
	}
}

// NewCacheConfig converts loaded adapter settings into cache bounds.
func NewCacheConfig(ac config.AdapterConfig) CacheConfig {
	return CacheConfig{
		TTL:            time.Duration(ac.TTLMinutes) * time.Minute,
		IdleTimeout:    time.Duration(ac.IdleMinutes) * time.Minute,
		HealthInterval: time.Duration(ac.HealthIntervalSeconds) * time.Second,
		PoolMaxConns:   ac.PoolMaxConns,
	}
}

// AdapterCache hands out live adapters keyed by "{userID}:{connectionID}",
// creating them on demand and recycling them on expiry, idleness, or
// failed health checks. Creation is single-flight per key: concurrent
// acquires for the same connection share one adapter.
type AdapterCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	stopped bool

	cfg       CacheConfig
	source    ConnectionSource
	decryptor Decryptor
	health    *Monitor
	stopChan  chan struct{}
	logger    *zap.Logger
}

// cacheEntry wraps one cached adapter. The entry mutex serializes
// creation, health probing, and recycling per key; the map mutex is
// never held across those.
type cacheEntry struct {
	mu           sync.Mutex
	connectionID uuid.UUID
	adapter      Adapter
	createdAt    time.Time
	lastUsed     time.Time
	lastHealth   time.Time
}

// NewAdapterCache creates the cache and starts its background sweeper.
func NewAdapterCache(cfg CacheConfig, source ConnectionSource, decryptor Decryptor, logger *zap.Logger) *AdapterCache {
	cfg.applyDefaults()
	c := &AdapterCache{
		entries:   make(map[string]*cacheEntry),
		cfg:       cfg,
		source:    source,
		decryptor: decryptor,
		health:    NewMonitor(logger),
		stopChan:  make(chan struct{}),
		logger:    logger,
	}
	go c.sweepLoop()
	return c
}

// Health exposes the monitor holding per-connection probe records.
func (c *AdapterCache) Health() *Monitor { return c.health }

func cacheKey(userID string, connectionID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", userID, connectionID)
}

// Acquire returns a connected, recently-verified adapter for the given
// connection, creating or recycling one as needed.
func (c *AdapterCache) Acquire(ctx context.Context, userID string, connectionID uuid.UUID) (Adapter, error) {
	key := cacheKey(userID, connectionID)

	for {
		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			return nil, apperrors.Connection("adapter cache is closed", nil)
		}
		entry, ok := c.entries[key]
		if !ok {
			entry = &cacheEntry{connectionID: connectionID}
			c.entries[key] = entry
		}
		c.mu.Unlock()

		entry.mu.Lock()

		// A concurrent Invalidate can remove the entry between the map
		// read and taking the entry lock. Restart on a stale entry so a
		// rebuilt adapter is never orphaned outside the map.
		c.mu.RLock()
		current := c.entries[key]
		c.mu.RUnlock()
		if current != entry {
			entry.mu.Unlock()
			continue
		}

		adapter, err := c.acquireLocked(ctx, key, entry, userID, connectionID)
		entry.mu.Unlock()
		return adapter, err
	}
}

// acquireLocked validates or rebuilds the entry's adapter. Caller holds
// the entry lock and has verified the entry is still mapped at key.
func (c *AdapterCache) acquireLocked(ctx context.Context, key string, entry *cacheEntry, userID string, connectionID uuid.UUID) (Adapter, error) {
	now := time.Now()

	if entry.adapter != nil {
		switch {
		case now.Sub(entry.createdAt) > c.cfg.TTL:
			c.recycle(key, entry, "ttl expired")
		case now.Sub(entry.lastUsed) > c.cfg.IdleTimeout:
			c.recycle(key, entry, "idle timeout")
		case now.Sub(entry.lastHealth) >= c.cfg.HealthInterval:
			h := c.health.Check(ctx, connectionID, entry.adapter)
			if h.Status == models.HealthDown {
				c.logger.Warn("cached adapter unhealthy, recreating",
					zap.String("key", key),
					zap.Int64("latencyMs", h.LatencyMs),
				)
				c.recycle(key, entry, "health check failed")
			} else {
				entry.lastHealth = now
			}
		}
	}

	if entry.adapter == nil {
		adapter, err := c.build(ctx, userID, connectionID)
		if err != nil {
			c.remove(key, entry)
			return nil, err
		}
		if h := c.health.Check(ctx, connectionID, adapter); h.Status == models.HealthDown {
			_ = adapter.Close()
			c.remove(key, entry)
			return nil, apperrors.Connection("database is unreachable or responding too slowly", nil)
		}
		entry.adapter = adapter
		entry.createdAt = now
		entry.lastHealth = time.Now()
		c.logger.Info("created adapter",
			zap.String("key", key),
			zap.String("dialect", string(adapter.Dialect())),
		)
	}

	entry.lastUsed = time.Now()
	return entry.adapter, nil
}

// build loads the config, decrypts credentials, and connects a fresh
// adapter with retry for transient dial failures.
func (c *AdapterCache) build(ctx context.Context, userID string, connectionID uuid.UUID) (Adapter, error) {
	cfg, err := c.source.Connection(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}

	plaintext, err := c.decryptor.Decrypt(cfg.Password)
	if err != nil {
		return nil, apperrors.Connection("stored credentials could not be decrypted", err)
	}
	cfg.Password = plaintext
	cfg.MaxPoolConns = c.cfg.PoolMaxConns

	adapter, err := New(*cfg, c.logger)
	if err != nil {
		return nil, err
	}

	if err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		return adapter.Connect(ctx)
	}); err != nil {
		_ = adapter.Close()
		return nil, apperrors.Connection("failed to connect to database", err)
	}
	return adapter, nil
}

// recycle closes the entry's adapter in place. Caller holds the entry
// lock; the entry stays in the map for rebuild.
func (c *AdapterCache) recycle(key string, entry *cacheEntry, reason string) {
	if entry.adapter != nil {
		_ = entry.adapter.Close()
		entry.adapter = nil
	}
	c.logger.Debug("recycled adapter",
		zap.String("key", key),
		zap.String("reason", reason),
	)
}

// remove deletes the entry from the map if it is still the one mapped
// at key. Caller holds the entry lock.
func (c *AdapterCache) remove(key string, entry *cacheEntry) {
	c.mu.Lock()
	if current, ok := c.entries[key]; ok && current == entry {
		delete(c.entries, key)
	}
	c.mu.Unlock()
}

// Invalidate closes and drops the cached adapter for one connection.
// It returns only after the adapter is closed, so a follow-up acquire
// always builds from fresh credentials.
func (c *AdapterCache) Invalidate(userID string, connectionID uuid.UUID) {
	key := cacheKey(userID, connectionID)

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	entry.mu.Lock()
	if entry.adapter != nil {
		_ = entry.adapter.Close()
		entry.adapter = nil
	}
	entry.mu.Unlock()
	c.health.Forget(connectionID)
	c.logger.Debug("invalidated adapter", zap.String("key", key))
}

// InvalidateUser drops every cached adapter belonging to one user.
func (c *AdapterCache) InvalidateUser(userID string) {
	prefix := userID + ":"

	c.mu.Lock()
	var victims []*cacheEntry
	for key, entry := range c.entries {
		if strings.HasPrefix(key, prefix) {
			victims = append(victims, entry)
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	for _, entry := range victims {
		entry.mu.Lock()
		if entry.adapter != nil {
			_ = entry.adapter.Close()
			entry.adapter = nil
		}
		entry.mu.Unlock()
		c.health.Forget(entry.connectionID)
	}
}

// sweepLoop evicts expired and idle adapters in the background so they
// do not hold database connections between requests.
func (c *AdapterCache) sweepLoop() {
	ticker := time.NewTicker(cacheSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopChan:
			return
		}
	}
}

func (c *AdapterCache) sweep() {
	now := time.Now()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	candidates := make(map[string]*cacheEntry, len(c.entries))
	for key, entry := range c.entries {
		candidates[key] = entry
	}
	c.mu.Unlock()

	evicted := 0
	for key, entry := range candidates {
		entry.mu.Lock()
		expired := entry.adapter != nil &&
			(now.Sub(entry.createdAt) > c.cfg.TTL || now.Sub(entry.lastUsed) > c.cfg.IdleTimeout)
		if expired {
			_ = entry.adapter.Close()
			entry.adapter = nil
			// Unmap under the entry lock so a concurrent acquire cannot
			// rebuild into an entry the map no longer tracks.
			c.remove(key, entry)
			c.health.Forget(entry.connectionID)
			evicted++
		}
		entry.mu.Unlock()
	}

	if evicted > 0 {
		c.logger.Info("swept expired adapters", zap.Int("count", evicted))
	}
}

// Close shuts down the sweeper and closes every cached adapter.
// Idempotent.
func (c *AdapterCache) Close() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopChan)
	entries := c.entries
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
		if entry.adapter != nil {
			_ = entry.adapter.Close()
			entry.adapter = nil
		}
		entry.mu.Unlock()
		c.health.Forget(entry.connectionID)
	}
	c.logger.Info("adapter cache closed")
	return nil
}

// CacheStats describes the cache's current occupancy.
type CacheStats struct {
	TotalAdapters     int            `json:"total_adapters"`
	AdaptersByUser    map[string]int `json:"adapters_by_user"`
	OldestIdleSeconds int            `json:"oldest_idle_seconds"`
}

// Stats returns a snapshot of cache occupancy. Safe to call
// concurrently.
func (c *AdapterCache) Stats() CacheStats {
	c.mu.RLock()
	snapshot := make(map[string]*cacheEntry, len(c.entries))
	for key, entry := range c.entries {
		snapshot[key] = entry
	}
	c.mu.RUnlock()

	now := time.Now()
	stats := CacheStats{
		TotalAdapters:  len(snapshot),
		AdaptersByUser: make(map[string]int),
	}
	for key, entry := range snapshot {
		if idx := strings.IndexByte(key, ':'); idx > 0 {
			stats.AdaptersByUser[key[:idx]]++
		}
		entry.mu.Lock()
		idle := int(now.Sub(entry.lastUsed).Seconds())
		entry.mu.Unlock()
		if idle > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idle
		}
	}
	return stats
}
