package datasource

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/logging"
	"github.com/quill-data/quill-engine/pkg/models"
)

const (
	// healthPingTimeout bounds one health probe.
	healthPingTimeout = 5 * time.Second

	// Latency thresholds for classifying a successful probe.
	healthyLatency  = 1000 * time.Millisecond
	degradedLatency = 3000 * time.Millisecond
)

// Monitor tracks per-connection health from probe outcomes. Uptime is
// the lifetime success ratio by default; WithRollingWindow switches it
// to the last n probes.
type Monitor struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*healthRecord
	window  int // 0 means lifetime
	logger  *zap.Logger
}

type healthRecord struct {
	health models.ConnectionHealth
	// recent is a ring of probe outcomes, used only when a rolling
	// window is configured.
	recent []bool
	next   int
	filled int
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithRollingWindow computes uptime over the last n probes instead of
// the record's lifetime.
func WithRollingWindow(n int) MonitorOption {
	return func(m *Monitor) {
		if n > 0 {
			m.window = n
		}
	}
}

// NewMonitor creates a health monitor.
func NewMonitor(logger *zap.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		records: make(map[uuid.UUID]*healthRecord),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check probes adapter once and folds the outcome into connectionID's
// record. The returned health is a snapshot.
func (m *Monitor) Check(ctx context.Context, connectionID uuid.UUID, adapter Adapter) models.ConnectionHealth {
	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	start := time.Now()
	err := adapter.Ping(pingCtx)
	latency := time.Since(start)

	if err != nil {
		m.logger.Warn("health probe failed",
			zap.String("connectionID", connectionID.String()),
			zap.String("error", logging.SanitizeError(err)),
		)
	}

	return m.record(connectionID, err == nil, latency)
}

// record updates the health record for one probe outcome.
func (m *Monitor) record(connectionID uuid.UUID, ok bool, latency time.Duration) models.ConnectionHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[connectionID]
	if !exists {
		rec = &healthRecord{
			health: models.ConnectionHealth{
				ConnectionID: connectionID,
				Status:       models.HealthUnknown,
			},
		}
		if m.window > 0 {
			rec.recent = make([]bool, m.window)
		}
		m.records[connectionID] = rec
	}

	h := &rec.health
	h.LastCheck = time.Now()
	h.LatencyMs = latency.Milliseconds()
	h.TotalChecks++

	if ok {
		h.SuccessfulChecks++
		h.ConsecutiveSuccesses++
		h.ConsecutiveFailures = 0
		h.Status = classifyLatency(latency)
	} else {
		h.ConsecutiveFailures++
		h.ConsecutiveSuccesses = 0
		h.Status = models.HealthDown
	}

	if m.window > 0 {
		rec.recent[rec.next] = ok
		rec.next = (rec.next + 1) % m.window
		if rec.filled < m.window {
			rec.filled++
		}
		h.UptimePercent = rollingUptime(rec)
	} else {
		h.UptimePercent = float64(h.SuccessfulChecks) / float64(h.TotalChecks) * 100
	}

	return *h
}

func classifyLatency(latency time.Duration) models.HealthStatus {
	switch {
	case latency < healthyLatency:
		return models.HealthHealthy
	case latency < degradedLatency:
		return models.HealthDegraded
	default:
		return models.HealthDown
	}
}

func rollingUptime(rec *healthRecord) float64 {
	if rec.filled == 0 {
		return 0
	}
	successes := 0
	for i := 0; i < rec.filled; i++ {
		if rec.recent[i] {
			successes++
		}
	}
	return float64(successes) / float64(rec.filled) * 100
}

// Get returns the current health record for a connection.
func (m *Monitor) Get(connectionID uuid.UUID) (models.ConnectionHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[connectionID]
	if !ok {
		return models.ConnectionHealth{}, false
	}
	return rec.health, true
}

// IsHealthy reports whether the connection's last probe succeeded and is
// no older than maxAge. Degraded counts as usable; down, unknown, and
// untracked connections do not.
func (m *Monitor) IsHealthy(connectionID uuid.UUID, maxAge time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[connectionID]
	if !ok {
		return false
	}
	h := rec.health
	if h.Status != models.HealthHealthy && h.Status != models.HealthDegraded {
		return false
	}
	return time.Since(h.LastCheck) <= maxAge
}

// All returns health snapshots for every tracked connection.
func (m *Monitor) All() []models.ConnectionHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ConnectionHealth, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.health)
	}
	return out
}

// Forget drops the record for a connection, used when the connection is
// deleted.
func (m *Monitor) Forget(connectionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, connectionID)
}
