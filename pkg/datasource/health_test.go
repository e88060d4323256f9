package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/quill-data/quill-engine/pkg/models"
)

func TestMonitorCheckHealthy(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t))
	connID := uuid.New()
	adapter := &fakeAdapter{dialect: models.DBTypePostgres}

	h := m.Check(context.Background(), connID, adapter)

	assert.Equal(t, models.HealthHealthy, h.Status)
	assert.Equal(t, 1, h.TotalChecks)
	assert.Equal(t, 1, h.ConsecutiveSuccesses)
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.InDelta(t, 100.0, h.UptimePercent, 0.01)
}

func TestMonitorCheckFailureMarksDown(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t))
	connID := uuid.New()
	adapter := &fakeAdapter{dialect: models.DBTypePostgres}

	m.Check(context.Background(), connID, adapter)

	adapter.setPingErr(errors.New("connection refused"))
	h := m.Check(context.Background(), connID, adapter)

	assert.Equal(t, models.HealthDown, h.Status)
	assert.Equal(t, 1, h.ConsecutiveFailures)
	assert.Equal(t, 0, h.ConsecutiveSuccesses)
	assert.Equal(t, 2, h.TotalChecks)
	assert.InDelta(t, 50.0, h.UptimePercent, 0.01)
}

func TestMonitorRecoveryResetsFailureStreak(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t))
	connID := uuid.New()
	adapter := &fakeAdapter{dialect: models.DBTypePostgres}

	adapter.setPingErr(errors.New("connection refused"))
	m.Check(context.Background(), connID, adapter)
	m.Check(context.Background(), connID, adapter)

	adapter.setPingErr(nil)
	h := m.Check(context.Background(), connID, adapter)

	assert.Equal(t, models.HealthHealthy, h.Status)
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.Equal(t, 1, h.ConsecutiveSuccesses)
}

func TestClassifyLatency(t *testing.T) {
	assert.Equal(t, models.HealthHealthy, classifyLatency(5*time.Millisecond))
	assert.Equal(t, models.HealthHealthy, classifyLatency(999*time.Millisecond))
	assert.Equal(t, models.HealthDegraded, classifyLatency(1500*time.Millisecond))
	assert.Equal(t, models.HealthDown, classifyLatency(3500*time.Millisecond))
}

func TestMonitorLifetimeUptime(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t))
	connID := uuid.New()

	for i := 0; i < 8; i++ {
		m.record(connID, true, time.Millisecond)
	}
	for i := 0; i < 2; i++ {
		m.record(connID, false, time.Millisecond)
	}

	h, ok := m.Get(connID)
	require.True(t, ok)
	assert.InDelta(t, 80.0, h.UptimePercent, 0.01)
	assert.Equal(t, 10, h.TotalChecks)
}

func TestMonitorRollingWindowUptime(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t), WithRollingWindow(4))
	connID := uuid.New()

	// Old failures scroll out of the window.
	for i := 0; i < 4; i++ {
		m.record(connID, false, time.Millisecond)
	}
	for i := 0; i < 4; i++ {
		m.record(connID, true, time.Millisecond)
	}

	h, ok := m.Get(connID)
	require.True(t, ok)
	assert.InDelta(t, 100.0, h.UptimePercent, 0.01)
	assert.Equal(t, 8, h.TotalChecks, "lifetime counters still accumulate")
}

func TestMonitorIsHealthy(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t))
	connID := uuid.New()

	assert.False(t, m.IsHealthy(connID, time.Minute), "untracked connection is not healthy")

	m.record(connID, true, time.Millisecond)
	assert.True(t, m.IsHealthy(connID, time.Minute))

	// Degraded still counts as usable.
	m.record(connID, true, 1500*time.Millisecond)
	assert.True(t, m.IsHealthy(connID, time.Minute))

	m.record(connID, false, time.Millisecond)
	assert.False(t, m.IsHealthy(connID, time.Minute), "down connection is not healthy")
}

func TestMonitorIsHealthyExpiresWithAge(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t))
	connID := uuid.New()

	m.record(connID, true, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	assert.True(t, m.IsHealthy(connID, time.Minute))
	assert.False(t, m.IsHealthy(connID, time.Millisecond), "stale verdicts must not count")
}

func TestMonitorGetUnknownConnection(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t))
	_, ok := m.Get(uuid.New())
	assert.False(t, ok)
}

func TestMonitorForget(t *testing.T) {
	m := NewMonitor(zaptest.NewLogger(t))
	connID := uuid.New()
	m.record(connID, true, time.Millisecond)

	m.Forget(connID)
	_, ok := m.Get(connID)
	assert.False(t, ok)
	assert.Empty(t, m.All())
}
