// Package ratelimit implements multi-tier sliding-window rate limiting.
// Counters live in Redis so limits hold across engine instances; when
// the counter store is absent or unreachable the limiter fails open,
// favoring availability over enforcement.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quill-data/quill-engine/pkg/apperrors"
	"github.com/quill-data/quill-engine/pkg/logging"
)

// Tier is one rate-limit bucket: a name, a cap, and the sliding window
// the cap applies to.
type Tier struct {
	Name   string
	Limit  int
	Window time.Duration
}

// The engine's fixed tiers. Generation is the most expensive operation
// per request; schema refresh and connection tests hit external
// databases and get hourly windows.
var (
	TierGeneration     = Tier{Name: "generation", Limit: 10, Window: time.Minute}
	TierExecution      = Tier{Name: "execution", Limit: 20, Window: time.Minute}
	TierSchemaRefresh  = Tier{Name: "schema_refresh", Limit: 5, Window: time.Hour}
	TierConnectionTest = Tier{Name: "connection_test", Limit: 10, Window: time.Hour}
	TierGlobal         = Tier{Name: "global", Limit: 1000, Window: time.Minute}
)

// Result describes one admission decision.
type Result struct {
	Allowed           bool      `json:"allowed"`
	Limit             int       `json:"limit"`
	Remaining         int       `json:"remaining"`
	ResetAt           time.Time `json:"reset_at"`
	RetryAfterSeconds int       `json:"retry_after_seconds"`
}

// SlidingWindow records one hit and reports the window's state. Count
// includes the hit just recorded; oldest is the timestamp of the
// earliest hit still inside the window.
type SlidingWindow interface {
	Add(ctx context.Context, key string, now time.Time, window time.Duration) (count int, oldest time.Time, err error)
}

// Limiter makes admission decisions against a shared counter store.
type Limiter struct {
	store        SlidingWindow
	logger       *zap.Logger
	failOpenOnce sync.Once
}

// New creates a limiter. A nil store disables enforcement.
func New(store SlidingWindow, logger *zap.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

// Allow records one request for subject under tier and decides whether
// it may proceed. Store failures admit the request.
func (l *Limiter) Allow(ctx context.Context, tier Tier, subject string) Result {
	open := Result{
		Allowed:   true,
		Limit:     tier.Limit,
		Remaining: tier.Limit,
	}

	if l.store == nil {
		l.failOpenOnce.Do(func() {
			l.logger.Warn("rate limiting disabled: no counter store configured")
		})
		return open
	}

	now := time.Now()
	key := fmt.Sprintf("ratelimit:%s:%s", tier.Name, subject)

	count, oldest, err := l.store.Add(ctx, key, now, tier.Window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, failing open",
			zap.String("tier", tier.Name),
			zap.String("error", logging.SanitizeError(err)),
		)
		return open
	}

	resetAt := oldest.Add(tier.Window)
	result := Result{
		Limit:   tier.Limit,
		ResetAt: resetAt,
	}

	if count <= tier.Limit {
		result.Allowed = true
		result.Remaining = tier.Limit - count
		return result
	}

	retryAfter := int(time.Until(resetAt).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}
	result.RetryAfterSeconds = retryAfter
	return result
}

// Check runs Allow and converts a denial into the rate-limit error.
func (l *Limiter) Check(ctx context.Context, tier Tier, subject string) error {
	result := l.Allow(ctx, tier, subject)
	if result.Allowed {
		return nil
	}
	return apperrors.RateLimited(result.RetryAfterSeconds)
}
