// Package retry implements exponential backoff for transient database
// failures: pool creation, health pings, and similar network calls.
package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// Config defines backoff behavior.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0; +/- proportion of the delay
}

// DefaultConfig: 3 retries starting at 100ms, doubling, capped at 5s,
// with 10% jitter to avoid thundering herds on recovery.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func jittered(delay time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return delay
	}
	j := float64(delay) * factor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + j)
}

// Do runs fn until it succeeds or retries are exhausted. Context
// cancellation is honored during waits.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that return a value, such as pool
// constructors.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var zero T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		if attempt < cfg.MaxRetries {
			select {
			case <-time.After(jittered(delay, cfg.JitterFactor)):
				delay = time.Duration(float64(delay) * cfg.Multiplier)
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
	return zero, lastErr
}

// retryablePatterns are transient network/database conditions. Permanent
// failures (auth, bad SQL, unknown database) must not burn retries.
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"too many clients",
	"deadlock",
	"network is unreachable",
	"server is not accepting clients",
}

// IsRetryable reports whether err looks transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
