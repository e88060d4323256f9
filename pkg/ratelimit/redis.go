package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sliding windows in Redis sorted sets: one set per
// key, members scored by hit time in nanoseconds.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Add trims entries older than the window, records the hit, and returns
// the resulting count plus the oldest surviving hit. One pipeline round
// trip per call.
func (s *RedisStore) Add(ctx context.Context, key string, now time.Time, window time.Duration) (int, time.Time, error) {
	nowNs := now.UnixNano()
	cutoff := now.Add(-window).UnixNano()

	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(nowNs),
		Member: fmt.Sprintf("%d-%s", nowNs, uuid.NewString()),
	})
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.Expire(ctx, key, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit pipeline failed: %w", err)
	}

	count := int(countCmd.Val())

	oldest := now
	if entries := oldestCmd.Val(); len(entries) > 0 {
		oldest = time.Unix(0, int64(entries[0].Score))
	}
	return count, oldest, nil
}
