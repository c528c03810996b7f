package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// slidingWindow keeps one sorted set member per hit, scored by its time in
// milliseconds. Pruning, recording and counting run as one atomic script so
// concurrent instances never double-admit.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
redis.call('ZADD', key, now, ARGV[3])
redis.call('PEXPIRE', key, window)

return redis.call('ZCARD', key)
`)

// RateLimitRedisStore is a ratelimit.Store shared by every API instance.
type RateLimitRedisStore struct {
	client redis.Scripter
	now    func() time.Time
}

// NewRateLimitRedisStore creates a Redis-backed rate limit store.
func NewRateLimitRedisStore(client redis.Scripter) *RateLimitRedisStore {
	return NewRateLimitRedisStoreWithClock(client, time.Now)
}

// NewRateLimitRedisStoreWithClock creates a store that reads time from now.
func NewRateLimitRedisStoreWithClock(client redis.Scripter, now func() time.Time) *RateLimitRedisStore {
	return &RateLimitRedisStore{client: client, now: now}
}

func (s *RateLimitRedisStore) Record(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := slidingWindow.Run(ctx, s.client,
		[]string{rateLimitPrefix + key},
		s.now().UnixMilli(),
		window.Milliseconds(),
		uuid.NewString(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("rate limit record: %w", err)
	}

	return count, nil
}
