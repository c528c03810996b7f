package store

import (
	"context"
	"sync"
	"time"
)

// RateLimitMemoryStore is an in-memory ratelimit.Store for single-instance
// deployments and tests.
type RateLimitMemoryStore struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return NewRateLimitMemoryStoreWithClock(time.Now)
}

// NewRateLimitMemoryStoreWithClock creates a store that reads time from now.
func NewRateLimitMemoryStoreWithClock(now func() time.Time) *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		requests: make(map[string][]time.Time),
		now:      now,
	}
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-window)

	// timestamps are appended in order, so everything expired is a prefix
	timestamps := s.requests[key]
	start := 0

	for start < len(timestamps) && !timestamps[start].After(cutoff) {
		start++
	}

	valid := append(timestamps[start:], now)
	s.requests[key] = valid

	return int64(len(valid)), nil
}

// Sweep drops keys whose every hit is older than window and returns how many
// were removed.
func (s *RateLimitMemoryStore) Sweep(window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-window)
	removed := 0

	for key, timestamps := range s.requests {
		if len(timestamps) == 0 || !timestamps[len(timestamps)-1].After(cutoff) {
			delete(s.requests, key)

			removed++
		}
	}

	return removed
}

// Keys returns the number of tracked keys.
func (s *RateLimitMemoryStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}
