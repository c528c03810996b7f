package ratelimit

import (
	"context"
	"time"
)

// Store records hits in sliding windows.
type Store interface {
	// Record adds a hit under key and returns how many hits fall inside the
	// window ending now, the new one included.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}
