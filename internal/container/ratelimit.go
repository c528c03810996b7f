package container

import (
	"fmt"
	"time"

	"github.com/samber/do"
	"github.com/serroba/linkpulse/internal/ratelimit"
	"github.com/serroba/linkpulse/internal/store"
	"go.uber.org/zap"
)

const (
	sweepInterval = time.Minute
	// longest window in the default policy
	sweepWindow = 24 * time.Hour
)

// sweptMemoryStore is the in-memory store plus a goroutine that drops idle
// keys, stopped when the injector shuts down.
type sweptMemoryStore struct {
	*store.RateLimitMemoryStore

	logger *zap.Logger
	stop   chan struct{}
	done   chan struct{}
}

func newSweptMemoryStore(logger *zap.Logger) *sweptMemoryStore {
	s := &sweptMemoryStore{
		RateLimitMemoryStore: store.NewRateLimitMemoryStore(),
		logger:               logger,
		stop:                 make(chan struct{}),
		done:                 make(chan struct{}),
	}

	go s.sweep()

	return s
}

func (s *sweptMemoryStore) sweep() {
	defer close(s.done)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if removed := s.Sweep(sweepWindow); removed > 0 {
				s.logger.Debug("swept rate limit keys", zap.Int("removed", removed))
			}
		}
	}
}

func (s *sweptMemoryStore) Shutdown() error {
	close(s.stop)
	<-s.done

	return nil
}

// RateLimitPackage provides the configured rate limit store and the policy
// limiter over it.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (ratelimit.Store, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.RateLimitStore {
		case "", "redis":
			client := do.MustInvoke[*RedisClient](i)

			return store.NewRateLimitRedisStore(client.Client), nil
		case "memory":
			return newSweptMemoryStore(do.MustInvoke[*zap.Logger](i)), nil
		default:
			return nil, fmt.Errorf("unknown rate limit store %q", opts.RateLimitStore)
		}
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		return ratelimit.NewPolicyLimiter(do.MustInvoke[ratelimit.Store](i), ratelimit.DefaultPolicy()), nil
	})
}
