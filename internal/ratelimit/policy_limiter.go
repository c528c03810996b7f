package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// LimitExceeded describes the first limit a request broke.
type LimitExceeded struct {
	Scope  Scope
	Config LimitConfig
	Count  int64
}

// RetryAfter is how long the client should wait before trying again. The
// window slides, so waiting one full window always clears it.
func (e *LimitExceeded) RetryAfter() time.Duration {
	return e.Config.Window
}

// PolicyLimiter enforces a Policy over a Store.
type PolicyLimiter struct {
	store  Store
	policy *Policy
}

// NewPolicyLimiter creates a new policy-based rate limiter.
func NewPolicyLimiter(store Store, policy *Policy) *PolicyLimiter {
	if policy == nil {
		policy = DefaultPolicy()
	}

	return &PolicyLimiter{
		store:  store,
		policy: policy,
	}
}

// Allow records the request against every limit of scopes and reports the
// first one exceeded, or nil when the request may proceed.
func (l *PolicyLimiter) Allow(ctx context.Context, clientKey string, scopes []Scope) (*LimitExceeded, error) {
	for _, scope := range scopes {
		for _, limit := range l.policy.For(scope) {
			key := fmt.Sprintf("%s:%s:%d", clientKey, scope, limit.Window.Milliseconds())

			exceeded, err := l.check(ctx, key, scope, limit)
			if err != nil || exceeded != nil {
				return exceeded, err
			}
		}
	}

	return nil, nil
}

// AllowRoute enforces endpoint-specific limits. Counters are keyed by the
// route template, so "/{shortCode}" shares one budget across all codes.
func (l *PolicyLimiter) AllowRoute(
	ctx context.Context,
	clientKey, route string,
	limits []LimitConfig,
) (*LimitExceeded, error) {
	for _, limit := range limits {
		key := fmt.Sprintf("%s:route:%s:%d", clientKey, route, limit.Window.Milliseconds())

		exceeded, err := l.check(ctx, key, ScopeRoute, limit)
		if err != nil || exceeded != nil {
			return exceeded, err
		}
	}

	return nil, nil
}

func (l *PolicyLimiter) check(ctx context.Context, key string, scope Scope, limit LimitConfig) (*LimitExceeded, error) {
	count, err := l.store.Record(ctx, key, limit.Window)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", scope, err)
	}

	if count > limit.Max {
		return &LimitExceeded{Scope: scope, Config: limit, Count: count}, nil
	}

	return nil, nil
}
