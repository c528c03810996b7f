package ratelimit

import "time"

// LimitConfig allows at most Max hits per sliding Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

// Policy maps each scope to the limits enforced for it. Every limit of every
// resolved scope must hold for a request to pass.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// DefaultPolicy is tuned for a public shortener: redirects are cheap and
// frequent, link creation writes to the database and is held much tighter.
func DefaultPolicy() *Policy {
	return &Policy{
		Limits: map[Scope][]LimitConfig{
			ScopeGlobal: {
				{Window: time.Minute, Max: 600},
			},
			ScopeRedirect: {
				{Window: time.Second, Max: 20},
				{Window: time.Minute, Max: 300},
			},
			ScopeCreate: {
				{Window: time.Minute, Max: 30},
				{Window: 24 * time.Hour, Max: 1000},
			},
			ScopeManage: {
				{Window: time.Minute, Max: 60},
			},
			ScopeAdmin: {
				{Window: time.Minute, Max: 10},
			},
			ScopeRead: {
				{Window: time.Minute, Max: 120},
			},
			ScopeWrite: {
				{Window: time.Minute, Max: 30},
			},
		},
	}
}

// For returns the limits configured for scope.
func (p *Policy) For(scope Scope) []LimitConfig {
	if p == nil {
		return nil
	}

	return p.Limits[scope]
}
