package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/linkpulse/internal/metrics"
	"github.com/serroba/linkpulse/internal/ratelimit"
	"go.uber.org/zap"
)

// PolicyRateLimiter returns a Huma middleware that applies policy-based rate limiting.
//
// Per-endpoint configuration in operation metadata (ratelimit.MetadataKey) can
// disable limiting, pick a scope, or replace the policy with explicit limits.
// Requests are let through when the store is unreachable.
func PolicyRateLimiter(
	api huma.API,
	limiter *ratelimit.PolicyLimiter,
	resolver ratelimit.ScopeResolver,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		path := operationPath(ctx)
		cfg := ratelimit.GetEndpointConfig(ctx)

		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		var (
			exceeded *ratelimit.LimitExceeded
			err      error
		)

		if cfg != nil && len(cfg.Limits) > 0 {
			exceeded, err = limiter.AllowRoute(ctx.Context(), clientKey(ctx), path, cfg.Limits)
		} else {
			exceeded, err = limiter.Allow(ctx.Context(), clientKey(ctx), resolver.Resolve(ctx))
		}

		if err != nil {
			logger.Warn("rate limit check failed, allowing request",
				zap.String("path", path),
				zap.Error(err),
			)
			next(ctx)

			return
		}

		if exceeded != nil {
			reject(api, ctx, exceeded, path, logger)

			return
		}

		next(ctx)
	}
}

func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ctx.URL().Path
}

func reject(api huma.API, ctx huma.Context, exceeded *ratelimit.LimitExceeded, path string, logger *zap.Logger) {
	metrics.RateLimited.WithLabelValues(string(exceeded.Scope)).Inc()

	logger.Warn("rate limit exceeded",
		zap.String("path", path),
		zap.String("method", ctx.Method()),
		zap.String("scope", string(exceeded.Scope)),
		zap.Int64("count", exceeded.Count),
		zap.Int64("max", exceeded.Config.Max),
		zap.Duration("window", exceeded.Config.Window),
	)

	retryAfter := max(int(exceeded.RetryAfter().Seconds()), 1)
	ctx.SetHeader("Retry-After", strconv.Itoa(retryAfter))

	msg := fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in %s",
		exceeded.Scope, exceeded.Count, exceeded.Config.Max, exceeded.Config.Window)
	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)
}
