package container

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
	"github.com/serroba/linkpulse/internal/handlers"
	"github.com/serroba/linkpulse/internal/health"
	"github.com/serroba/linkpulse/internal/middleware"
	"github.com/serroba/linkpulse/internal/ratelimit"
	"github.com/serroba/linkpulse/internal/resolver"
	"github.com/serroba/linkpulse/internal/store"
	"go.uber.org/zap"
)

// HTTPPackage provides the router and the huma API with every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		router.Use(chimiddleware.Recoverer)
		router.Handle("/metrics", promhttp.Handler())

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		limiter := do.MustInvoke[*ratelimit.PolicyLimiter](i)
		links := do.MustInvoke[*resolver.Resolver](i)
		redisClient := do.MustInvoke[*RedisClient](i)
		postgres := do.MustInvoke[*store.PostgresStore](i)

		api := humachi.New(router, huma.DefaultConfig("Linkpulse", "1.0.0"))
		api.UseMiddleware(
			middleware.RequestMeta(api),
			middleware.PolicyRateLimiter(api, limiter, ratelimit.NewOperationScopeResolver(), logger),
		)

		health.RegisterRoutes(api, health.NewHandler().
			With("redis", health.NewRedisChecker(redisClient.Client)).
			With("postgres", postgres),
		)
		handlers.RegisterRoutes(api, handlers.NewLinkHandler(links, opts.ShortURLBase(), logger))

		return api, nil
	})
}
