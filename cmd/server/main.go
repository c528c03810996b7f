package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/linkpulse/internal/container"
	"github.com/serroba/linkpulse/internal/resolver"
	"go.uber.org/zap"
)

const (
	warmCacheTimeout = 30 * time.Second
	shutdownTimeout  = 30 * time.Second
)

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.RepositoryPackage(injector)
	container.PublisherGroupPackage(injector)
	container.ResolverPackage(injector)
	container.RateLimitPackage(injector)
	container.HTTPPackage(injector)
}

func warmCache(injector *do.Injector, limit int, logger *zap.Logger) {
	if limit <= 0 {
		return
	}

	links := do.MustInvoke[*resolver.Resolver](injector)

	ctx, cancel := context.WithTimeout(context.Background(), warmCacheTimeout)
	defer cancel()

	loaded, err := links.WarmCache(ctx, limit)
	if err != nil {
		logger.Warn("cache warm-up failed", zap.Error(err))

		return
	}

	logger.Info("cache warmed", zap.Int("links", loaded))
}

func main() {
	// a missing .env is fine, the environment still applies
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var server *http.Server

		hooks.OnStart(func() {
			router := do.MustInvoke[*chi.Mux](injector)

			// Invoke API to trigger route registration
			_ = do.MustInvoke[huma.API](injector)

			warmCache(injector, options.WarmCacheSize, logger)

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("server starting",
				zap.Int("port", options.Port),
				zap.String("baseUrl", options.ShortURLBase()),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Run()
}
