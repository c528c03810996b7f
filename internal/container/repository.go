package container

import (
	"time"

	"github.com/samber/do"
	"github.com/serroba/linkpulse/internal/analytics"
	"github.com/serroba/linkpulse/internal/auth"
	"github.com/serroba/linkpulse/internal/cache"
	"github.com/serroba/linkpulse/internal/messaging"
	"github.com/serroba/linkpulse/internal/queue"
	"github.com/serroba/linkpulse/internal/resolver"
	"github.com/serroba/linkpulse/internal/shortener"
	"github.com/serroba/linkpulse/internal/store"
	"go.uber.org/zap"
)

// RepositoryPackage provides the link cache and the click queue.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*cache.Cache[shortener.ShortLink], error) {
		opts := do.MustInvoke[*Options](i)
		client := do.MustInvoke[*RedisClient](i)

		return cache.New[shortener.ShortLink](
			client.Client,
			shortener.CacheNamespace,
			time.Duration(opts.CacheTTL)*time.Second,
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*queue.RedisList[analytics.ClickEvent], error) {
		client := do.MustInvoke[*RedisClient](i)

		return queue.NewRedisList[analytics.ClickEvent](client.Client, queue.DefaultClickKey), nil
	})
}

// ResolverPackage provides the resolver with its generator and authorizer.
func ResolverPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*resolver.Resolver, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		repo := do.MustInvoke[*store.PostgresStore](i)
		links := do.MustInvoke[*cache.Cache[shortener.ShortLink]](i)
		clicks := do.MustInvoke[*queue.RedisList[analytics.ClickEvent]](i)
		publishers := do.MustInvoke[*messaging.PublisherGroup](i)

		generator, err := shortener.NewGenerator(opts.CodeLength, opts.SuffixLength)
		if err != nil {
			return nil, err
		}

		var authorizer resolver.Authorizer = auth.AllowAll{}
		if opts.JWTSecret != "" {
			authorizer = auth.NewJWTAuthorizer(opts.JWTSecret)
		} else {
			logger.Warn("no JWT secret configured, owner checks are disabled")
		}

		return resolver.New(
			repo,
			links,
			clicks,
			generator,
			authorizer,
			messaging.NewPublishFunc[analytics.LinkCreatedEvent](publishers.Publisher(), analytics.TopicLinkCreated),
			logger,
			resolver.Config{},
		), nil
	})
}

// PublisherGroupPackage provides the Redis Streams publisher.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := messaging.NewRedisPublisher(client.Client, logger)
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}
