package container

import (
	"net/http"
	"os"
	"time"

	"github.com/samber/do"
	"github.com/serroba/linkpulse/internal/analytics"
	"github.com/serroba/linkpulse/internal/messaging"
	"github.com/serroba/linkpulse/internal/queue"
	"github.com/serroba/linkpulse/internal/store"
	"go.uber.org/zap"
)

const consumerGroupName = "linkpulse"

// ConsumerOptions configures the analytics worker.
type ConsumerOptions struct {
	GeoBaseURL   string
	GeoTimeout   time.Duration
	GeoCacheTTL  time.Duration
	GeoCacheSize int
	ConsumerName string
	Processor    analytics.ProcessorConfig
}

func (o *ConsumerOptions) consumerName() string {
	if o.ConsumerName != "" {
		return o.ConsumerName
	}

	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}

	return consumerGroupName
}

// ConsumerGroupPackage provides the worker's consumer group: the click
// processor plus journal consumers for link and dead letter events.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*ConsumerOptions](i)
		logger := do.MustInvoke[*zap.Logger](i)
		client := do.MustInvoke[*RedisClient](i)
		clicks := do.MustInvoke[*queue.RedisList[analytics.ClickEvent]](i)
		durable := do.MustInvoke[*store.PostgresStore](i)
		publishers := do.MustInvoke[*messaging.PublisherGroup](i)

		geo := analytics.NewIPWhoLocator(
			opts.GeoBaseURL,
			&http.Client{Timeout: opts.GeoTimeout},
			opts.GeoCacheTTL,
		).WithCacheSize(opts.GeoCacheSize)

		processor := analytics.NewProcessor(
			clicks,
			geo,
			analytics.NewUAClassifier(),
			durable,
			messaging.NewPublishFunc[analytics.DeadLetterEvent](publishers.Publisher(), analytics.TopicDeadLetter),
			logger,
			opts.Processor,
		)

		subscriber, err := messaging.NewRedisSubscriber(client.Client, consumerGroupName, opts.consumerName(), logger)
		if err != nil {
			return nil, err
		}

		journal := analytics.NewJournal(logger)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add("click-processor", processor)
		group.Add(analytics.TopicLinkCreated, messaging.NewConsumer[analytics.LinkCreatedEvent](
			subscriber, analytics.TopicLinkCreated, journal.LinkCreated, logger,
		))
		group.Add(analytics.TopicDeadLetter, messaging.NewConsumer[analytics.DeadLetterEvent](
			subscriber, analytics.TopicDeadLetter, journal.DeadLetter, logger,
		))

		return group, nil
	})
}
