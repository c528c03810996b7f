package messaging

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisPublisher creates a watermill publisher backed by Redis Streams.
func NewRedisPublisher(client redis.UniversalClient, logger *zap.Logger) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{Client: client},
		NewZapLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("redis stream publisher: %w", err)
	}

	return pub, nil
}

// NewRedisSubscriber creates a Redis Streams subscriber in consumerGroup.
// Members of one group share the stream, so each message reaches one of them.
func NewRedisSubscriber(
	client redis.UniversalClient,
	consumerGroup, consumer string,
	logger *zap.Logger,
) (message.Subscriber, error) {
	sub, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: consumerGroup,
			Consumer:      consumer,
		},
		NewZapLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("redis stream subscriber: %w", err)
	}

	return sub, nil
}
