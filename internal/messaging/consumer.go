package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/linkpulse/internal/metrics"
	"go.uber.org/zap"
)

const (
	outcomeHandled   = "handled"
	outcomeFailed    = "failed"
	outcomeDiscarded = "discarded"
)

// Handler processes a single event.
type Handler[T any] func(ctx context.Context, event *T) error

// Consumer subscribes to a topic and processes messages with a typed handler.
//
// A message whose payload cannot be decoded is acked and logged: redelivering
// it would fail the same way forever. A handler error nacks the message so the
// subscriber can redeliver it.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewConsumer creates a new generic consumer for a specific event type.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
) *Consumer[T] {
	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start begins consuming messages from the topic.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		cancel()

		return fmt.Errorf("subscribe %s: %w", c.topic, err)
	}

	c.cancel = cancel

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer[T]) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer[T]) handleMessage(ctx context.Context, msg *message.Message) {
	log := c.logger.With(
		zap.String("topic", c.topic),
		zap.String("messageId", msg.UUID),
	)

	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		log.Error("discarding undecodable message", zap.ByteString("payload", msg.Payload), zap.Error(err))
		metrics.MessagesConsumed.WithLabelValues(c.topic, outcomeDiscarded).Inc()
		msg.Ack()

		return
	}

	if err := c.handler(ctx, &event); err != nil {
		log.Error("failed to handle event", zap.Error(err))
		metrics.MessagesConsumed.WithLabelValues(c.topic, outcomeFailed).Inc()
		msg.Nack()

		return
	}

	msg.Ack()
	metrics.MessagesConsumed.WithLabelValues(c.topic, outcomeHandled).Inc()

	if lag, ok := deliveryLag(msg); ok {
		log.Debug("processed event", zap.Duration("lag", lag))
	} else {
		log.Debug("processed event")
	}
}

// deliveryLag is the time since the message was published, when the
// publisher stamped it.
func deliveryLag(msg *message.Message) (time.Duration, bool) {
	published, err := time.Parse(time.RFC3339Nano, msg.Metadata.Get(MetadataPublishedAt))
	if err != nil {
		return 0, false
	}

	return time.Since(published), true
}

// Shutdown stops the consumer and waits for in-flight messages to complete.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	<-c.done

	return nil
}
