package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Runnable represents a component that can be started and shutdown.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

type member struct {
	name     string
	runnable Runnable
}

// ConsumerGroup manages topic consumers and background workers with one
// lifecycle. Members start in registration order and stop in reverse.
type ConsumerGroup struct {
	members    []member
	subscriber message.Subscriber
	logger     *zap.Logger
}

// NewConsumerGroup creates a new consumer group. The subscriber, when not nil,
// is closed after every member has stopped.
func NewConsumerGroup(subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Add registers a member under a name used in logs and errors.
func (g *ConsumerGroup) Add(name string, r Runnable) {
	g.members = append(g.members, member{name: name, runnable: r})
}

// Len returns the number of registered members.
func (g *ConsumerGroup) Len() int {
	return len(g.members)
}

// Start starts all members. If one fails, the ones already started are stopped.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	for i, m := range g.members {
		if err := m.runnable.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = g.members[j].runnable.Shutdown()
			}

			return fmt.Errorf("start %s: %w", m.name, err)
		}

		g.logger.Debug("consumer started", zap.String("name", m.name))
	}

	g.logger.Info("consumer group started", zap.Int("count", len(g.members)))

	return nil
}

// Shutdown stops every member even when some fail and returns all failures.
func (g *ConsumerGroup) Shutdown() error {
	g.logger.Info("shutting down consumer group")

	var errs []error

	for i := len(g.members) - 1; i >= 0; i-- {
		m := g.members[i]
		if err := m.runnable.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", m.name, err))
		}
	}

	if g.subscriber != nil {
		if err := g.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}

	return errors.Join(errs...)
}
