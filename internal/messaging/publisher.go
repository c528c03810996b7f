package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Metadata keys set on every published message.
const (
	MetadataTopic       = "topic"
	MetadataPublishedAt = "published_at"
)

// Publish sends one typed event. Implementations are safe to call from
// request goroutines.
type Publish[T any] func(event *T) error

// Keyed events choose their own message id so consumers can match a
// redelivered message to its source event.
type Keyed interface {
	MessageKey() string
}

// NewPublishFunc binds publisher to topic for events of type T, JSON encoded.
func NewPublishFunc[T any](publisher message.Publisher, topic string) Publish[T] {
	return func(event *T) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", topic, err)
		}

		msg := message.NewMessage(messageID(event), payload)
		msg.Metadata.Set(MetadataTopic, topic)
		msg.Metadata.Set(MetadataPublishedAt, time.Now().UTC().Format(time.RFC3339Nano))

		if err = publisher.Publish(topic, msg); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}

		return nil
	}
}

func messageID(event any) string {
	if k, ok := event.(Keyed); ok {
		if key := k.MessageKey(); key != "" {
			return key
		}
	}

	return uuid.NewString()
}

// PublisherGroup owns the publisher shared by every publish func in the process.
type PublisherGroup struct {
	publisher message.Publisher
	once      sync.Once
	closeErr  error
}

func NewPublisherGroup(publisher message.Publisher) *PublisherGroup {
	return &PublisherGroup{publisher: publisher}
}

func (g *PublisherGroup) Publisher() message.Publisher {
	return g.publisher
}

// Shutdown closes the publisher once; later calls return the first result.
func (g *PublisherGroup) Shutdown() error {
	g.once.Do(func() {
		g.closeErr = g.publisher.Close()
	})

	return g.closeErr
}
