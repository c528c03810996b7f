package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultClickKey is the list click events are pushed onto.
const DefaultClickKey = "clicks:pending"

// RedisList is a Queue over a Redis list: LPUSH to enqueue, RPOP to dequeue.
// RPOP is atomic, so any number of consumers may share one list and each
// element is handed to exactly one of them.
type RedisList[T any] struct {
	client redis.Cmdable
	key    string
}

// NewRedisList creates a queue stored under key.
func NewRedisList[T any](client redis.Cmdable, key string) *RedisList[T] {
	if key == "" {
		key = DefaultClickKey
	}

	return &RedisList[T]{client: client, key: key}
}

// Key returns the Redis key backing the queue.
func (q *RedisList[T]) Key() string {
	return q.key
}

func (q *RedisList[T]) Push(ctx context.Context, item *T) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode queue item: %w", err)
	}

	if err = q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("queue push: %w", err)
	}

	return nil
}

func (q *RedisList[T]) Pop(ctx context.Context) (*T, bool, error) {
	data, err := q.client.RPop(ctx, q.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("queue pop: %w", err)
	}

	var item T
	if err = json.Unmarshal(data, &item); err != nil {
		return nil, false, &DecodeError{Payload: data, Err: err}
	}

	return &item, true, nil
}

// Len returns the number of pending elements.
func (q *RedisList[T]) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue len: %w", err)
	}

	return n, nil
}

// Shutdown is a no-op; the Redis client is owned by the container.
func (q *RedisList[T]) Shutdown() error {
	return nil
}
