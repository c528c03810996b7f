package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process Queue. Items are stored serialized so consumers
// see the same copy semantics as with a networked queue.
type Memory[T any] struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
}

func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{}
}

func (q *Memory[T]) Push(_ context.Context, item *T) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode queue item: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.items = append(q.items, data)

	return nil
}

func (q *Memory[T]) Pop(_ context.Context) (*T, bool, error) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return nil, false, ErrClosed
	}

	if len(q.items) == 0 {
		q.mu.Unlock()

		return nil, false, nil
	}

	data := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.mu.Unlock()

	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, false, &DecodeError{Payload: data, Err: err}
	}

	return &item, true, nil
}

// PushRaw enqueues an already-encoded element.
func (q *Memory[T]) PushRaw(data []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, data)
}

func (q *Memory[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Shutdown closes the queue; later operations return ErrClosed.
func (q *Memory[T]) Shutdown() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true

	return nil
}
