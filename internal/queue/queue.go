// Package queue decouples "a redirect happened" from "a redirect is recorded".
//
// A Queue is FIFO: Push appends at one end and Pop removes from the other.
// Pop never blocks; an empty queue is reported as ok == false.
package queue

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("queue closed")

// Queue is the minimal contract the click pipeline needs.
type Queue[T any] interface {
	Push(ctx context.Context, item *T) error
	Pop(ctx context.Context) (*T, bool, error)
}

// DecodeError reports an element that was removed from the queue but could
// not be decoded. The raw payload is kept so it can be dead-lettered.
type DecodeError struct {
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode queue item: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
