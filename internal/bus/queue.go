package bus

import (
	"context"
	"sync/atomic"

	"arbview/pkg/exception"
)

// Queue is a bounded, non-blocking queue drained by a single consumer.
type Queue[T any] struct {
	ch     chan T
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPublish enqueues an item without blocking.
// Publishing concurrently with Close may still report ErrQueueFull instead of ErrQueueClosed.
func (q *Queue[T]) TryPublish(item T) (err error) {
	if atomic.LoadUint32(&q.closed) != 0 {
		return exception.ErrQueueClosed
	}
	defer func() {
		// send on a channel closed between the check above and the select
		if recover() != nil {
			err = exception.ErrQueueClosed
		}
	}()
	select {
	case q.ch <- item:
		return nil
	default:
		return exception.ErrQueueFull
	}
}

// Close stops the queue from accepting new items.
// Items already queued are still delivered by Run.
func (q *Queue[T]) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Run consumes items until the context is done or the queue is closed and drained.
// handler is never called concurrently with itself.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-q.ch:
			if !ok {
				return
			}
			handler(item)
		}
	}
}
