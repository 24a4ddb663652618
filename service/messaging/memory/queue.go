package memory

import (
	"context"

	"github.com/viant/hpcpool/service/messaging"
)

// Config for the in-memory queue implementation.
type Config struct {
	QueueBuffer int
}

// DefaultConfig returns a standard configuration for the memory queue.
func DefaultConfig() Config {
	return Config{QueueBuffer: 128}
}

// Queue implements an in-memory messaging.Queue on a buffered channel. The
// channel gives FIFO hand-off per consumer; with several consumers sharing
// one queue the global start order is best-effort load balanced.
type Queue[T any] struct {
	items chan *T
}

// NewQueue creates a new in-memory queue.
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{items: make(chan *T, config.QueueBuffer)}
}

// Publish adds a new item to the queue.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	select {
	case q.items <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume retrieves a single item, blocking until one is available.
func (q *Queue[T]) Consume(ctx context.Context) (*T, error) {
	select {
	case item := <-q.items:
		return item, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryConsume retrieves a single item without blocking.
func (q *Queue[T]) TryConsume(ctx context.Context) (*T, bool, error) {
	select {
	case item := <-q.items:
		return item, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
		return nil, false, nil
	}
}

// Size returns the current number of queued items.
func (q *Queue[T]) Size() int {
	return len(q.items)
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
