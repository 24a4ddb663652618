// Package messaging defines the queue abstraction feeding dispatcher slots.
// The queue is the single synchronization point between submitting threads
// and a slot's consumer loop.
package messaging

import (
	"context"
)

// Queue represents an abstract FIFO queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new payload to the queue.
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a payload is available or ctx expires.
	Consume(ctx context.Context) (*T, error)

	// TryConsume returns the next payload without blocking; ok reports
	// whether one was available. Used by cancellation sweeps and by pollers
	// that must not stall their loop.
	TryConsume(ctx context.Context) (t *T, ok bool, err error)
}
