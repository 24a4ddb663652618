package hpcpool

import (
	"context"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/runtime/future"
)

// Executor is the submission surface shared by all allocation modes and the
// caching executor.
type Executor interface {
	// Submit enqueues a call and returns the future tracking it.
	Submit(ctx context.Context, call *task.Call) (*future.Future, error)

	// Map submits one call per value and blocks for all results, preserving
	// input order.
	Map(ctx context.Context, callable *task.Callable, values []interface{}) ([]interface{}, error)

	// Pending returns the number of futures not yet settled.
	Pending() int

	// Cancel cancels the identified task if it has not been dispatched yet.
	Cancel(id string) bool

	// Shutdown stops the executor. With wait it blocks until workers exited;
	// with cancelFutures queued but not started tasks are cancelled.
	Shutdown(ctx context.Context, wait, cancelFutures bool) error
}

// Run creates a scoped service, hands it to fn and shuts it down afterwards,
// waiting for workers to exit and cancelling whatever fn left queued.
func Run(ctx context.Context, fn func(ctx context.Context, svc *Service) error, options ...Option) error {
	svc, err := New(ctx, options...)
	if err != nil {
		return err
	}
	defer svc.Shutdown(context.WithoutCancel(ctx), true, true)
	return fn(ctx, svc)
}
