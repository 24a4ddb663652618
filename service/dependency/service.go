// Package dependency layers future-argument resolution over an executor:
// calls may reference the pending results of earlier calls, and dispatch is
// deferred until every referenced result is available.
package dependency

import (
	"context"
	"sync"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/runtime/future"
)

// Executor is the wrapped submission surface, implemented by both pool
// allocation modes.
type Executor interface {
	Submit(ctx context.Context, call *task.Call) (*future.Future, error)
	Map(ctx context.Context, callable *task.Callable, values []interface{}) ([]interface{}, error)
	Pending() int
	Cancel(id string) bool
	Shutdown(ctx context.Context, wait, cancelFutures bool) error
}

// Service resolves future-valued arguments before delegating to the wrapped
// executor. Resolution happens entirely on the controller side; workers only
// ever see plain values.
type Service struct {
	executor Executor

	mux     sync.Mutex
	waiting map[string]*future.Future
}

// New wraps an executor with dependency resolution.
func New(executor Executor) *Service {
	return &Service{executor: executor, waiting: make(map[string]*future.Future)}
}

// Submit dispatches the call immediately when it has no unresolved
// future-valued arguments. Otherwise it returns a future that starts the
// call once all referenced results arrived; a failed or cancelled dependency
// settles the returned future without dispatching.
func (s *Service) Submit(ctx context.Context, call *task.Call) (*future.Future, error) {
	refs := collectRefs(call)
	if len(refs) == 0 {
		return s.executor.Submit(ctx, call)
	}
	outer := future.NewWithID(call.ID)
	s.mux.Lock()
	s.waiting[call.ID] = outer
	s.mux.Unlock()
	outer.OnDone(func() {
		s.mux.Lock()
		delete(s.waiting, call.ID)
		s.mux.Unlock()
	})

	remaining := int64(len(refs))
	var remainingMux sync.Mutex
	for _, ref := range refs {
		ref.OnDone(func() {
			remainingMux.Lock()
			remaining--
			last := remaining == 0
			remainingMux.Unlock()
			if last {
				s.dispatch(ctx, call, refs, outer)
			}
		})
	}
	return outer, nil
}

// dispatch runs once the last dependency settled: it inspects dependency
// outcomes, substitutes resolved values and hands the call to the wrapped
// executor, bridging the inner future onto the outer one.
func (s *Service) dispatch(ctx context.Context, call *task.Call, refs []future.Ref, outer *future.Future) {
	if outer.State().IsTerminal() {
		return
	}
	for _, ref := range refs {
		switch ref.State() {
		case future.StateCancelled:
			outer.Cancel()
			return
		case future.StateFailed:
			_, err := ref.Result(ctx)
			outer.SetRunning()
			outer.Fail(types.NewDependencyError(ref.ID(), err))
			return
		}
	}
	resolved, err := resolveCall(ctx, call)
	if err != nil {
		outer.SetRunning()
		outer.Fail(err)
		return
	}
	// From here the wrapped executor tracks the task; keeping the waiting
	// entry would count it twice in Pending.
	s.mux.Lock()
	delete(s.waiting, call.ID)
	s.mux.Unlock()
	inner, err := s.executor.Submit(ctx, resolved)
	if err != nil {
		outer.SetRunning()
		outer.Fail(err)
		return
	}
	inner.OnDone(func() {
		value, innerErr := inner.Result(ctx)
		switch inner.State() {
		case future.StateCompleted:
			outer.SetRunning()
			outer.Complete(value)
		case future.StateCancelled:
			if !outer.Cancel() {
				outer.SetRunning()
				outer.Fail(innerErr)
			}
		default:
			outer.SetRunning()
			outer.Fail(innerErr)
		}
	})
}

// Map submits one call per value through dependency resolution, so values
// may themselves be futures, and blocks for all results in input order.
func (s *Service) Map(ctx context.Context, callable *task.Callable, values []interface{}) ([]interface{}, error) {
	futures := make([]*future.Future, len(values))
	for i, value := range values {
		ret, err := s.Submit(ctx, task.NewCall(callable, value))
		if err != nil {
			return nil, err
		}
		futures[i] = ret
	}
	results := make([]interface{}, len(values))
	for i, ret := range futures {
		value, err := ret.Result(ctx)
		if err != nil {
			return nil, err
		}
		results[i] = value
	}
	return results, nil
}

// Pending counts unsettled futures, including calls still waiting on
// dependencies.
func (s *Service) Pending() int {
	s.mux.Lock()
	waiting := len(s.waiting)
	s.mux.Unlock()
	return waiting + s.executor.Pending()
}

// Cancel cancels a waiting or queued task by id.
func (s *Service) Cancel(id string) bool {
	s.mux.Lock()
	outer, ok := s.waiting[id]
	s.mux.Unlock()
	if ok && outer.Cancel() {
		return true
	}
	return s.executor.Cancel(id)
}

// Shutdown closes the wrapped executor. With cancelFutures, calls still
// waiting on dependencies are cancelled as well.
func (s *Service) Shutdown(ctx context.Context, wait, cancelFutures bool) error {
	if cancelFutures {
		s.mux.Lock()
		waiting := make([]*future.Future, 0, len(s.waiting))
		for _, outer := range s.waiting {
			waiting = append(waiting, outer)
		}
		s.mux.Unlock()
		for _, outer := range waiting {
			outer.Cancel()
		}
	}
	return s.executor.Shutdown(ctx, wait, cancelFutures)
}
