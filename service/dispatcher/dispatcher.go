// Package dispatcher implements the consumer loop of one worker slot: it
// takes queued items in FIFO order, exchanges them with its worker over the
// slot's socket and settles the paired futures.
package dispatcher

import (
	"context"
	"errors"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/service/messaging"
	"github.com/viant/hpcpool/service/socket"
	"github.com/viant/hpcpool/tracing"
)

// Service drives a single worker slot. One goroutine runs the loop; the
// socket is never used concurrently.
type Service struct {
	socket   *socket.Service
	queue    messaging.Queue[task.Item]
	initCall *task.Call

	initKwargs map[string]interface{}
}

// New creates a dispatcher over an already booted socket. When initCall is
// non-nil it is executed on the worker before the first queued item and its
// result map is merged into every later call's keyword arguments.
func New(aSocket *socket.Service, queue messaging.Queue[task.Item], initCall *task.Call) *Service {
	return &Service{socket: aSocket, queue: queue, initCall: initCall}
}

// Run consumes items until a close message arrives or the worker dies. The
// returned error is nil on an orderly close; a transport failure is returned
// after failing the in-flight future, and the slot is not respawned.
func (s *Service) Run(ctx context.Context) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}
	for {
		item, err := s.queue.Consume(ctx)
		if err != nil {
			return err
		}
		if item.Close {
			return s.socket.Shutdown(ctx, true)
		}
		if err = s.dispatch(ctx, item); err != nil {
			return err
		}
	}
}

// initialize runs the optional per-slot initialisation call. Its result map
// seeds keyword arguments for all subsequent calls on this slot.
func (s *Service) initialize(ctx context.Context) error {
	if s.initCall == nil {
		return nil
	}
	response, err := s.socket.SendAndReceive(ctx, &task.Request{Verb: task.VerbCall, Call: s.initCall})
	if err != nil {
		return err
	}
	if kwargs, ok := response.Value.(map[string]interface{}); ok {
		s.initKwargs = kwargs
	}
	return nil
}

// dispatch executes one call item. Function-level failures settle the future
// and keep the slot alive; only transport failures propagate.
func (s *Service) dispatch(ctx context.Context, item *task.Item) error {
	// A future cancelled while queued never reaches the worker.
	if !item.Future.SetRunning() {
		return nil
	}
	call := s.withInitKwargs(item.Call)
	spanCtx, span := tracing.StartSpan(ctx, "dispatch", "CLIENT")
	span.WithAttributes(map[string]string{"task.id": call.ID, "task.func": call.Func.Name})
	response, err := s.socket.SendAndReceive(spanCtx, &task.Request{Verb: task.VerbCall, Call: call})
	tracing.EndSpan(span, err)
	if err != nil {
		item.Future.Fail(err)
		var dispatchErr *types.DispatchError
		if errors.As(err, &dispatchErr) {
			return err
		}
		return nil
	}
	item.Future.Complete(response.Value)
	return nil
}

// withInitKwargs merges the slot's initialisation kwargs into the call;
// explicitly submitted keyword arguments win.
func (s *Service) withInitKwargs(call *task.Call) *task.Call {
	if len(s.initKwargs) == 0 {
		return call
	}
	merged := call.Clone()
	if merged.Kwargs == nil {
		merged.Kwargs = make(map[string]interface{}, len(s.initKwargs))
	}
	for name, value := range s.initKwargs {
		if _, ok := merged.Kwargs[name]; !ok {
			merged.Kwargs[name] = value
		}
	}
	return merged
}
