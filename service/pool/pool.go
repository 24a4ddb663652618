// Package pool implements the worker pool executors. The block allocation
// Service keeps a fixed set of long-lived workers fed from one shared FIFO
// queue; the step allocation Broker spawns a fresh worker per task.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/runtime/future"
	"github.com/viant/hpcpool/service/codec"
	"github.com/viant/hpcpool/service/dispatcher"
	"github.com/viant/hpcpool/service/launcher"
	"github.com/viant/hpcpool/service/messaging/memory"
	"github.com/viant/hpcpool/service/socket"
	"github.com/viant/hpcpool/tracing"
)

// Config controls pool sizing and placement.
type Config struct {
	// MaxWorkers is the number of concurrently live workers.
	MaxWorkers int
	// Cwd is the working directory worker processes are spawned in.
	Cwd string
	// QueueBuffer bounds the shared submission queue.
	QueueBuffer int
}

func (c *Config) init() {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 1
	}
	if c.QueueBuffer <= 0 {
		c.QueueBuffer = memory.DefaultConfig().QueueBuffer
	}
}

// Service is the block allocation executor: MaxWorkers workers are booted up
// front, stay alive across tasks and consume the shared queue in FIFO order.
type Service struct {
	config        Config
	codec         *codec.Service
	launcher      launcher.Launcher
	initCall      *task.Call
	socketOptions []socket.Option

	queue   *memory.Queue[task.Item]
	sockets []*socket.Service
	wg      sync.WaitGroup
	live    atomic.Int64

	tracker
}

// New creates a block allocation pool. Call Start before submitting.
func New(aCodec *codec.Service, aLauncher launcher.Launcher, config Config, initCall *task.Call, socketOptions ...socket.Option) *Service {
	config.init()
	return &Service{
		config:        config,
		codec:         aCodec,
		launcher:      aLauncher,
		initCall:      initCall,
		socketOptions: socketOptions,
		queue:         memory.NewQueue[task.Item](memory.Config{QueueBuffer: config.QueueBuffer}),
		tracker:       newTracker(),
	}
}

// Start boots MaxWorkers worker slots. Each slot binds its own port, spawns
// its worker through the launcher command and runs a dispatcher goroutine
// until shutdown.
func (s *Service) Start(ctx context.Context) error {
	for i := 0; i < s.config.MaxWorkers; i++ {
		aSocket := socket.New(s.codec, s.socketOptions...)
		port, err := aSocket.BindToRandomPort()
		if err != nil {
			s.abortStart(ctx)
			return err
		}
		command := s.launcher.Command(aSocket.Host(), port)
		if err = aSocket.Bootup(ctx, command, s.config.Cwd); err != nil {
			_ = aSocket.Shutdown(ctx, false)
			s.abortStart(ctx)
			return err
		}
		s.sockets = append(s.sockets, aSocket)
		s.live.Add(1)
		slot := dispatcher.New(aSocket, s.queue, s.initCall)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.slotExited(ctx, slot.Run(ctx))
		}()
	}
	return nil
}

// abortStart closes the slots already booted when a later slot fails, so a
// failed Start leaks no worker processes.
func (s *Service) abortStart(ctx context.Context) {
	if len(s.sockets) == 0 {
		return
	}
	_ = s.Shutdown(ctx, true, false)
}

// slotExited runs when a dispatcher loop returns. When a transport failure
// takes the last live slot down, everything still queued or registered would
// stay pending forever; those futures are failed with a DispatchError and
// the pool stops accepting submissions.
func (s *Service) slotExited(ctx context.Context, err error) {
	if s.live.Add(-1) > 0 || err == nil {
		return
	}
	if !s.markClosed() {
		return
	}
	var dispatchErr *types.DispatchError
	if !errors.As(err, &dispatchErr) {
		err = types.NewDispatchError("worker slot terminated", err)
	}
	s.failPending(ctx, err)
}

// failPending drains the queue and settles every still registered future.
func (s *Service) failPending(ctx context.Context, err error) {
	for {
		item, ok, qErr := s.queue.TryConsume(ctx)
		if qErr != nil || !ok {
			break
		}
		if item.Future != nil {
			item.Future.Fail(err)
		}
	}
	for _, ret := range s.unsettled() {
		ret.Fail(err)
	}
}

// Submit validates the call synchronously, enqueues it and returns the
// future tracking it. An unregistered function or unserializable argument is
// reported here rather than from the worker.
func (s *Service) Submit(ctx context.Context, call *task.Call) (*future.Future, error) {
	if err := s.codec.Validate(call); err != nil {
		return nil, err
	}
	ret, err := s.register(call.ID)
	if err != nil {
		return nil, err
	}
	ret.OnDone(func() { s.forget(call.ID) })

	_, span := tracing.StartSpan(ctx, "submit", "PRODUCER")
	span.WithAttributes(map[string]string{"task.id": call.ID, "task.func": call.Func.Name})
	err = s.queue.Publish(ctx, task.NewItem(call, ret))
	tracing.EndSpan(span, err)
	if err != nil {
		s.forget(call.ID)
		return nil, err
	}
	return ret, nil
}

// Map submits one call per value and blocks for all results, preserving
// input order regardless of per-call duration.
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

// Shutdown closes the pool: no new submissions are accepted, every slot is
// sent a close message and, when wait is set, the call blocks until all
// workers exited. With cancelFutures the queue is drained first and every
// still-pending future is cancelled. Safe to call multiple times.
func (s *Service) Shutdown(ctx context.Context, wait, cancelFutures bool) error {
	if !s.markClosed() {
		return nil
	}
	if cancelFutures {
		s.drainQueue(ctx)
	}
	for range s.sockets {
		if err := s.queue.Publish(ctx, task.NewCloseItem()); err != nil {
			return err
		}
	}
	if wait {
		s.wg.Wait()
	}
	return nil
}

// drainQueue removes still queued items and cancels their futures.
func (s *Service) drainQueue(ctx context.Context) {
	for {
		item, ok, err := s.queue.TryConsume(ctx)
		if err != nil || !ok {
			return
		}
		if item.Future != nil {
			item.Future.Cancel()
		}
	}
}
