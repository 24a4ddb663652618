package pool

import (
	"context"
	"sync"
	"time"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/runtime/future"
	"github.com/viant/hpcpool/service/codec"
	"github.com/viant/hpcpool/service/launcher"
	"github.com/viant/hpcpool/service/messaging/memory"
	"github.com/viant/hpcpool/service/socket"
	"github.com/viant/hpcpool/tracing"
)

// DefaultPollInterval is the update polling cadence for step allocation.
const DefaultPollInterval = 10 * time.Millisecond

// Broker is the step allocation executor: every task gets a fresh worker
// spawned for it and torn down after, releasing the resource allocation
// between tasks. At most MaxWorkers workers are live at a time; excess tasks
// wait in the queue.
type Broker struct {
	config        Config
	pollInterval  time.Duration
	codec         *codec.Service
	launcher      launcher.Launcher
	socketOptions []socket.Option

	queue  *memory.Queue[task.Item]
	sem    chan struct{}
	taskWg sync.WaitGroup
	wg     sync.WaitGroup

	tracker
}

// NewBroker creates a step allocation executor. Call Start before
// submitting.
func NewBroker(aCodec *codec.Service, aLauncher launcher.Launcher, config Config, pollInterval time.Duration, socketOptions ...socket.Option) *Broker {
	config.init()
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Broker{
		config:        config,
		pollInterval:  pollInterval,
		codec:         aCodec,
		launcher:      aLauncher,
		socketOptions: socketOptions,
		queue:         memory.NewQueue[task.Item](memory.Config{QueueBuffer: config.QueueBuffer}),
		sem:           make(chan struct{}, config.MaxWorkers),
		tracker:       newTracker(),
	}
}

// Start launches the broker goroutine consuming the queue.
func (b *Broker) Start(ctx context.Context) error {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(ctx)
	}()
	return nil
}

func (b *Broker) run(ctx context.Context) {
	for {
		item, err := b.queue.Consume(ctx)
		if err != nil {
			return
		}
		if item.Close {
			b.taskWg.Wait()
			return
		}
		select {
		case b.sem <- struct{}{}:
		case <-ctx.Done():
			item.Future.Fail(ctx.Err())
			return
		}
		b.taskWg.Add(1)
		go func(item *task.Item) {
			defer func() {
				<-b.sem
				b.taskWg.Done()
			}()
			b.execute(ctx, item)
		}(item)
	}
}

// execute runs one task on a dedicated worker: spawn, submit, poll for the
// outcome, tear down.
func (b *Broker) execute(ctx context.Context, item *task.Item) {
	if !item.Future.SetRunning() {
		return
	}
	spanCtx, span := tracing.StartSpan(ctx, "step", "CLIENT")
	span.WithAttributes(map[string]string{"task.id": item.Call.ID, "task.func": item.Call.Func.Name})
	err := b.executeOnFreshWorker(spanCtx, item)
	tracing.EndSpan(span, err)
	if err != nil {
		item.Future.Fail(err)
	}
}

func (b *Broker) executeOnFreshWorker(ctx context.Context, item *task.Item) error {
	aSocket := socket.New(b.codec, b.socketOptions...)
	port, err := aSocket.BindToRandomPort()
	if err != nil {
		return err
	}
	command := b.launcher.Command(aSocket.Host(), port)
	if err = aSocket.Bootup(ctx, command, b.config.Cwd); err != nil {
		return err
	}
	defer aSocket.Shutdown(ctx, true)

	if err = aSocket.Send(ctx, &task.Request{Verb: task.VerbSubmit, Call: item.Call}); err != nil {
		return err
	}
	response, err := b.poll(ctx, aSocket, item.Call.ID)
	if err != nil {
		return err
	}
	if response.Status == task.StatusError && response.Error != nil {
		return &types.RemoteExecutionError{
			Func:    response.Error.Func,
			Message: response.Error.Message,
			Trace:   response.Error.Trace,
		}
	}
	item.Future.Complete(response.Value)
	return nil
}

// poll asks the worker for the outcome of id until it is available.
func (b *Broker) poll(ctx context.Context, aSocket *socket.Service, id string) (*task.Response, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		response, err := aSocket.SendAndReceive(ctx, &task.Request{Verb: task.VerbUpdate, IDs: []string{id}})
		if err != nil {
			return nil, err
		}
		if result, ok := response.Results[id]; ok {
			return result, nil
		}
	}
}

// Submit validates the call synchronously, enqueues it and returns the
// future tracking it.
func (b *Broker) Submit(ctx context.Context, call *task.Call) (*future.Future, error) {
	if err := b.codec.Validate(call); err != nil {
		return nil, err
	}
	ret, err := b.register(call.ID)
	if err != nil {
		return nil, err
	}
	ret.OnDone(func() { b.forget(call.ID) })
	if err = b.queue.Publish(ctx, task.NewItem(call, ret)); err != nil {
		b.forget(call.ID)
		return nil, err
	}
	return ret, nil
}

// Map submits one call per value and blocks for all results, preserving
// input order.
func (b *Broker) Map(ctx context.Context, callable *task.Callable, values []interface{}) ([]interface{}, error) {
	futures := make([]*future.Future, len(values))
	for i, value := range values {
		ret, err := b.Submit(ctx, task.NewCall(callable, value))
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

// Shutdown stops the broker. With cancelFutures the queue is drained and
// still-pending futures are cancelled; when wait is set the call blocks
// until in-flight tasks and their workers finished. Safe to call multiple
// times.
func (b *Broker) Shutdown(ctx context.Context, wait, cancelFutures bool) error {
	if !b.markClosed() {
		return nil
	}
	if cancelFutures {
		b.drainQueue(ctx)
	}
	if err := b.queue.Publish(ctx, task.NewCloseItem()); err != nil {
		return err
	}
	if wait {
		b.wg.Wait()
	}
	return nil
}

func (b *Broker) drainQueue(ctx context.Context) {
	for {
		item, ok, err := b.queue.TryConsume(ctx)
		if err != nil || !ok {
			return
		}
		if item.Future != nil {
			item.Future.Cancel()
		}
	}
}
