package hpcpool

import (
	"context"
	"time"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/policy"
	"github.com/viant/hpcpool/progress"
	"github.com/viant/hpcpool/runtime/future"
	"github.com/viant/hpcpool/service/cache"
	"github.com/viant/hpcpool/service/codec"
	"github.com/viant/hpcpool/service/dependency"
	"github.com/viant/hpcpool/service/launcher"
	"github.com/viant/hpcpool/service/pool"
	"github.com/viant/hpcpool/service/shell"
	"github.com/viant/hpcpool/service/socket"
	"github.com/viant/x"
)

// Service is the high-level facade: it owns the configured executor chain
// and exposes the submission surface of the Executor interface.
type Service struct {
	config              *Config
	registry            *codec.Registry
	codec               *codec.Service
	initCall            *task.Call
	launcher            launcher.Launcher
	socketOptions       []socket.Option
	extensionTypes      []*x.Type
	disableDependencies bool
	cacheURL            string

	executor Executor
}

// DefaultRegistry returns a registry pre-populated with the built-in
// functions, currently the shell executor.
func DefaultRegistry(goTypes ...*x.Type) *codec.Registry {
	registry := codec.NewRegistry(goTypes...)
	registry.Register(shell.New().Func())
	return registry
}

// New creates the service and boots its workers. The executor chain follows
// the configuration: block or step allocation, wrapped with dependency
// resolution unless disabled; with a cache URL calls instead run in-process
// with memoization.
func New(ctx context.Context, options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(ctx); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.initCall != nil && !s.config.BlockAllocation {
		return types.NewConfigurationError("init function requires block allocation")
	}
	if s.registry == nil {
		s.registry = DefaultRegistry(s.extensionTypes...)
	}
	s.codec = codec.New(s.registry)

	executor, err := s.buildExecutor(ctx)
	if err != nil {
		return err
	}
	if s.disableDependencies {
		s.executor = executor
	} else {
		s.executor = dependency.New(executor)
	}
	return nil
}

func (s *Service) buildExecutor(ctx context.Context) (dependency.Executor, error) {
	if s.cacheURL != "" {
		return cache.New(s.codec, s.cacheURL), nil
	}
	if s.launcher == nil {
		probed, err := launcher.Probe(s.config.Backend, launcher.Config{
			Cores:          s.config.CoresPerWorker,
			ThreadsPerCore: s.config.ThreadsPerCore,
			GpusPerWorker:  s.config.GpusPerWorker,
			Oversubscribe:  s.config.Oversubscribe,
			Pmi:            s.config.Pmi,
			ExtraArgs:      s.config.ExtraArgs,
			WorkerBinary:   s.config.WorkerBinary,
		})
		if err != nil {
			return nil, err
		}
		s.launcher = probed
	}
	socketOptions := s.socketOptions
	if s.config.HostnameLocalhost {
		socketOptions = append(socketOptions, socket.WithHostnameLocalhost(true))
	}
	poolConfig := pool.Config{
		MaxWorkers:  s.config.MaxWorkers,
		Cwd:         s.config.Cwd,
		QueueBuffer: s.config.QueueBuffer,
	}
	if s.config.BlockAllocation {
		executor := pool.New(s.codec, s.launcher, poolConfig, s.initCall, socketOptions...)
		if err := executor.Start(ctx); err != nil {
			return nil, err
		}
		return executor, nil
	}
	executor := pool.NewBroker(s.codec, s.launcher, poolConfig,
		time.Duration(s.config.PollIntervalMs)*time.Millisecond, socketOptions...)
	if err := executor.Start(ctx); err != nil {
		return nil, err
	}
	return executor, nil
}

// Registry returns the function registry shared with workers.
func (s *Service) Registry() *codec.Registry { return s.registry }

// Capture binds a registered function to explicitly captured values, yielding
// a callable that can travel to workers.
func (s *Service) Capture(name string, env map[string]interface{}) (*task.Callable, error) {
	return s.registry.Capture(name, env)
}

// Submit enqueues a call and returns the future tracking it. A policy
// embedded in ctx can veto the dispatch; a progress tracker embedded in ctx
// observes the task's lifecycle.
func (s *Service) Submit(ctx context.Context, call *task.Call) (*future.Future, error) {
	if pol := policy.FromContext(ctx); pol != nil && call != nil && call.Func != nil {
		if !pol.Admit(ctx, call.Func.Name, call.Kwargs) {
			return nil, types.NewDispatchError("function "+call.Func.Name+" rejected by policy", nil)
		}
	}
	ret, err := s.executor.Submit(ctx, call)
	if err != nil {
		return nil, err
	}
	observeProgress(ctx, ret)
	return ret, nil
}

// Map submits one call per value and blocks for all results in input order.
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

// observeProgress feeds a context-carried tracker as the task moves through
// its lifecycle.
func observeProgress(ctx context.Context, ret *future.Future) {
	tracker := progress.FromContext(ctx)
	if tracker == nil {
		return
	}
	tracker.Update(progress.Delta{Submitted: 1, Pending: 1})
	ret.OnDone(func() {
		delta := progress.Delta{Pending: -1}
		switch ret.State() {
		case future.StateCompleted:
			delta.Completed = 1
		case future.StateCancelled:
			delta.Cancelled = 1
		default:
			delta.Failed = 1
		}
		tracker.Update(delta)
	})
}

// Pending returns the number of futures not yet settled.
func (s *Service) Pending() int { return s.executor.Pending() }

// Cancel cancels the identified task if it has not been dispatched yet.
func (s *Service) Cancel(id string) bool { return s.executor.Cancel(id) }

// Shutdown stops the executor chain. Safe to call multiple times.
func (s *Service) Shutdown(ctx context.Context, wait, cancelFutures bool) error {
	return s.executor.Shutdown(ctx, wait, cancelFutures)
}

var _ Executor = (*Service)(nil)
