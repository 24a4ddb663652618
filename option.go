package hpcpool

import (
	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/service/codec"
	"github.com/viant/hpcpool/service/launcher"
	"github.com/viant/hpcpool/service/socket"
	"github.com/viant/x"
)

// Option customises the service created by New.
type Option func(s *Service)

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithMaxWorkers sets the number of concurrently live workers.
func WithMaxWorkers(maxWorkers int) Option {
	return func(s *Service) { s.config.MaxWorkers = maxWorkers }
}

// WithBackend selects the resource manager: auto, local, mpi, slurm or flux.
func WithBackend(backend string) Option {
	return func(s *Service) { s.config.Backend = backend }
}

// WithBlockAllocation toggles between long-lived workers (true) and a fresh
// worker per task (false).
func WithBlockAllocation(flag bool) Option {
	return func(s *Service) { s.config.BlockAllocation = flag }
}

// WithCoresPerWorker sets the number of ranks spawned per worker.
func WithCoresPerWorker(cores int) Option {
	return func(s *Service) { s.config.CoresPerWorker = cores }
}

// WithOversubscribe allows more ranks than cores (OpenMPI, SLURM).
func WithOversubscribe(flag bool) Option {
	return func(s *Service) { s.config.Oversubscribe = flag }
}

// WithCwd sets the working directory workers are spawned in.
func WithCwd(cwd string) Option {
	return func(s *Service) { s.config.Cwd = cwd }
}

// WithHostnameLocalhost forces workers to connect over loopback.
func WithHostnameLocalhost(flag bool) Option {
	return func(s *Service) { s.config.HostnameLocalhost = flag }
}

// WithWorkerBinary sets the worker executable launched on every rank.
func WithWorkerBinary(binary string) Option {
	return func(s *Service) { s.config.WorkerBinary = binary }
}

// WithExtraArgs appends arguments to the resource-manager call.
func WithExtraArgs(args ...string) Option {
	return func(s *Service) { s.config.ExtraArgs = append(s.config.ExtraArgs, args...) }
}

// WithRegistry sets the function registry shared with workers.
func WithRegistry(registry *codec.Registry) Option {
	return func(s *Service) { s.registry = registry }
}

// WithExtensionTypes seeds extension types into the default registry.
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) { s.extensionTypes = types }
}

// WithInitFunction sets a call executed once on every worker before it takes
// tasks; the result map seeds keyword arguments for all subsequent calls on
// that worker. Requires block allocation.
func WithInitFunction(call *task.Call) Option {
	return func(s *Service) { s.initCall = call }
}

// WithLauncher overrides backend probing with an explicit launcher.
func WithLauncher(aLauncher launcher.Launcher) Option {
	return func(s *Service) { s.launcher = aLauncher }
}

// WithStarter overrides how worker processes are spawned; tests use it to run
// workers in-process.
func WithStarter(starter socket.Starter) Option {
	return func(s *Service) { s.socketOptions = append(s.socketOptions, socket.WithStarter(starter)) }
}

// WithDisableDependencies turns off future-argument resolution; submissions
// carrying futures then fail serialization.
func WithDisableDependencies(flag bool) Option {
	return func(s *Service) { s.disableDependencies = flag }
}

// WithCacheURL enables in-process caching execution: calls run in the
// controller process and their results are memoized under the given URL
// instead of being dispatched to worker processes.
func WithCacheURL(URL string) Option {
	return func(s *Service) { s.cacheURL = URL }
}
