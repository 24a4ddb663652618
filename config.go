package hpcpool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/service/launcher"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the executor configuration. It
// can be populated from JSON or YAML. The zero-value is useful - all fields
// inherit their package defaults.
type Config struct {
	// MaxWorkers is the number of concurrently live workers.
	MaxWorkers int `json:"maxWorkers" yaml:"maxWorkers"`
	// CoresPerWorker is the number of ranks spawned per worker.
	CoresPerWorker int `json:"coresPerWorker" yaml:"coresPerWorker"`
	// ThreadsPerCore is the OpenMP thread count per rank (SLURM, Flux).
	ThreadsPerCore int `json:"threadsPerCore,omitempty" yaml:"threadsPerCore,omitempty"`
	// GpusPerWorker requests GPUs per worker (SLURM, Flux).
	GpusPerWorker int `json:"gpusPerWorker,omitempty" yaml:"gpusPerWorker,omitempty"`
	// Oversubscribe allows more ranks than cores (OpenMPI, SLURM).
	Oversubscribe bool `json:"oversubscribe,omitempty" yaml:"oversubscribe,omitempty"`
	// Pmi selects the PMI interface (Flux; OpenMPI v5 requires pmix).
	Pmi string `json:"pmi,omitempty" yaml:"pmi,omitempty"`
	// Backend selects the resource manager: auto, local, mpi, slurm or flux.
	Backend string `json:"backend" yaml:"backend"`
	// BlockAllocation keeps workers alive across tasks; when false a fresh
	// worker is spawned per task.
	BlockAllocation bool `json:"blockAllocation" yaml:"blockAllocation"`
	// Cwd is the working directory worker processes are spawned in.
	Cwd string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
	// HostnameLocalhost forces workers to connect over loopback.
	HostnameLocalhost bool `json:"hostnameLocalhost,omitempty" yaml:"hostnameLocalhost,omitempty"`
	// WorkerBinary is the worker executable launched on every rank.
	WorkerBinary string `json:"workerBinary,omitempty" yaml:"workerBinary,omitempty"`
	// ExtraArgs are appended verbatim to the resource-manager call.
	ExtraArgs []string `json:"extraArgs,omitempty" yaml:"extraArgs,omitempty"`
	// PollIntervalMs is the result polling cadence for step allocation.
	PollIntervalMs int `json:"pollIntervalMs,omitempty" yaml:"pollIntervalMs,omitempty"`
	// QueueBuffer bounds the submission queue.
	QueueBuffer int `json:"queueBuffer,omitempty" yaml:"queueBuffer,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
// Callers may modify the returned struct before passing it to New.
func DefaultConfig() *Config {
	return &Config{
		MaxWorkers:      1,
		CoresPerWorker:  1,
		Backend:         launcher.BackendAuto,
		BlockAllocation: true,
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.MaxWorkers <= 0 {
		return types.NewConfigurationError("maxWorkers must be > 0, had %v", c.MaxWorkers)
	}
	if c.CoresPerWorker <= 0 {
		return types.NewConfigurationError("coresPerWorker must be > 0, had %v", c.CoresPerWorker)
	}
	switch c.Backend {
	case "", launcher.BackendAuto, launcher.BackendLocal, launcher.BackendMpi, launcher.BackendSlurm, launcher.BackendFlux:
	default:
		return types.NewConfigurationError("unsupported backend %q", c.Backend)
	}
	return nil
}

// LoadConfig reads a configuration document from any afs-supported URL;
// .json documents are decoded as JSON, everything else as YAML.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, types.NewConfigurationError("failed to load config %v: %v", URL, err)
	}
	config := DefaultConfig()
	if strings.HasSuffix(URL, ".json") {
		err = json.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, types.NewConfigurationError("failed to parse config %v: %v", URL, err)
	}
	return config, nil
}
