// Package launcher builds the resource-manager command lines that spawn
// worker processes: plain local execution, mpiexec, SLURM srun or Flux. The
// dispatch core treats the produced token list as opaque; the only contract
// is that the spawned process(es) can reach the given host:port.
package launcher

import (
	"os"
	"os/exec"
	"strconv"

	"github.com/viant/hpcpool/model/types"
)

// Backend names accepted by Probe.
const (
	BackendAuto  = "auto"
	BackendLocal = "local"
	BackendMpi   = "mpi"
	BackendSlurm = "slurm"
	BackendFlux  = "flux"
)

// slurmCommand is the probe target for SLURM allocations.
const slurmCommand = "srun"

// fluxEnvVar marks a running Flux instance.
const fluxEnvVar = "FLUX_URI"

// lookPath locates executables on PATH. Override in tests.
var lookPath = exec.LookPath

// getenv reads environment variables. Override in tests.
var getenv = os.Getenv

// Config carries the per-worker resource request.
type Config struct {
	// Cores is the number of ranks spawned per worker.
	Cores int
	// ThreadsPerCore is the OpenMP thread count per rank (SLURM, Flux).
	ThreadsPerCore int
	// GpusPerWorker requests GPUs per worker (SLURM, Flux).
	GpusPerWorker int
	// Oversubscribe adds the --oversubscribe flag (OpenMPI, SLURM).
	Oversubscribe bool
	// Pmi selects the PMI interface (Flux; OpenMPI v5 requires pmix).
	Pmi string
	// ExtraArgs are appended verbatim to the resource-manager call.
	ExtraArgs []string
	// WorkerBinary is the worker executable launched on every rank.
	WorkerBinary string
}

func (c *Config) init() {
	if c.Cores <= 0 {
		c.Cores = 1
	}
	if c.WorkerBinary == "" {
		c.WorkerBinary = "hpcworker"
	}
}

// Launcher renders the launch command for a worker connecting back to
// host:port.
type Launcher interface {
	Name() string
	Command(host string, port int) []string
}

// workerArgs renders the trailing worker invocation shared by all backends.
func workerArgs(config *Config, host string, port int) []string {
	return []string{
		config.WorkerBinary,
		"--host", host,
		"--port", strconv.Itoa(port),
	}
}

// Probe selects a launcher for the requested backend. With BackendAuto the
// available backend is detected at run time: a Flux instance is preferred,
// then SLURM, then mpiexec; plain local execution is the fallback.
func Probe(backend string, config Config) (Launcher, error) {
	config.init()
	switch backend {
	case BackendFlux:
		return NewFlux(config), nil
	case BackendSlurm:
		return NewSlurm(config), nil
	case BackendMpi:
		return NewMpi(config), nil
	case BackendLocal:
		return NewLocal(config), nil
	case BackendAuto, "":
		if getenv(fluxEnvVar) != "" {
			if _, err := lookPath("flux"); err == nil {
				return NewFlux(config), nil
			}
		}
		if _, err := lookPath(slurmCommand); err == nil {
			return NewSlurm(config), nil
		}
		if _, err := lookPath("mpiexec"); err == nil {
			return NewMpi(config), nil
		}
		return NewLocal(config), nil
	}
	return nil, types.NewConfigurationError("unsupported backend %q", backend)
}
