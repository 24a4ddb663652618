package launcher

import (
	"fmt"
	"strconv"
)

// Local launches the worker directly, without a resource manager. Intended
// for development, testing and single-node use.
type Local struct{ config Config }

// NewLocal creates a local launcher.
func NewLocal(config Config) *Local { return &Local{config: config} }

func (l *Local) Name() string { return BackendLocal }

func (l *Local) Command(host string, port int) []string {
	return workerArgs(&l.config, host, port)
}

// Mpi launches workers through mpiexec.
type Mpi struct{ config Config }

// NewMpi creates an mpiexec launcher.
func NewMpi(config Config) *Mpi { return &Mpi{config: config} }

func (l *Mpi) Name() string { return BackendMpi }

func (l *Mpi) Command(host string, port int) []string {
	command := []string{"mpiexec", "-n", strconv.Itoa(l.config.Cores)}
	if l.config.Oversubscribe {
		command = append(command, "--oversubscribe")
	}
	command = append(command, l.config.ExtraArgs...)
	return append(command, workerArgs(&l.config, host, port)...)
}

// Slurm launches workers through srun inside a SLURM allocation.
type Slurm struct{ config Config }

// NewSlurm creates an srun launcher.
func NewSlurm(config Config) *Slurm { return &Slurm{config: config} }

func (l *Slurm) Name() string { return BackendSlurm }

func (l *Slurm) Command(host string, port int) []string {
	command := []string{slurmCommand, "-n", strconv.Itoa(l.config.Cores)}
	if l.config.ThreadsPerCore > 1 {
		command = append(command, fmt.Sprintf("--cpus-per-task=%d", l.config.ThreadsPerCore))
	}
	if l.config.GpusPerWorker > 0 {
		command = append(command, fmt.Sprintf("--gpus-per-task=%d", l.config.GpusPerWorker))
	}
	if l.config.Oversubscribe {
		command = append(command, "--oversubscribe")
	}
	command = append(command, l.config.ExtraArgs...)
	return append(command, workerArgs(&l.config, host, port)...)
}

// Flux launches workers through flux run inside a Flux instance.
type Flux struct{ config Config }

// NewFlux creates a flux launcher.
func NewFlux(config Config) *Flux { return &Flux{config: config} }

func (l *Flux) Name() string { return BackendFlux }

func (l *Flux) Command(host string, port int) []string {
	command := []string{"flux", "run", "-n", strconv.Itoa(l.config.Cores)}
	if l.config.ThreadsPerCore > 1 {
		command = append(command, fmt.Sprintf("--cores-per-task=%d", l.config.ThreadsPerCore))
	}
	if l.config.GpusPerWorker > 0 {
		command = append(command, fmt.Sprintf("--gpus-per-task=%d", l.config.GpusPerWorker))
	}
	if l.config.Pmi != "" {
		command = append(command, "-o", "pmi="+l.config.Pmi)
	}
	command = append(command, l.config.ExtraArgs...)
	return append(command, workerArgs(&l.config, host, port)...)
}
