// Package socket combines the codec and the connection channel into a
// lifecycle-managed RPC endpoint: it spawns worker processes, performs
// blocking request/response exchanges, sends fire-and-forget control
// messages and tears the worker down.
package socket

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/service/channel"
	"github.com/viant/hpcpool/service/codec"
)

// Process is a handle on spawned worker process(es).
type Process interface {
	Wait() error
	Kill() error
}

// Starter spawns the worker command. The default starter executes the
// command tokens verbatim through os/exec; tests substitute an in-process
// worker loop.
type Starter func(ctx context.Context, command []string, dir string) (Process, error)

type osProcess struct{ cmd *exec.Cmd }

func (p *osProcess) Wait() error { return p.cmd.Wait() }
func (p *osProcess) Kill() error { return p.cmd.Process.Kill() }

func osStarter(_ context.Context, command []string, dir string) (Process, error) {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd}, nil
}

// Option customises a socket service.
type Option func(s *Service)

// WithStarter overrides how worker processes are spawned.
func WithStarter(starter Starter) Option {
	return func(s *Service) { s.starter = starter }
}

// WithHostnameLocalhost forces the advertised host to loopback.
func WithHostnameLocalhost(flag bool) Option {
	return func(s *Service) { s.channel = channel.New(channel.Config{HostnameLocalhost: flag}) }
}

// Service is one RPC endpoint owning one worker process handle. It is used
// by a single dispatcher goroutine at a time.
type Service struct {
	channel *channel.Service
	codec   *codec.Service
	starter Starter

	mux     sync.Mutex
	process Process
	closed  bool
}

// New creates a socket service around the given codec.
func New(aCodec *codec.Service, options ...Option) *Service {
	ret := &Service{
		channel: channel.New(channel.Config{}),
		codec:   aCodec,
		starter: osStarter,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// BindToRandomPort binds the endpoint and returns the chosen port.
func (s *Service) BindToRandomPort() (int, error) {
	return s.channel.BindToRandomPort()
}

// Host returns the advertised host for the worker launch command.
func (s *Service) Host() string { return s.channel.Host() }

// Address returns the bound host:port.
func (s *Service) Address() string { return s.channel.Address() }

// Bootup spawns the worker process(es) with the supplied command tokens in
// dir. There is no readiness handshake: the first exchange blocks until the
// worker's connection is established. A failed spawn (for example a missing
// launcher executable) surfaces as a DispatchError.
func (s *Service) Bootup(ctx context.Context, command []string, dir string) error {
	if len(command) == 0 {
		return types.NewDispatchError("empty worker command", nil)
	}
	process, err := s.starter(ctx, command, dir)
	if err != nil {
		return types.NewDispatchError(fmt.Sprintf("failed to start %v", command[0]), err)
	}
	s.mux.Lock()
	s.process = process
	s.mux.Unlock()
	return nil
}

// SendAndReceive encodes a request, blocks for the worker's reply and
// decodes it. An error reported by the worker for the executed callable is
// re-raised here as a RemoteExecutionError; a transport failure means the
// worker died before replying and surfaces as a DispatchError.
func (s *Service) SendAndReceive(ctx context.Context, request *task.Request) (*task.Response, error) {
	payload, err := s.codec.EncodeRequest(request)
	if err != nil {
		return nil, err
	}
	reply, err := s.channel.SendAndReceive(ctx, payload)
	if err != nil {
		return nil, types.NewDispatchError("worker connection lost", err)
	}
	response, err := s.codec.DecodeResponse(reply)
	if err != nil {
		return nil, err
	}
	if response.Status == task.StatusError && response.Error != nil {
		return response, &types.RemoteExecutionError{
			Func:    response.Error.Func,
			Message: response.Error.Message,
			Trace:   response.Error.Trace,
		}
	}
	return response, nil
}

// Send encodes a request and writes it without waiting for a reply.
func (s *Service) Send(ctx context.Context, request *task.Request) error {
	payload, err := s.codec.EncodeRequest(request)
	if err != nil {
		return err
	}
	return s.channel.Send(ctx, payload)
}

// Shutdown sends a close control message and, when wait is set, blocks until
// the worker process(es) exited. It is safe to call multiple times.
func (s *Service) Shutdown(ctx context.Context, wait bool) error {
	s.mux.Lock()
	if s.closed {
		s.mux.Unlock()
		return nil
	}
	s.closed = true
	process := s.process
	s.mux.Unlock()

	// The worker may already be gone; a failed close send is not an error.
	_ = s.Send(ctx, &task.Request{Verb: task.VerbClose})
	err := s.channel.Close()
	if wait && process != nil {
		if wErr := process.Wait(); wErr != nil && err == nil {
			err = wErr
		}
	}
	return err
}
