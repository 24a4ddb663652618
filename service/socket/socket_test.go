package socket

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/service/codec"
	"github.com/viant/hpcpool/service/worker"
)

type inprocProcess struct {
	done chan struct{}
}

func (p *inprocProcess) Wait() error {
	<-p.done
	return nil
}

func (p *inprocProcess) Kill() error { return nil }

// inprocStarter runs the worker loop in a goroutine instead of spawning a
// process, connecting to the host/port found in the launch command.
func inprocStarter(registry *codec.Registry) Starter {
	return func(ctx context.Context, command []string, dir string) (Process, error) {
		var host, port string
		for i := 0; i < len(command)-1; i++ {
			switch command[i] {
			case "--host":
				host = command[i+1]
			case "--port":
				port = command[i+1]
			}
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = worker.New(registry).Run(ctx, net.JoinHostPort(host, port))
		}()
		return &inprocProcess{done: done}, nil
	}
}

func newRegistry() *codec.Registry {
	registry := codec.NewRegistry()
	registry.Register(&codec.Func{
		Name: "math/add",
		Handler: func(ctx context.Context, args *codec.Arguments) (interface{}, error) {
			a, _ := args.Float64(0)
			b, _ := args.Float64(1)
			return a + b, nil
		},
	})
	return registry
}

func workerCommand(service *Service, port int) []string {
	return []string{"hpcworker", "--host", service.Host(), "--port", strconv.Itoa(port)}
}

func TestService_CallRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	registry := newRegistry()
	service := New(codec.New(registry), WithStarter(inprocStarter(registry)), WithHostnameLocalhost(true))
	port, err := service.BindToRandomPort()
	assert.NoError(t, err)
	assert.NoError(t, service.Bootup(ctx, workerCommand(service, port), ""))

	callable, _ := registry.Capture("math/add", nil)
	response, err := service.SendAndReceive(ctx, &task.Request{Verb: task.VerbCall, Call: task.NewCall(callable, 2, 5)})
	assert.NoError(t, err)
	assert.Equal(t, task.StatusOK, response.Status)
	assert.Equal(t, float64(7), response.Value)

	assert.NoError(t, service.Shutdown(ctx, true))
	// Shutdown is idempotent
	assert.NoError(t, service.Shutdown(ctx, true))
}

func TestService_RemoteError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	registry := newRegistry()
	service := New(codec.New(registry), WithStarter(inprocStarter(registry)), WithHostnameLocalhost(true))
	port, err := service.BindToRandomPort()
	assert.NoError(t, err)
	assert.NoError(t, service.Bootup(ctx, workerCommand(service, port), ""))
	defer service.Shutdown(ctx, true)

	call := task.NewCall(&task.Callable{Name: "no/such"})
	_, err = service.SendAndReceive(ctx, &task.Request{Verb: task.VerbCall, Call: call})
	var remote *types.RemoteExecutionError
	assert.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Message, "no/such")
}

func TestService_BootupFailures(t *testing.T) {
	ctx := context.Background()
	registry := newRegistry()
	service := New(codec.New(registry))

	var dispatchErr *types.DispatchError
	err := service.Bootup(ctx, nil, "")
	assert.True(t, errors.As(err, &dispatchErr))

	// Default starter surfaces a missing executable as a dispatch error
	err = service.Bootup(ctx, []string{"definitely-missing-binary-5f2c"}, "")
	assert.True(t, errors.As(err, &dispatchErr))
}
