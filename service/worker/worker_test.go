package worker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/service/channel"
	"github.com/viant/hpcpool/service/codec"
)

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
	registry.Register(&codec.Func{
		Name: "test/slow",
		Handler: func(ctx context.Context, args *codec.Arguments) (interface{}, error) {
			time.Sleep(50 * time.Millisecond)
			return "slow done", nil
		},
	})
	return registry
}

// protocolPeer drives the worker's side of a net.Pipe connection.
type protocolPeer struct {
	t     *testing.T
	conn  net.Conn
	codec *codec.Service
}

func newPeer(t *testing.T, registry *codec.Registry) (*protocolPeer, chan error) {
	t.Helper()
	controller, workerSide := net.Pipe()
	service := New(registry)
	done := make(chan error, 1)
	go func() {
		done <- service.Serve(context.Background(), workerSide)
	}()
	return &protocolPeer{t: t, conn: controller, codec: codec.New(registry)}, done
}

func (p *protocolPeer) send(request *task.Request) {
	payload, err := p.codec.EncodeRequest(request)
	assert.NoError(p.t, err)
	assert.NoError(p.t, channel.WriteFrame(p.conn, payload))
}

func (p *protocolPeer) receive() *task.Response {
	payload, err := channel.ReadFrame(p.conn)
	assert.NoError(p.t, err)
	response, err := p.codec.DecodeResponse(payload)
	assert.NoError(p.t, err)
	return response
}

func TestService_CallVerb(t *testing.T) {
	registry := newRegistry()
	peer, done := newPeer(t, registry)

	callable, _ := registry.Capture("math/add", nil)
	peer.send(&task.Request{Verb: task.VerbCall, Call: task.NewCall(callable, 4, 5)})
	response := peer.receive()
	assert.Equal(t, task.StatusOK, response.Status)
	assert.Equal(t, float64(9), response.Value)

	peer.send(&task.Request{Verb: task.VerbClose})
	assert.NoError(t, <-done)
}

func TestService_CallError(t *testing.T) {
	registry := newRegistry()
	peer, done := newPeer(t, registry)

	peer.send(&task.Request{Verb: task.VerbCall, Call: task.NewCall(&task.Callable{Name: "no/such"})})
	response := peer.receive()
	assert.Equal(t, task.StatusError, response.Status)
	assert.NotNil(t, response.Error)
	assert.Contains(t, response.Error.Message, "no/such")

	peer.send(&task.Request{Verb: task.VerbClose})
	assert.NoError(t, <-done)
}

func TestService_SubmitUpdateCycle(t *testing.T) {
	registry := newRegistry()
	peer, done := newPeer(t, registry)

	callable, _ := registry.Capture("test/slow", nil)
	call := task.NewCall(callable)
	peer.send(&task.Request{Verb: task.VerbSubmit, Call: call})

	// Poll until the submission completed
	var result *task.Response
	for i := 0; i < 100; i++ {
		peer.send(&task.Request{Verb: task.VerbUpdate, IDs: []string{call.ID}})
		response := peer.receive()
		assert.Equal(t, task.StatusOK, response.Status)
		if r, ok := response.Results[call.ID]; ok {
			result = r
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.NotNil(t, result)
	assert.Equal(t, task.StatusOK, result.Status)
	assert.Equal(t, "slow done", result.Value)

	// A collected id is gone from later updates
	peer.send(&task.Request{Verb: task.VerbUpdate, IDs: []string{call.ID}})
	response := peer.receive()
	assert.Empty(t, response.Results)

	peer.send(&task.Request{Verb: task.VerbClose})
	assert.NoError(t, <-done)
}

func TestService_CancelVerb(t *testing.T) {
	registry := newRegistry()
	service := New(registry)

	// Cancel before the submission goroutine starts executing
	call := task.NewCall(&task.Callable{Name: "math/add"}, 1, 2)
	service.mux.Lock()
	service.pending[call.ID] = &asyncCall{}
	service.mux.Unlock()

	service.cancel([]string{call.ID})
	response := service.collect([]string{call.ID})
	assert.Empty(t, response.Results)

	// Started submissions are not cancellable
	started := task.NewCall(&task.Callable{Name: "math/add"}, 1, 2)
	service.mux.Lock()
	service.pending[started.ID] = &asyncCall{started: true}
	service.mux.Unlock()
	service.cancel([]string{started.ID})
	service.mux.Lock()
	_, stillThere := service.pending[started.ID]
	service.mux.Unlock()
	assert.True(t, stillThere)
}
