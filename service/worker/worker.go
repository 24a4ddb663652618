// Package worker implements the worker-side protocol loop: connect to the
// controller's channel, then decode, execute and answer requests until a
// close message arrives. The same loop backs the hpcworker binary and the
// in-process workers used by tests.
package worker

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/service/channel"
	"github.com/viant/hpcpool/service/codec"
)

// Service executes decoded calls against a function registry.
type Service struct {
	codec *codec.Service

	mux     sync.Mutex
	pending map[string]*asyncCall
}

// asyncCall tracks one fire-and-forget submission until it is collected
// through an update request.
type asyncCall struct {
	response  *task.Response
	done      bool
	cancelled bool
	started   bool
}

// New creates a worker service around the given registry.
func New(registry *codec.Registry) *Service {
	return &Service{
		codec:   codec.New(registry),
		pending: make(map[string]*asyncCall),
	}
}

// Run connects to the controller at address and serves requests until a
// close message, connection loss or ctx expiry.
func (s *Service) Run(ctx context.Context, address string) error {
	conn, err := channel.Dial(ctx, address)
	if err != nil {
		return err
	}
	defer conn.Close()
	return s.Serve(ctx, conn)
}

// Serve runs the protocol loop over an established connection.
func (s *Service) Serve(ctx context.Context, conn net.Conn) error {
	for {
		payload, err := channel.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		request, err := s.codec.DecodeRequest(payload)
		if err != nil {
			return err
		}
		switch request.Verb {
		case task.VerbClose:
			return nil
		case task.VerbCall:
			if err = s.reply(conn, s.execute(ctx, request.Call)); err != nil {
				return err
			}
		case task.VerbSubmit:
			s.submit(ctx, request.Call)
		case task.VerbUpdate:
			if err = s.reply(conn, s.collect(request.IDs)); err != nil {
				return err
			}
		case task.VerbCancel:
			s.cancel(request.IDs)
		}
	}
}

func (s *Service) reply(conn net.Conn, response *task.Response) error {
	payload, err := s.codec.EncodeResponse(response)
	if err != nil {
		payload, err = s.codec.EncodeResponse(&task.Response{
			Status: task.StatusError,
			Error:  &task.CallError{Message: err.Error()},
		})
		if err != nil {
			return err
		}
	}
	return channel.WriteFrame(conn, payload)
}

// execute runs a call synchronously and shapes the outcome into a response.
func (s *Service) execute(ctx context.Context, call *task.Call) *task.Response {
	value, err := s.codec.Invoke(ctx, call)
	response := &task.Response{Status: task.StatusOK, Value: value}
	if call != nil {
		response.ID = call.ID
	}
	if err != nil {
		response.Status = task.StatusError
		response.Value = nil
		response.Error = callError(call, err)
	}
	return response
}

func callError(call *task.Call, err error) *task.CallError {
	ret := &task.CallError{Message: err.Error()}
	if call != nil && call.Func != nil {
		ret.Func = call.Func.Name
	}
	var remote *types.RemoteExecutionError
	if errors.As(err, &remote) {
		ret.Func, ret.Message, ret.Trace = remote.Func, remote.Message, remote.Trace
	}
	return ret
}

// submit starts a call in the background; the outcome is held until the
// controller polls for it.
func (s *Service) submit(ctx context.Context, call *task.Call) {
	if call == nil {
		return
	}
	pending := &asyncCall{}
	s.mux.Lock()
	s.pending[call.ID] = pending
	s.mux.Unlock()

	go func() {
		s.mux.Lock()
		if pending.cancelled {
			s.mux.Unlock()
			return
		}
		pending.started = true
		s.mux.Unlock()

		response := s.execute(ctx, call)

		s.mux.Lock()
		pending.response = response
		pending.done = true
		s.mux.Unlock()
	}()
}

// collect answers an update request with the outcomes of all finished ids.
func (s *Service) collect(ids []string) *task.Response {
	results := make(map[string]*task.Response)
	s.mux.Lock()
	for _, id := range ids {
		if pending, ok := s.pending[id]; ok && pending.done {
			results[id] = pending.response
			delete(s.pending, id)
		}
	}
	s.mux.Unlock()
	return &task.Response{Status: task.StatusOK, Results: results}
}

// cancel drops submissions that have not started; running calls cannot be
// interrupted and complete normally.
func (s *Service) cancel(ids []string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, id := range ids {
		if pending, ok := s.pending[id]; ok && !pending.started {
			pending.cancelled = true
			delete(s.pending, id)
		}
	}
}
