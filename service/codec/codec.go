// Package codec encodes calls and control messages into transferable
// payloads and executes decoded calls against a function registry. Functions
// are referenced by registered name; values captured from the caller's
// environment are carried inside the payload, so workers never import code
// private to the controller.
package codec

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/structology/conv"
)

// Service is the codec proper: it owns the wire representation and the
// argument conversion rules.
type Service struct {
	registry  *Registry
	converter *conv.Converter
}

// New creates a codec backed by the given registry.
func New(registry *Registry) *Service {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true
	return &Service{
		registry:  registry,
		converter: conv.NewConverter(options),
	}
}

// Registry returns the backing function registry.
func (s *Service) Registry() *Registry { return s.registry }

// EncodeRequest serializes a request envelope.
func (s *Service) EncodeRequest(request *task.Request) ([]byte, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return nil, types.NewSerializationError(err)
	}
	return data, nil
}

// DecodeRequest deserializes a request envelope.
func (s *Service) DecodeRequest(data []byte) (*task.Request, error) {
	request := &task.Request{}
	if err := json.Unmarshal(data, request); err != nil {
		return nil, types.NewSerializationError(err)
	}
	return request, nil
}

// EncodeResponse serializes a response envelope.
func (s *Service) EncodeResponse(response *task.Response) ([]byte, error) {
	data, err := json.Marshal(response)
	if err != nil {
		return nil, types.NewSerializationError(err)
	}
	return data, nil
}

// DecodeResponse deserializes a response envelope.
func (s *Service) DecodeResponse(data []byte) (*task.Response, error) {
	response := &task.Response{}
	if err := json.Unmarshal(data, response); err != nil {
		return nil, types.NewSerializationError(err)
	}
	return response, nil
}

// Validate ensures a call references a registered function and that its
// payload is representable on the wire. It runs at submit time so encoding
// problems surface synchronously rather than on the dispatcher goroutine.
func (s *Service) Validate(call *task.Call) error {
	if call == nil || call.Func == nil {
		return types.NewSerializationError(fmt.Errorf("call has no function"))
	}
	if s.registry.Lookup(call.Func.Name) == nil {
		return types.NewSerializationError(fmt.Errorf("function %q is not registered", call.Func.Name))
	}
	if _, err := json.Marshal(call); err != nil {
		return types.NewSerializationError(err)
	}
	return nil
}

// Invoke executes a decoded call: it resolves the registered function,
// merges the captured environment under the explicit keyword arguments and
// runs the handler. A panic inside the handler is reported as an error
// carrying the stack trace.
func (s *Service) Invoke(ctx context.Context, call *task.Call) (result interface{}, err error) {
	if call == nil || call.Func == nil {
		return nil, types.NewSerializationError(fmt.Errorf("call has no function"))
	}
	fn := s.registry.Lookup(call.Func.Name)
	if fn == nil {
		return nil, types.NewSerializationError(fmt.Errorf("function %q is not registered", call.Func.Name))
	}
	kwargs := make(map[string]interface{}, len(call.Kwargs)+len(call.Func.Env))
	for k, v := range call.Func.Env {
		kwargs[k] = v
	}
	for k, v := range call.Kwargs {
		kwargs[k] = v
	}
	args := &Arguments{
		Positional: call.Args,
		Kwargs:     kwargs,
		converter:  s.converter,
	}
	defer func() {
		if r := recover(); r != nil {
			err = &types.RemoteExecutionError{
				Func:    call.Func.Name,
				Message: fmt.Sprintf("panic: %v", r),
				Trace:   string(debug.Stack()),
			}
		}
	}()
	return fn.Handler(ctx, args)
}
