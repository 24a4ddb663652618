package codec

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
)

type greetInput struct {
	Name   string `json:"name"`
	Factor int    `json:"factor"`
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry := NewRegistry()
	registry.Register(&Func{
		Name: "math/add",
		Handler: func(ctx context.Context, args *Arguments) (interface{}, error) {
			a, err := args.Float64(0)
			if err != nil {
				return nil, err
			}
			b, err := args.Float64(1)
			if err != nil {
				return nil, err
			}
			return a + b, nil
		},
	})
	registry.Register(&Func{
		Name:  "test/greet",
		Input: reflect.TypeOf(greetInput{}),
		Handler: func(ctx context.Context, args *Arguments) (interface{}, error) {
			input := &greetInput{}
			if err := args.Bind(input); err != nil {
				return nil, err
			}
			return input.Name, nil
		},
	})
	registry.Register(&Func{
		Name: "test/panic",
		Handler: func(ctx context.Context, args *Arguments) (interface{}, error) {
			panic("kaboom")
		},
	})
	return registry
}

func TestService_RequestRoundTrip(t *testing.T) {
	service := New(newTestRegistry(t))
	callable, err := service.Registry().Capture("math/add", nil)
	assert.NoError(t, err)

	call := task.NewCall(callable, 1, 2)
	request := &task.Request{Verb: task.VerbCall, Call: call}
	data, err := service.EncodeRequest(request)
	assert.NoError(t, err)

	decoded, err := service.DecodeRequest(data)
	assert.NoError(t, err)
	assert.Equal(t, task.VerbCall, decoded.Verb)
	assert.Equal(t, call.ID, decoded.Call.ID)
	assert.Equal(t, "math/add", decoded.Call.Func.Name)

	value, err := service.Invoke(context.Background(), decoded.Call)
	assert.NoError(t, err)
	assert.Equal(t, float64(3), value)
}

func TestRegistry_CaptureUnregistered(t *testing.T) {
	registry := newTestRegistry(t)
	_, err := registry.Capture("no/such", nil)
	var configErr *types.ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}

func TestService_ValidateUnserializable(t *testing.T) {
	service := New(newTestRegistry(t))
	callable, _ := service.Registry().Capture("math/add", nil)

	err := service.Validate(task.NewCall(callable, make(chan int)))
	var serErr *types.SerializationError
	assert.True(t, errors.As(err, &serErr))

	err = service.Validate(task.NewCall(&task.Callable{Name: "no/such"}))
	assert.True(t, errors.As(err, &serErr))

	assert.NoError(t, service.Validate(task.NewCall(callable, 1, 2)))
}

func TestService_InvokeEnvMerge(t *testing.T) {
	service := New(newTestRegistry(t))
	callable, err := service.Registry().Capture("test/greet", map[string]interface{}{
		"name":   "captured",
		"factor": 2,
	})
	assert.NoError(t, err)

	// Captured environment applies when no explicit kwarg overrides it
	value, err := service.Invoke(context.Background(), task.NewCall(callable))
	assert.NoError(t, err)
	assert.Equal(t, "captured", value)

	// Explicit kwargs win over the captured environment
	call := task.NewCall(callable).WithKwargs(map[string]interface{}{"name": "explicit"})
	value, err = service.Invoke(context.Background(), call)
	assert.NoError(t, err)
	assert.Equal(t, "explicit", value)
}

func TestService_InvokePanic(t *testing.T) {
	service := New(newTestRegistry(t))
	callable, _ := service.Registry().Capture("test/panic", nil)
	_, err := service.Invoke(context.Background(), task.NewCall(callable))
	var remote *types.RemoteExecutionError
	assert.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Message, "kaboom")
	assert.NotEmpty(t, remote.Trace)
}

func TestArguments_Positional(t *testing.T) {
	service := New(newTestRegistry(t))
	args := &Arguments{Positional: []interface{}{float64(7), "text"}, converter: service.converter}

	i, err := args.Int(0)
	assert.NoError(t, err)
	assert.Equal(t, 7, i)

	s, err := args.String(1)
	assert.NoError(t, err)
	assert.Equal(t, "text", s)

	_, err = args.Int(5)
	assert.Error(t, err)
}
