package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/runtime/future"
	"github.com/viant/hpcpool/service/codec"
)

func newCountingRegistry(executions *atomic.Int64) *codec.Registry {
	registry := codec.NewRegistry()
	registry.Register(&codec.Func{
		Name: "math/add",
		Handler: func(ctx context.Context, args *codec.Arguments) (interface{}, error) {
			executions.Add(1)
			a, _ := args.Float64(0)
			b, _ := args.Float64(1)
			return a + b, nil
		},
	})
	registry.Register(&codec.Func{
		Name: "test/fail",
		Handler: func(ctx context.Context, args *codec.Arguments) (interface{}, error) {
			executions.Add(1)
			return nil, errors.New("does not work")
		},
	})
	return registry
}

func TestService_Memoization(t *testing.T) {
	ctx := context.Background()
	var executions atomic.Int64
	registry := newCountingRegistry(&executions)
	service := New(codec.New(registry), t.TempDir())
	defer service.Shutdown(ctx, true, false)

	callable, _ := registry.Capture("math/add", nil)

	first, err := service.Submit(ctx, task.NewCall(callable, 1, 2))
	assert.NoError(t, err)
	value, err := first.Result(ctx)
	assert.NoError(t, err)
	assert.Equal(t, float64(3), value)

	// Identical inputs under a fresh call id hit the cache
	second, err := service.Submit(ctx, task.NewCall(callable, 1, 2))
	assert.NoError(t, err)
	value, err = second.Result(ctx)
	assert.NoError(t, err)
	assert.Equal(t, float64(3), value)
	assert.Equal(t, int64(1), executions.Load())

	// Different inputs execute again
	third, err := service.Submit(ctx, task.NewCall(callable, 2, 2))
	assert.NoError(t, err)
	value, err = third.Result(ctx)
	assert.NoError(t, err)
	assert.Equal(t, float64(4), value)
	assert.Equal(t, int64(2), executions.Load())
}

func TestService_CacheSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	var executions atomic.Int64
	registry := newCountingRegistry(&executions)
	baseURL := t.TempDir()

	service := New(codec.New(registry), baseURL)
	callable, _ := registry.Capture("math/add", nil)
	f, err := service.Submit(ctx, task.NewCall(callable, 5, 6))
	assert.NoError(t, err)
	_, err = f.Result(ctx)
	assert.NoError(t, err)
	assert.NoError(t, service.Shutdown(ctx, true, false))

	// A new service over the same storage answers from cache
	restarted := New(codec.New(registry), baseURL)
	defer restarted.Shutdown(ctx, true, false)
	f, err = restarted.Submit(ctx, task.NewCall(callable, 5, 6))
	assert.NoError(t, err)
	value, err := f.Result(ctx)
	assert.NoError(t, err)
	assert.Equal(t, float64(11), value)
	assert.Equal(t, int64(1), executions.Load())
}

func TestService_FailureCached(t *testing.T) {
	ctx := context.Background()
	var executions atomic.Int64
	registry := newCountingRegistry(&executions)
	service := New(codec.New(registry), t.TempDir())
	defer service.Shutdown(ctx, true, false)

	callable, _ := registry.Capture("test/fail", nil)
	for i := 0; i < 2; i++ {
		f, err := service.Submit(ctx, task.NewCall(callable))
		assert.NoError(t, err)
		_, err = f.Result(ctx)
		var remote *types.RemoteExecutionError
		assert.True(t, errors.As(err, &remote))
		assert.Contains(t, remote.Message, "does not work")
	}
	assert.Equal(t, int64(1), executions.Load())
}

func TestService_FutureArgumentsShareKey(t *testing.T) {
	ctx := context.Background()
	var executions atomic.Int64
	registry := newCountingRegistry(&executions)
	service := New(codec.New(registry), t.TempDir())
	defer service.Shutdown(ctx, true, false)

	callable, _ := registry.Capture("math/add", nil)

	dep := future.New()
	dep.SetRunning()
	dep.Complete(float64(1))
	f, err := service.Submit(ctx, task.NewCall(callable, dep, float64(2)))
	assert.NoError(t, err)
	value, err := f.Result(ctx)
	assert.NoError(t, err)
	assert.Equal(t, float64(3), value)

	// The resolved value keys the cache, so the plain-value call is a hit
	g, err := service.Submit(ctx, task.NewCall(callable, float64(1), float64(2)))
	assert.NoError(t, err)
	value, err = g.Result(ctx)
	assert.NoError(t, err)
	assert.Equal(t, float64(3), value)
	assert.Equal(t, int64(1), executions.Load())
}
