package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/service/codec"
	"github.com/viant/hpcpool/service/socket"
)

func startBroker(t *testing.T, ctx context.Context, registry *codec.Registry, config Config, boots *atomic.Int64) *Broker {
	t.Helper()
	broker := NewBroker(codec.New(registry), localLauncher(t), config, DefaultPollInterval,
		socket.WithStarter(inprocStarter(registry, boots)), socket.WithHostnameLocalhost(true))
	assert.NoError(t, broker.Start(ctx))
	return broker
}

func TestBroker_FreshWorkerPerTask(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var boots atomic.Int64
	registry := addRegistry()
	broker := startBroker(t, ctx, registry, Config{MaxWorkers: 1}, &boots)
	defer broker.Shutdown(ctx, true, true)

	callable, _ := registry.Capture("math/add", nil)
	results, err := broker.Map(ctx, callable, []interface{}{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{float64(2), float64(4), float64(6)}, results)
	// One worker spawned and torn down per task
	assert.Equal(t, int64(3), boots.Load())
}

func TestBroker_ConcurrencyBound(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var running atomic.Int64
	var peak atomic.Int64
	release := make(chan struct{})
	registry := codec.NewRegistry()
	registry.Register(&codec.Func{
		Name: "test/block",
		Handler: func(ctx context.Context, args *codec.Arguments) (interface{}, error) {
			now := running.Add(1)
			for {
				current := peak.Load()
				if now <= current || peak.CompareAndSwap(current, now) {
					break
				}
			}
			<-release
			running.Add(-1)
			return nil, nil
		},
	})

	broker := startBroker(t, ctx, registry, Config{MaxWorkers: 2}, nil)
	defer broker.Shutdown(ctx, true, true)

	callable, _ := registry.Capture("test/block", nil)
	futures := make([]interface{ Result(context.Context) (interface{}, error) }, 4)
	for i := range futures {
		f, err := broker.Submit(ctx, task.NewCall(callable))
		assert.NoError(t, err)
		futures[i] = f
	}
	time.Sleep(150 * time.Millisecond)
	close(release)
	for _, f := range futures {
		_, err := f.Result(ctx)
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestBroker_CancelQueued(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	release := make(chan struct{})
	registry := codec.NewRegistry()
	registry.Register(&codec.Func{
		Name: "test/block",
		Handler: func(ctx context.Context, args *codec.Arguments) (interface{}, error) {
			<-release
			return "done", nil
		},
	})

	broker := startBroker(t, ctx, registry, Config{MaxWorkers: 1}, nil)
	defer broker.Shutdown(ctx, true, true)

	callable, _ := registry.Capture("test/block", nil)
	first, err := broker.Submit(ctx, task.NewCall(callable))
	assert.NoError(t, err)
	second, err := broker.Submit(ctx, task.NewCall(callable))
	assert.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	assert.True(t, broker.Cancel(second.ID()))
	close(release)

	value, err := first.Result(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "done", value)
	_, err = second.Result(ctx)
	assert.True(t, types.IsCancelled(err))
}

func TestBroker_RemoteFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry := codec.NewRegistry()
	registry.Register(&codec.Func{
		Name: "test/fail",
		Handler: func(ctx context.Context, args *codec.Arguments) (interface{}, error) {
			panic("exploded")
		},
	})

	broker := startBroker(t, ctx, registry, Config{MaxWorkers: 1}, nil)
	defer broker.Shutdown(ctx, true, true)

	callable, _ := registry.Capture("test/fail", nil)
	f, err := broker.Submit(ctx, task.NewCall(callable))
	assert.NoError(t, err)
	_, err = f.Result(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exploded")
}
