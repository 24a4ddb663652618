package pool

import (
	"sync"

	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/runtime/future"
)

// tracker is the future side table shared by both executors. It maps call id
// to future for constant-time cancellation and drops entries as futures
// settle.
type tracker struct {
	mux     sync.Mutex
	futures map[string]*future.Future
	closed  bool
}

func newTracker() tracker {
	return tracker{futures: make(map[string]*future.Future)}
}

// register creates and records the future for a call id; it fails once the
// executor is shut down.
func (t *tracker) register(id string) (*future.Future, error) {
	t.mux.Lock()
	defer t.mux.Unlock()
	if t.closed {
		return nil, types.NewDispatchError("executor is shut down", nil)
	}
	ret := future.NewWithID(id)
	t.futures[id] = ret
	return ret, nil
}

func (t *tracker) forget(id string) {
	t.mux.Lock()
	delete(t.futures, id)
	t.mux.Unlock()
}

// markClosed flips the executor closed; it reports false when it already was.
func (t *tracker) markClosed() bool {
	t.mux.Lock()
	defer t.mux.Unlock()
	if t.closed {
		return false
	}
	t.closed = true
	return true
}

// unsettled snapshots the registered, not yet settled futures.
func (t *tracker) unsettled() []*future.Future {
	t.mux.Lock()
	defer t.mux.Unlock()
	ret := make([]*future.Future, 0, len(t.futures))
	for _, f := range t.futures {
		ret = append(ret, f)
	}
	return ret
}

// Pending returns the number of futures not yet settled.
func (t *tracker) Pending() int {
	t.mux.Lock()
	defer t.mux.Unlock()
	return len(t.futures)
}

// Cancel cancels the identified task if it has not been dispatched yet.
func (t *tracker) Cancel(id string) bool {
	t.mux.Lock()
	ret, ok := t.futures[id]
	t.mux.Unlock()
	if !ok {
		return false
	}
	return ret.Cancel()
}
