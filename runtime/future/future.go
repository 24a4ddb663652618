package future

import (
	"context"
	"sync"
	"time"

	"github.com/viant/hpcpool/internal/clock"
	"github.com/viant/hpcpool/internal/idgen"
	"github.com/viant/hpcpool/model/types"
)

// State represents the current state of a pending result.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether the state admits no further transition.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Ref identifies a value that resolves to a future result. Submission
// arguments are matched against this interface when scanning for
// dependencies, rather than against a concrete type.
type Ref interface {
	ID() string
	State() State
	Done() <-chan struct{}
	Result(ctx context.Context) (interface{}, error)
	OnDone(fn func())
}

// Future is the pending result of a submitted call. State transitions are
// monotone: pending -> running -> {completed|failed|cancelled}; Cancel is
// accepted only before the call starts running. All mutators are safe for
// concurrent use; terminal mutation happens on the dispatcher goroutine that
// owns the call's slot.
type Future struct {
	id          string
	mux         sync.Mutex
	state       State
	value       interface{}
	err         error
	done        chan struct{}
	callbacks   []func()
	ScheduledAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// New creates a pending future with a generated id.
func New() *Future {
	return NewWithID(idgen.Prefixed("task"))
}

// NewWithID creates a pending future correlated with the given call id.
func NewWithID(id string) *Future {
	return &Future{
		id:          id,
		state:       StatePending,
		done:        make(chan struct{}),
		ScheduledAt: clock.Now(),
	}
}

// ID returns the future identifier, shared with the call it tracks.
func (f *Future) ID() string { return f.id }

// State returns the current state.
func (f *Future) State() State {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.state
}

// SetRunning atomically moves the future from pending to running. It returns
// false when the future was cancelled (or already terminal), in which case
// the call must not be dispatched.
func (f *Future) SetRunning() bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	if f.state != StatePending {
		return false
	}
	now := clock.Now()
	f.StartedAt = &now
	f.state = StateRunning
	return true
}

// Complete records a successful result and releases all waiters.
func (f *Future) Complete(value interface{}) {
	f.finish(StateCompleted, value, nil)
}

// Fail records a terminal error and releases all waiters.
func (f *Future) Fail(err error) {
	f.finish(StateFailed, nil, err)
}

// Cancel marks the future cancelled. It succeeds only before the call was
// dispatched; once running, the call cannot be interrupted and Cancel
// returns false.
func (f *Future) Cancel() bool {
	f.mux.Lock()
	if f.state != StatePending {
		f.mux.Unlock()
		return false
	}
	now := clock.Now()
	f.CompletedAt = &now
	f.state = StateCancelled
	f.err = &types.CancellationError{ID: f.id}
	callbacks := f.takeCallbacks()
	close(f.done)
	f.mux.Unlock()
	for _, fn := range callbacks {
		fn()
	}
	return true
}

func (f *Future) finish(state State, value interface{}, err error) {
	f.mux.Lock()
	if f.state.IsTerminal() {
		f.mux.Unlock()
		return
	}
	now := clock.Now()
	f.CompletedAt = &now
	f.state = state
	f.value = value
	f.err = err
	callbacks := f.takeCallbacks()
	close(f.done)
	f.mux.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func (f *Future) takeCallbacks() []func() {
	callbacks := f.callbacks
	f.callbacks = nil
	return callbacks
}

// Done returns a channel closed once the future reaches a terminal state.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result blocks until the future reaches a terminal state or ctx expires.
// A cancelled future yields *types.CancellationError.
func (f *Future) Result(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.value, f.err
}

// Err returns the terminal error without blocking, or nil.
func (f *Future) Err() error {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.err
}

// OnDone registers fn to run once the future reaches a terminal state. When
// the future is already terminal fn runs inline; otherwise it runs on the
// goroutine that completes the future.
func (f *Future) OnDone(fn func()) {
	f.mux.Lock()
	if f.state.IsTerminal() {
		f.mux.Unlock()
		fn()
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mux.Unlock()
}

var _ Ref = (*Future)(nil)
