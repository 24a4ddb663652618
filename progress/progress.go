// Package progress provides a lightweight tracker that keeps aggregated
// dispatch counters (tasks submitted, completed, failed, cancelled) for one
// executor. The tracker instance lives in the submission context - every
// component that receives the context can atomically update the counters via
// the Delta helper without requiring a global registry.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/hpcpool/internal/clock"
)

// Delta represents an incremental counter change emitted as tasks move
// through the dispatch pipeline. The fields are signed and therefore can be
// either positive (increment) or negative (decrement).
type Delta struct {
	Submitted int
	Completed int
	Failed    int
	Cancelled int
	Pending   int
}

// Progress is a point-in-time copy of the tracker counters, suitable for
// read-only inspection outside the tracker's lock.
type Progress struct {
	// Identification - informative only, filled when tracking starts.
	Executor  string
	StartedAt time.Time

	// Counters - modified via Tracker.Update().
	SubmittedTasks int
	CompletedTasks int
	FailedTasks    int
	CancelledTasks int
	PendingTasks   int
}

// Elapsed reports how long the tracker has been running at the time of the
// call.
func (p Progress) Elapsed() time.Duration {
	return clock.Since(p.StartedAt)
}

// Tracker keeps aggregated task counters for one executor. It is safe for
// concurrent use.
type Tracker struct {
	mux      sync.Mutex
	progress Progress
	onChange func(Progress)
}

// Update applies the supplied delta to the tracker. It is safe to call from
// multiple goroutines. If an onChange callback has been registered it will be
// invoked with a copy of the updated counters outside the critical section so
// that the callback can perform slow operations (e.g. JSON encoding, I/O)
// without blocking dispatch internals.
func (t *Tracker) Update(d Delta) {
	if t == nil {
		return
	}

	t.mux.Lock()

	t.progress.SubmittedTasks += d.Submitted
	t.progress.CompletedTasks += d.Completed
	t.progress.FailedTasks += d.Failed
	t.progress.CancelledTasks += d.Cancelled
	t.progress.PendingTasks += d.Pending

	snapshot := t.progress
	cb := t.onChange

	t.mux.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() Progress {
	if t == nil {
		return Progress{}
	}
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.progress
}

// OnChange registers a callback that is invoked after every successful
// Update. Passing nil disables the callback. Only one callback can be
// active; subsequent calls overwrite the previous value.
func (t *Tracker) OnChange(cb func(Progress)) {
	if t == nil {
		return
	}
	t.mux.Lock()
	t.onChange = cb
	t.mux.Unlock()
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a new Tracker, embeds it in a derived context and
// returns both. The caller may optionally pass an onChange callback that
// will be invoked after every counter update.
func WithNewTracker(ctx context.Context, executor string, onChange func(Progress)) (context.Context, *Tracker) {
	if ctx == nil {
		ctx = context.Background()
	}
	tr := &Tracker{
		progress: Progress{Executor: executor, StartedAt: clock.Now()},
		onChange: onChange,
	}
	return context.WithValue(ctx, trackerKey, tr), tr
}

// FromContext returns the tracker embedded in ctx or nil.
func FromContext(ctx context.Context) *Tracker {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(trackerKey).(*Tracker); ok {
		return v
	}
	return nil
}
