// Package task defines the data model shared by the controller and the
// worker side of the dispatch protocol: calls, control messages and the wire
// envelopes they travel in.
package task

import (
	"github.com/viant/hpcpool/internal/idgen"
	"github.com/viant/hpcpool/runtime/future"
)

// Protocol verbs.
const (
	// VerbCall executes a call and blocks for the response.
	VerbCall = "call"
	// VerbSubmit starts a call without waiting; results are collected with
	// VerbUpdate.
	VerbSubmit = "submit"
	// VerbUpdate asks for the outcome of previously submitted call ids.
	VerbUpdate = "update"
	// VerbCancel drops submitted calls that have not started yet.
	VerbCancel = "cancel"
	// VerbClose shuts the worker down.
	VerbClose = "close"
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Callable references a function registered with the codec by name, together
// with the values captured from the caller's environment. The environment
// travels with every call so the worker never needs access to code or state
// private to the controller process.
type Callable struct {
	Name string                 `json:"name"`
	Env  map[string]interface{} `json:"env,omitempty"`
}

// Call is a single function invocation request. It is immutable once
// created and owned by the dispatcher of its slot until completion.
type Call struct {
	ID     string                 `json:"id"`
	Func   *Callable              `json:"func"`
	Args   []interface{}          `json:"args,omitempty"`
	Kwargs map[string]interface{} `json:"kwargs,omitempty"`
}

// NewCall creates a call for the given callable and positional arguments.
func NewCall(callable *Callable, args ...interface{}) *Call {
	return &Call{
		ID:   idgen.Prefixed("task"),
		Func: callable,
		Args: args,
	}
}

// WithKwargs sets the keyword arguments and returns the call for chaining.
func (c *Call) WithKwargs(kwargs map[string]interface{}) *Call {
	c.Kwargs = kwargs
	return c
}

// Clone returns a copy of the call with its own argument containers, so the
// dependency resolver can substitute resolved values without mutating the
// submitted instance.
func (c *Call) Clone() *Call {
	clone := &Call{ID: c.ID, Func: c.Func}
	if c.Args != nil {
		clone.Args = append([]interface{}(nil), c.Args...)
	}
	if c.Kwargs != nil {
		clone.Kwargs = make(map[string]interface{}, len(c.Kwargs))
		for k, v := range c.Kwargs {
			clone.Kwargs[k] = v
		}
	}
	return clone
}

// Request is the wire envelope sent to a worker.
type Request struct {
	Verb string   `json:"verb"`
	Call *Call    `json:"call,omitempty"`
	IDs  []string `json:"ids,omitempty"`
}

// CallError describes an error raised inside a worker.
type CallError struct {
	Func    string `json:"func,omitempty"`
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// Response is the wire envelope returned by a worker. For VerbUpdate the
// Results map carries one entry per completed call id.
type Response struct {
	Status  string               `json:"status"`
	ID      string               `json:"id,omitempty"`
	Value   interface{}          `json:"value,omitempty"`
	Error   *CallError           `json:"error,omitempty"`
	Results map[string]*Response `json:"results,omitempty"`
}

// Item is a single queue entry consumed by a dispatcher slot: either a call
// paired with its local future handle, or a close control message. The
// future is a local-only handle and is never serialized.
type Item struct {
	Close  bool
	Call   *Call
	Future *future.Future
}

// NewItem pairs a call with the future tracking it.
func NewItem(call *Call, f *future.Future) *Item {
	return &Item{Call: call, Future: f}
}

// NewCloseItem creates a close control message.
func NewCloseItem() *Item {
	return &Item{Close: true}
}
