package codec

import (
	"context"
	"reflect"
	"sync"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/x"
)

// Handler executes a registered function against decoded call arguments.
type Handler func(ctx context.Context, args *Arguments) (interface{}, error)

// Func describes a named function executable by workers. Input optionally
// declares a struct type the keyword arguments bind to; it is kept in the
// type registry so decoded payloads can be converted back to typed values.
type Func struct {
	Name    string
	Input   reflect.Type
	Handler Handler
}

// Registry holds the functions a worker can execute. The controller and the
// worker must be configured with the same registrations; a call references
// its function by registered name only.
type Registry struct {
	mux   sync.RWMutex
	funcs map[string]*Func
	types *x.Registry
}

// NewRegistry creates a registry, optionally seeding extension types.
func NewRegistry(goTypes ...*x.Type) *Registry {
	ret := &Registry{
		funcs: make(map[string]*Func),
		types: x.NewRegistry(),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}

// Register adds a function; a later registration under the same name wins.
func (r *Registry) Register(f *Func) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if f.Input != nil {
		r.types.Register(x.NewType(f.Input))
	}
	r.funcs[f.Name] = f
}

// Lookup returns a function by name or nil.
func (r *Registry) Lookup(name string) *Func {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.funcs[name]
}

// Types exposes the extension type registry.
func (r *Registry) Types() *x.Registry {
	return r.types
}

// Capture binds a registered function to the values captured from the
// caller's environment, yielding a callable that travels by value. It is the
// explicit counterpart of serializing a closure: every captured variable has
// to be named here.
func (r *Registry) Capture(name string, env map[string]interface{}) (*task.Callable, error) {
	if r.Lookup(name) == nil {
		return nil, types.NewConfigurationError("function %q is not registered", name)
	}
	return &task.Callable{Name: name, Env: env}, nil
}
