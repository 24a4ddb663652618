// Package cache implements a memoizing in-process executor: every call's
// input and result are persisted under a content-addressed key, and a
// resubmitted call with identical inputs is answered from storage without
// executing again. Results survive process restarts, which makes long
// simulation campaigns resumable.
package cache

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/model/types"
	"github.com/viant/hpcpool/runtime/future"
	"github.com/viant/hpcpool/service/codec"
)

// ExecuteFunc runs a resolved call and returns its result. The default
// executes in-process through the codec registry; tests and embedders can
// substitute their own.
type ExecuteFunc func(ctx context.Context, call *task.Call) (interface{}, error)

// Option customises a cache service.
type Option func(s *Service)

// WithExecuteFunc overrides how resolved calls are executed.
func WithExecuteFunc(execute ExecuteFunc) Option {
	return func(s *Service) { s.execute = execute }
}

// Service is the caching executor. It satisfies the same submission surface
// as the worker pools but runs calls in the controller process.
type Service struct {
	baseURL string
	fs      afs.Service
	codec   *codec.Service
	execute ExecuteFunc

	wg sync.WaitGroup

	mux     sync.Mutex
	futures map[string]*future.Future
	closed  bool
}

// entry is the persisted outcome of one call.
type entry struct {
	Value interface{} `json:"value,omitempty"`
	Error string      `json:"error,omitempty"`
}

// New creates a cache executor storing entries under baseURL, which accepts
// any afs-supported scheme (a plain directory path, file://, mem:// etc).
func New(aCodec *codec.Service, baseURL string, options ...Option) *Service {
	ret := &Service{
		baseURL: baseURL,
		fs:      afs.New(),
		codec:   aCodec,
		futures: make(map[string]*future.Future),
	}
	ret.execute = func(ctx context.Context, call *task.Call) (interface{}, error) {
		return aCodec.Invoke(ctx, call)
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Submit validates the call and runs it on a background goroutine, consulting
// the cache first. Future-valued arguments are awaited before the cache key
// is derived, so a dependent call hits the same key on every run.
func (s *Service) Submit(ctx context.Context, call *task.Call) (*future.Future, error) {
	if err := s.codec.Validate(call); err != nil {
		return nil, err
	}
	s.mux.Lock()
	if s.closed {
		s.mux.Unlock()
		return nil, types.NewDispatchError("executor is shut down", nil)
	}
	ret := future.NewWithID(call.ID)
	s.futures[call.ID] = ret
	s.mux.Unlock()
	ret.OnDone(func() {
		s.mux.Lock()
		delete(s.futures, call.ID)
		s.mux.Unlock()
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, call, ret)
	}()
	return ret, nil
}

func (s *Service) run(ctx context.Context, call *task.Call, ret *future.Future) {
	resolved, err := s.resolve(ctx, call)
	if err != nil {
		ret.SetRunning()
		ret.Fail(err)
		return
	}
	if !ret.SetRunning() {
		return
	}
	key, err := s.key(resolved)
	if err != nil {
		ret.Fail(err)
		return
	}
	if cached, ok := s.load(ctx, key); ok {
		s.settle(ret, resolved, cached)
		return
	}
	s.store(ctx, key+".in.json", resolved)

	value, execErr := s.execute(ctx, resolved)
	out := &entry{Value: value}
	if execErr != nil {
		out.Error = execErr.Error()
	}
	s.store(ctx, key+".out.json", out)
	s.settle(ret, resolved, out)
}

func (s *Service) settle(ret *future.Future, call *task.Call, out *entry) {
	if out.Error != "" {
		ret.Fail(&types.RemoteExecutionError{Func: call.Func.Name, Message: out.Error})
		return
	}
	ret.Complete(out.Value)
}

// resolve awaits future-valued arguments; a failed dependency aborts the
// call with a DependencyError.
func (s *Service) resolve(ctx context.Context, call *task.Call) (*task.Call, error) {
	resolved := call.Clone()
	for i, arg := range resolved.Args {
		if ref, ok := arg.(future.Ref); ok {
			value, err := ref.Result(ctx)
			if err != nil {
				return nil, types.NewDependencyError(ref.ID(), err)
			}
			resolved.Args[i] = value
		}
	}
	for name, item := range resolved.Kwargs {
		if ref, ok := item.(future.Ref); ok {
			value, err := ref.Result(ctx)
			if err != nil {
				return nil, types.NewDependencyError(ref.ID(), err)
			}
			resolved.Kwargs[name] = value
		}
	}
	return resolved, nil
}

// key derives the content-addressed cache key: function name plus a digest
// of the resolved call payload. The call id is excluded so identical inputs
// collide on purpose.
func (s *Service) key(call *task.Call) (string, error) {
	payload := &task.Call{Func: call.Func, Args: call.Args, Kwargs: call.Kwargs}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewSerializationError(err)
	}
	digest := md5.Sum(data)
	name := strings.ReplaceAll(call.Func.Name, "/", "_")
	return url.Join(s.baseURL, fmt.Sprintf("%s-%s", name, hex.EncodeToString(digest[:]))), nil
}

func (s *Service) load(ctx context.Context, key string) (*entry, bool) {
	location := key + ".out.json"
	exists, err := s.fs.Exists(ctx, location)
	if err != nil || !exists {
		return nil, false
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, false
	}
	out := &entry{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, false
	}
	return out, true
}

// store persists best-effort; a failed write degrades to uncached execution.
func (s *Service) store(ctx context.Context, location string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data))
}

// Map submits one call per value and blocks for all results in input order.
func (s *Service) Map(ctx context.Context, callable *task.Callable, values []interface{}) ([]interface{}, error) {
	futures := make([]*future.Future, len(values))
	for i, value := range values {
		ret, err := s.Submit(ctx, task.NewCall(callable, value))
		if err != nil {
			return nil, err
		}
		futures[i] = ret
	}
	results := make([]interface{}, len(values))
	for i, ret := range futures {
		value, err := ret.Result(ctx)
		if err != nil {
			return nil, err
		}
		results[i] = value
	}
	return results, nil
}

// Pending returns the number of futures not yet settled.
func (s *Service) Pending() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.futures)
}

// Cancel cancels the identified task if it has not started executing.
func (s *Service) Cancel(id string) bool {
	s.mux.Lock()
	ret, ok := s.futures[id]
	s.mux.Unlock()
	if !ok {
		return false
	}
	return ret.Cancel()
}

// Shutdown stops accepting submissions; when wait is set it blocks until
// in-flight calls finished. With cancelFutures, not yet started calls are
// cancelled.
func (s *Service) Shutdown(ctx context.Context, wait, cancelFutures bool) error {
	s.mux.Lock()
	if s.closed {
		s.mux.Unlock()
		return nil
	}
	s.closed = true
	pending := make([]*future.Future, 0, len(s.futures))
	for _, ret := range s.futures {
		pending = append(pending, ret)
	}
	s.mux.Unlock()

	if cancelFutures {
		for _, ret := range pending {
			ret.Cancel()
		}
	}
	if wait {
		s.wg.Wait()
	}
	return nil
}
