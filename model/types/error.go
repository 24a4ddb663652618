package types

import (
	"errors"
	"fmt"
)

// SerializationError reports a payload that could not be encoded into, or
// decoded from, its wire representation. It surfaces synchronously at submit
// or construction time.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization failed: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// NewSerializationError wraps err as a SerializationError.
func NewSerializationError(err error) error {
	return &SerializationError{Err: err}
}

// DispatchError reports a worker that could not be spawned or died before
// replying. Every future still pending against the affected slot fails with
// this error; the slot is not respawned.
type DispatchError struct {
	Reason string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dispatch failed: %v", e.Reason)
	}
	return fmt.Sprintf("dispatch failed: %v: %v", e.Reason, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// NewDispatchError creates a DispatchError with an optional cause.
func NewDispatchError(reason string, err error) error {
	return &DispatchError{Reason: reason, Err: err}
}

// RemoteExecutionError carries an error raised by a callable inside a worker
// process. It is observable only when the caller reads the corresponding
// future result.
type RemoteExecutionError struct {
	Func    string
	Message string
	Trace   string
}

func (e *RemoteExecutionError) Error() string {
	if e.Func == "" {
		return fmt.Sprintf("remote execution failed: %v", e.Message)
	}
	return fmt.Sprintf("remote execution of %v failed: %v", e.Func, e.Message)
}

// CancellationError marks a future cancelled before its call was dispatched.
type CancellationError struct {
	ID string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("task %v was cancelled", e.ID)
}

// IsCancelled reports whether err originates from a cancelled future.
func IsCancelled(err error) bool {
	var cancelled *CancellationError
	return errors.As(err, &cancelled)
}

// DependencyError marks a task whose dependency future failed or was
// cancelled; the dependent task is never dispatched.
type DependencyError struct {
	ID  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %v failed: %v", e.ID, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// NewDependencyError wraps the terminal error of dependency future id.
func NewDependencyError(id string, err error) error {
	return &DependencyError{ID: id, Err: err}
}

// ConfigurationError reports an invalid option combination. It is raised
// synchronously at construction.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Msg)
}

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...interface{}) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}
