package dependency

import (
	"context"

	"github.com/viant/hpcpool/model/task"
	"github.com/viant/hpcpool/runtime/future"
)

// collectRefs gathers every future reference reachable from the call's
// positional arguments, keyword arguments and captured environment,
// descending into nested slices and maps.
func collectRefs(call *task.Call) []future.Ref {
	var refs []future.Ref
	for _, arg := range call.Args {
		refs = appendRefs(refs, arg)
	}
	for _, value := range call.Kwargs {
		refs = appendRefs(refs, value)
	}
	if call.Func != nil {
		for _, value := range call.Func.Env {
			refs = appendRefs(refs, value)
		}
	}
	return refs
}

func appendRefs(refs []future.Ref, value interface{}) []future.Ref {
	switch actual := value.(type) {
	case future.Ref:
		return append(refs, actual)
	case []interface{}:
		for _, item := range actual {
			refs = appendRefs(refs, item)
		}
	case map[string]interface{}:
		for _, item := range actual {
			refs = appendRefs(refs, item)
		}
	}
	return refs
}

// resolveCall returns a copy of the call with every settled future replaced
// by its result value. Callers ensure all references are terminal; a failed
// reference surfaces as that reference's error.
func resolveCall(ctx context.Context, call *task.Call) (*task.Call, error) {
	resolved := call.Clone()
	for i, arg := range resolved.Args {
		value, err := resolveValue(ctx, arg)
		if err != nil {
			return nil, err
		}
		resolved.Args[i] = value
	}
	for name, item := range resolved.Kwargs {
		value, err := resolveValue(ctx, item)
		if err != nil {
			return nil, err
		}
		resolved.Kwargs[name] = value
	}
	if call.Func != nil && len(call.Func.Env) > 0 {
		env := make(map[string]interface{}, len(call.Func.Env))
		for name, item := range call.Func.Env {
			value, err := resolveValue(ctx, item)
			if err != nil {
				return nil, err
			}
			env[name] = value
		}
		resolved.Func = &task.Callable{Name: call.Func.Name, Env: env}
	}
	return resolved, nil
}

func resolveValue(ctx context.Context, value interface{}) (interface{}, error) {
	switch actual := value.(type) {
	case future.Ref:
		return actual.Result(ctx)
	case []interface{}:
		resolved := make([]interface{}, len(actual))
		for i, item := range actual {
			itemValue, err := resolveValue(ctx, item)
			if err != nil {
				return nil, err
			}
			resolved[i] = itemValue
		}
		return resolved, nil
	case map[string]interface{}:
		resolved := make(map[string]interface{}, len(actual))
		for name, item := range actual {
			itemValue, err := resolveValue(ctx, item)
			if err != nil {
				return nil, err
			}
			resolved[name] = itemValue
		}
		return resolved, nil
	}
	return value, nil
}
