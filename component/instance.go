package component

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/c360/beancontainer/errors"
)

// Args are the positional arguments of an operation call
type Args []any

// Len returns the number of arguments
func (a Args) Len() int { return len(a) }

// Arg converts argument i to T. Values that arrived through a JSON transport
// (float64 numbers, generic maps) are re-decoded into T.
func Arg[T any](args Args, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(args) {
		return zero, errors.Newf(errors.ErrInvalidArgument, "argument %d missing (got %d)", i, len(args))
	}
	if v, ok := args[i].(T); ok {
		return v, nil
	}

	raw, err := json.Marshal(args[i])
	if err != nil {
		return zero, errors.Newf(errors.ErrInvalidArgument, "argument %d: %v", i, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, errors.Newf(errors.ErrInvalidArgument, "argument %d is %T, want %T", i, args[i], zero)
	}
	return out, nil
}

// Operation is one business method of a component instance
type Operation func(ctx context.Context, args Args) (any, error)

// Instance is a live component. Operations is consulted on every call and must be
// safe to read concurrently.
type Instance interface {
	Operations() map[string]Operation
}

// PostConstructor runs once after the factory, before the instance serves calls.
type PostConstructor interface {
	PostConstruct(ctx context.Context) error
}

// PreDestroyer runs once before the container discards the instance.
type PreDestroyer interface {
	PreDestroy(ctx context.Context) error
}

// Snapshotter exposes the conversational state of a stateful instance.
type Snapshotter interface {
	Snapshot() any
}

// Invoker calls an operation on a named singleton
type Invoker interface {
	Invoke(ctx context.Context, name, op string, args Args) (any, error)
}

// Env holds configuration entries handed to a component's factory
type Env map[string]any

// String returns the entry as a string, or def when absent or of another type
func (e Env) String(key, def string) string {
	if v, ok := e[key].(string); ok {
		return v
	}
	return def
}

// Float64 returns the entry as a float64, or def when absent or non-numeric
func (e Env) Float64(key string, def float64) float64 {
	switch v := e[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Factory builds a new, not yet post-constructed, instance
type Factory func(deps Dependencies) (Instance, error)

// DependencyFunc supplies the Dependencies handed to def's factory
type DependencyFunc func(def *Definition) Dependencies

// Construct runs the factory and the post-construction hook for def.
func Construct(ctx context.Context, def *Definition, deps Dependencies) (inst Instance, err error) {
	defer recoverPanic(def.Name, "construct", &err)

	inst, err = def.Factory(deps)
	if err != nil {
		return nil, errors.WrapFatal(err, def.Name, "Construct", "factory")
	}
	if inst == nil {
		return nil, errors.WrapFatal(errors.Newf(errors.ErrInvalidDefinition, "factory returned nil"),
			def.Name, "Construct", "factory")
	}
	if pc, ok := inst.(PostConstructor); ok {
		if err := pc.PostConstruct(ctx); err != nil {
			return nil, errors.WrapFatal(err, def.Name, "Construct", "post-construct")
		}
	}
	return inst, nil
}

// Destroy runs the pre-destroy hook when the instance has one.
// Errors and panics are logged, never propagated, since the instance is discarded anyway.
func Destroy(ctx context.Context, logger *slog.Logger, name string, inst Instance) {
	pd, ok := inst.(PreDestroyer)
	if !ok {
		return
	}
	var err error
	func() {
		defer recoverPanic(name, "destroy", &err)
		err = pd.PreDestroy(ctx)
	}()
	if err != nil && logger != nil {
		logger.Warn("pre-destroy failed", "component", name, "error", err)
	}
}

// Call dispatches op on inst. A panic inside the operation is converted to
// ErrComponentPanic so callers can release their locks through defer and still
// get an error back.
func Call(ctx context.Context, name string, inst Instance, op string, args Args) (result any, err error) {
	fn, ok := inst.Operations()[op]
	if !ok {
		return nil, errors.Newf(errors.ErrUnknownOperation, "%s.%s", name, op)
	}
	defer recoverPanic(name, op, &err)
	return fn(ctx, args)
}

func recoverPanic(name, op string, err *error) {
	if r := recover(); r != nil {
		*err = errors.WrapFatal(fmt.Errorf("%w: %v\n%s", errors.ErrComponentPanic, r, debug.Stack()),
			name, op, "invoke")
	}
}
