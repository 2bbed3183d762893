package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/utils"
)

var (
	ErrUnknownEntrypoint = fmt.Errorf("%w: unknown entrypoint", utils.ErrNotFound)
	ErrUnknownModule     = fmt.Errorf("%w: unknown module", utils.ErrNotFound)
	ErrInvalidArgument   = fmt.Errorf("%w: invalid argument", utils.ErrBadRequest)
)

// A function executable by drudgers. deps holds the values of the modules
// a job depends on, in the order they were listed.
type Func func(ctx context.Context, deps []any, args []json.RawMessage) (any, error)

// Maps job entrypoints to functions and dependency names to module values.
type Registry struct {
	mu      sync.RWMutex
	funcs   map[string]Func
	modules map[string]any
}

func New() *Registry {
	return &Registry{
		funcs:   map[string]Func{},
		modules: map[string]any{},
	}
}

// Registers fn as entrypoint name. A previous registration is replaced.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Registers a module value that jobs can list as dependency.
func (r *Registry) Module(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[name] = value
}

// Returns the sorted names of all registered entrypoints.
func (r *Registry) Entrypoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) resolve(payload job.Payload) (Func, []any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[payload.Entrypoint]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownEntrypoint, payload.Entrypoint)
	}

	deps := make([]any, 0, len(payload.Deps))
	for _, name := range payload.Deps {
		value, ok := r.modules[name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
		}
		deps = append(deps, value)
	}

	return fn, deps, nil
}

// Executes a payload and returns its result as JSON.
// A panicking function fails with a detailed error carrying the stack.
func (r *Registry) Invoke(ctx context.Context, payload job.Payload) (result json.RawMessage, err error) {
	fn, deps, err := r.resolve(payload)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = utils.NewDetailedError(fmt.Sprintf("Execution of %s panicked: %v", payload.Entrypoint, p), string(debug.Stack()))
		}
	}()

	value, err := fn(ctx, deps, payload.Args)
	if err != nil {
		return nil, err
	}

	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(value)
}

// Decodes argument i into a value of type T.
func Arg[T any](args []json.RawMessage, i int) (T, error) {
	var value T
	if i < 0 || i >= len(args) {
		return value, fmt.Errorf("%w: missing argument %d", ErrInvalidArgument, i)
	}
	if err := json.Unmarshal(args[i], &value); err != nil {
		return value, fmt.Errorf("%w %d: %v", ErrInvalidArgument, i, err)
	}
	return value, nil
}

// Returns dependency i as a value of type T.
func Dep[T any](deps []any, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(deps) {
		return zero, fmt.Errorf("%w: missing dependency %d", ErrUnknownModule, i)
	}
	value, ok := deps[i].(T)
	if !ok {
		return zero, fmt.Errorf("dependency %d has unexpected type %T", i, deps[i])
	}
	return value, nil
}
