package future

import (
	"context"
	"errors"
	"sync"
)

var ErrCancelled = errors.New("Cancelled")

// The settlement state of a future.
type State int

const (
	Pending State = iota
	Resolved
	Rejected
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// A value that becomes available once.
//
// A future is settled exactly once, by Resolve, Reject or Cancel.
// Later settlement attempts are ignored and return false.
type Future[T any] struct {
	mu        sync.Mutex
	state     State
	value     T
	err       error
	callbacks []func(T, error)
	done      chan struct{}
}

// Creates a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Creates a future resolved with value.
func Resolve[T any](value T) *Future[T] {
	f := New[T]()
	f.Resolve(value)
	return f
}

// Creates a future rejected with err.
func Reject[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

func (f *Future[T]) Resolve(value T) bool {
	return f.settle(Resolved, value, nil)
}

func (f *Future[T]) Reject(err error) bool {
	var zero T
	if err == nil {
		err = errors.New("Rejected")
	}
	return f.settle(Rejected, zero, err)
}

func (f *Future[T]) Cancel() bool {
	var zero T
	return f.settle(Cancelled, zero, ErrCancelled)
}

// Callbacks run in registration order before Done is closed.
func (f *Future[T]) settle(state State, value T, err error) bool {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return false
	}
	f.state = state
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(value, err)
	}
	close(f.done)
	return true
}

// Registers a continuation which is called with the settled value or error.
// If the future is already settled the continuation runs immediately.
func (f *Future[T]) OnSettle(fn func(value T, err error)) {
	f.mu.Lock()
	if f.state == Pending {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()

	fn(value, err)
}

func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Future[T]) Settled() bool {
	return f.State() != Pending
}

// Closed once the future is settled and all continuations have run.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Returns the settled value and error without blocking.
// A pending future returns the zero value and no error.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Blocks until the future is settled or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Returns a future settled with fn applied to the value of f.
//
// Rejections are passed on unchanged. Cancelling f cancels the returned future.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	next := New[U]()

	f.OnSettle(func(value T, err error) {
		switch {
		case errors.Is(err, ErrCancelled) && f.State() == Cancelled:
			next.Cancel()
		case err != nil:
			next.Reject(err)
		default:
			result, err := fn(value)
			if err != nil {
				next.Reject(err)
			} else {
				next.Resolve(result)
			}
		}
	})

	return next
}

// Runs fn in a goroutine and returns a future for its outcome.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		value, err := fn()
		if err != nil {
			f.Reject(err)
		} else {
			f.Resolve(value)
		}
	}()
	return f
}
