package future

import (
	"context"
	"sync"
	"time"

	"github.com/srand/capataz/pkg/backoff"
)

// The outcome of one settled future.
type Outcome[T any] struct {
	State State
	Value T
	Err   error
}

// Resolves with all values, in order, once every future has resolved.
// Rejects with the first error as soon as any future fails.
func All[T any](futures ...*Future[T]) *Future[[]T] {
	result := New[[]T]()
	values := make([]T, len(futures))

	if len(futures) == 0 {
		result.Resolve(values)
		return result
	}

	var mu sync.Mutex
	remaining := len(futures)

	for i, f := range futures {
		f.OnSettle(func(value T, err error) {
			if err != nil {
				result.Reject(err)
				return
			}

			mu.Lock()
			values[i] = value
			remaining--
			last := remaining == 0
			mu.Unlock()

			if last {
				result.Resolve(values)
			}
		})
	}

	return result
}

// Resolves once every future has settled, in any state.
func Settled[T any](futures ...*Future[T]) *Future[[]Outcome[T]] {
	result := New[[]Outcome[T]]()
	outcomes := make([]Outcome[T], len(futures))

	if len(futures) == 0 {
		result.Resolve(outcomes)
		return result
	}

	var mu sync.Mutex
	remaining := len(futures)

	for i, f := range futures {
		f.OnSettle(func(value T, err error) {
			mu.Lock()
			outcomes[i] = Outcome[T]{State: f.State(), Value: value, Err: err}
			remaining--
			last := remaining == 0
			mu.Unlock()

			if last {
				result.Resolve(outcomes)
			}
		})
	}

	return result
}

// Runs steps one after another, stopping at the first error.
func Sequence[T any](ctx context.Context, steps ...func(context.Context) (T, error)) ([]T, error) {
	values := make([]T, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return values, err
		}
		value, err := step(ctx)
		if err != nil {
			return values, err
		}
		values = append(values, value)
	}
	return values, nil
}

// Calls fn until it succeeds or attempts are exhausted, sleeping
// strategy.Delay(n) after failed attempt n. Returns the last error.
func Retry[T any](ctx context.Context, attempts int, strategy backoff.Strategy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var value T
	var err error

	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		value, err = fn(ctx, attempt)
		if err == nil {
			return value, nil
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(strategy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}

	return value, err
}

// Calls fn repeatedly as long as it succeeds and cond holds for its result.
func DoWhile[T any](ctx context.Context, fn func(context.Context) (T, error), cond func(T) bool) (T, error) {
	for {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}

		value, err := fn(ctx)
		if err != nil || !cond(value) {
			return value, err
		}
	}
}
