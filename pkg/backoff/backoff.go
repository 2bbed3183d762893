package backoff

import (
	"time"
)

// Computes the delay before a retry.
type Strategy interface {
	// Returns the delay to wait after failed attempt n, starting at 1.
	Delay(attempt int) time.Duration
}

// Adapts a function to the Strategy interface.
type StrategyFunc func(attempt int) time.Duration

func (fn StrategyFunc) Delay(attempt int) time.Duration {
	return fn(attempt)
}

// Waits the same amount of time after every attempt.
type Constant time.Duration

func (c Constant) Delay(int) time.Duration {
	return time.Duration(c)
}

// Doubles the delay after every failed attempt, up to a maximum.
type Exponential struct {
	Min time.Duration
	Max time.Duration
}

func NewExponential(minDelay, maxDelay time.Duration) *Exponential {
	return &Exponential{Min: minDelay, Max: maxDelay}
}

// Returns Min * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := e.Min
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay <= 0 || (e.Max > 0 && delay >= e.Max) {
			return e.Max
		}
	}

	if e.Max > 0 && delay > e.Max {
		return e.Max
	}
	return delay
}
