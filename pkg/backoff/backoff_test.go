package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponential(t *testing.T) {
	e := NewExponential(100*time.Millisecond, time.Second)

	assert.Equal(t, 100*time.Millisecond, e.Delay(0))
	assert.Equal(t, 100*time.Millisecond, e.Delay(1))
	assert.Equal(t, 200*time.Millisecond, e.Delay(2))
	assert.Equal(t, 400*time.Millisecond, e.Delay(3))
	assert.Equal(t, 800*time.Millisecond, e.Delay(4))
	assert.Equal(t, time.Second, e.Delay(5))
	assert.Equal(t, time.Second, e.Delay(1000))
}

func TestExponentialUncapped(t *testing.T) {
	e := NewExponential(time.Millisecond, 0)
	assert.Equal(t, 1024*time.Millisecond, e.Delay(11))
}

func TestConstant(t *testing.T) {
	c := Constant(time.Second)
	assert.Equal(t, time.Second, c.Delay(1))
	assert.Equal(t, time.Second, c.Delay(42))
}

func TestStrategyFunc(t *testing.T) {
	s := StrategyFunc(func(attempt int) time.Duration {
		return time.Duration(attempt) * time.Millisecond
	})
	assert.Equal(t, 3*time.Millisecond, s.Delay(3))
}
