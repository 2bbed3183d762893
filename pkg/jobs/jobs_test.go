package jobs

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry() *registry.Registry {
	r := registry.New()
	Register(r)
	return r
}

func TestPiSlices(t *testing.T) {
	r := newRegistry()
	pi := 0.0
	count := 0

	for spec := range PiSlices(100000, 8, map[string]string{"run": "test"}) {
		require.NoError(t, spec.Validate())
		assert.Equal(t, "012500", spec.Tags["step"])
		assert.Equal(t, "test", spec.Tags["run"])

		result, err := r.Invoke(context.Background(), spec.Payload)
		require.NoError(t, err)

		var value float64
		require.NoError(t, json.Unmarshal(result, &value))
		pi += value
		count++
	}

	assert.Equal(t, 9, count)
	assert.InDelta(t, math.Pi, pi, 1e-3)
}

func TestPiSliceArguments(t *testing.T) {
	r := newRegistry()

	_, err := r.Invoke(context.Background(), job.Payload{
		Entrypoint: EntrypointPiSlice,
		Args:       []json.RawMessage{json.RawMessage(`0`), json.RawMessage(`10`), json.RawMessage(`0`)},
	})
	assert.ErrorIs(t, err, registry.ErrInvalidArgument)

	_, err = r.Invoke(context.Background(), job.Payload{
		Entrypoint: EntrypointPiSlice,
		Args:       []json.RawMessage{json.RawMessage(`"zero"`)},
	})
	assert.ErrorIs(t, err, registry.ErrInvalidArgument)
}

func TestPiSliceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PiSlice(ctx, 0, 1<<20, 1<<20)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluatePartition(t *testing.T) {
	p := EvaluatePartition(0b0101, []int64{1, 2, 3, 4})
	assert.Equal(t, []int64{1, 3}, p.List0)
	assert.Equal(t, []int64{2, 4}, p.List1)
	assert.Equal(t, int64(-2), p.Diff)

	p = EvaluatePartition(0b0110, []int64{1, 2, 3, 4})
	assert.Equal(t, int64(0), p.Diff)
}

func TestPartitions(t *testing.T) {
	r := newRegistry()
	numbers := []int64{61, 83, 88, 94, 121, 281}

	specs := 0
	solutions := []int64{}
	for spec := range Partitions(numbers) {
		specs++

		result, err := r.Invoke(context.Background(), spec.Payload)
		require.NoError(t, err)

		var p Partition
		require.NoError(t, json.Unmarshal(result, &p))
		if p.Diff == 0 {
			solutions = append(solutions, p.Partition)
		}
	}

	assert.Equal(t, 31, specs)
	// 61 + 88 + 94 + 121 = 83 + 281
	assert.Equal(t, []int64{17}, solutions)

	solutions = solutions[:0]
	for spec := range Partitions([]int64{1, 2, 3}) {
		result, err := r.Invoke(context.Background(), spec.Payload)
		require.NoError(t, err)

		var p Partition
		require.NoError(t, json.Unmarshal(result, &p))
		if p.Diff == 0 {
			solutions = append(solutions, p.Partition)
		}
	}
	assert.Equal(t, []int64{1}, solutions)
}
