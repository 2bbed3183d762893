package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"math"

	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/registry"
)

// Integrates a quarter circle of radius r over [from, to).
// Summing all slices of [0, r] yields an estimate of pi.
func PiSlice(ctx context.Context, from, to, r float64) (float64, error) {
	sum := 0.0
	for x := from; x < to; x++ {
		if int64(x)%(1<<16) == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		sum += math.Sqrt(math.Max(0, r*r-x*x))
	}
	return sum / r / r * 4, nil
}

func piSlice(ctx context.Context, _ []any, args []json.RawMessage) (any, error) {
	from, err := registry.Arg[float64](args, 0)
	if err != nil {
		return nil, err
	}
	to, err := registry.Arg[float64](args, 1)
	if err != nil {
		return nil, err
	}
	r, err := registry.Arg[float64](args, 2)
	if err != nil {
		return nil, err
	}
	if r <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", registry.ErrInvalidArgument)
	}
	return PiSlice(ctx, from, to, r)
}

// Returns the specs of count jobs which together estimate pi
// with a circle of the given radius.
func PiSlices(radius int64, count int, tags map[string]string) iter.Seq[job.Spec] {
	count = max(1, count)
	step := max(1, int64(math.Round(float64(radius+1)/float64(count))))
	width := len(fmt.Sprint(radius))

	stepTags := map[string]string{"step": fmt.Sprintf("%0*d", width, step)}
	for key, value := range tags {
		stepTags[key] = value
	}

	return func(yield func(job.Spec) bool) {
		for x := int64(0); x <= radius; x += step {
			to := min(x+step, radius+1)
			spec := job.Spec{
				Payload: job.Payload{
					Entrypoint: EntrypointPiSlice,
					Args:       marshalArgs(x, to, radius),
				},
				Info: marshalInfo(fmt.Sprintf("x <- [%d, %d)", x, to)),
				Tags: stepTags,
			}
			if !yield(spec) {
				return
			}
		}
	}
}

func marshalArgs(values ...any) []json.RawMessage {
	args := make([]json.RawMessage, len(values))
	for i, value := range values {
		args[i], _ = json.Marshal(value)
	}
	return args
}

func marshalInfo(info string) json.RawMessage {
	data, _ := json.Marshal(info)
	return data
}
