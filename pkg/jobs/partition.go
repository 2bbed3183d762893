package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/registry"
)

// One way of splitting a list of numbers in two.
type Partition struct {
	Partition int64   `json:"partition"`
	List0     []int64 `json:"list0"`
	List1     []int64 `json:"list1"`
	// Sum of List0 minus sum of List1. Zero for a solution.
	Diff int64 `json:"diff"`
}

// Splits numbers by the bits of partition, most significant bit first.
// Numbers whose bit is clear go to List0, the others to List1.
func EvaluatePartition(partition int64, numbers []int64) *Partition {
	result := &Partition{
		Partition: partition,
		List0:     []int64{},
		List1:     []int64{},
	}

	n := len(numbers)
	for i, number := range numbers {
		bit := n - 1 - i
		if bit >= 63 || partition&(1<<bit) == 0 {
			result.List0 = append(result.List0, number)
			result.Diff += number
		} else {
			result.List1 = append(result.List1, number)
			result.Diff -= number
		}
	}

	return result
}

func partitionEvaluate(_ context.Context, _ []any, args []json.RawMessage) (any, error) {
	partition, err := registry.Arg[int64](args, 0)
	if err != nil {
		return nil, err
	}
	numbers, err := registry.Arg[[]int64](args, 1)
	if err != nil {
		return nil, err
	}
	return EvaluatePartition(partition, numbers), nil
}

// Returns the specs evaluating every partition of numbers.
// Partitions mirrored by swapping both lists are left out.
func Partitions(numbers []int64) iter.Seq[job.Spec] {
	count := int64(0)
	if len(numbers) > 1 {
		count = int64(1)<<(len(numbers)-1) - 1
	}
	numbersArg, _ := json.Marshal(numbers)

	return func(yield func(job.Spec) bool) {
		for partition := int64(0); partition < count; partition++ {
			spec := job.Spec{
				Payload: job.Payload{
					Entrypoint: EntrypointPartitionEvaluate,
					Args:       []json.RawMessage{marshalArgs(partition)[0], numbersArg},
				},
				Info: marshalInfo(fmt.Sprintf("Partition #%d", partition)),
			}
			if !yield(spec) {
				return
			}
		}
	}
}
