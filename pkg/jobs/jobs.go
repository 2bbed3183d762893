// Package jobs contains the functions shipped with every drudger and
// the generators of the matching job specs.
package jobs

import (
	"github.com/srand/capataz/pkg/registry"
)

const (
	EntrypointPiSlice           = "pi.slice"
	EntrypointPartitionEvaluate = "partition.evaluate"
)

// Registers all functions of the package.
func Register(r *registry.Registry) {
	r.Register(EntrypointPiSlice, piSlice)
	r.Register(EntrypointPartitionEvaluate, partitionEvaluate)
}
