package store

import (
	"fmt"

	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/stats"
	"github.com/srand/capataz/pkg/utils"
)

// Bookkeeping shared by all store variants: ids, timestamps,
// handles and admission control. Not safe for concurrent use.
type ledger struct {
	maxScheduled int
	lastID       job.ID
	sequence     uint64
	clock        job.Clock
	stats        *stats.Statistics
	logger       *log.Logger
}

func newLedger(maxScheduled int, opts ...Option) ledger {
	l := ledger{
		maxScheduled: maxScheduled,
		logger:       log.Default(),
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

func (l *ledger) now() job.Timestamp {
	return job.Now(l.clock)
}

// Creates a new pending job, unless pending has reached the maximum.
func (l *ledger) create(spec job.Spec, pending int) (*job.Job, uint64, error) {
	if l.maxScheduled > 0 && pending >= l.maxScheduled {
		return nil, 0, fmt.Errorf("%w (%d)", utils.ErrCapacityExceeded, l.maxScheduled)
	}

	l.lastID = l.lastID.Next()
	l.sequence++

	j := job.New(l.lastID, spec, l.now())

	if l.stats != nil {
		l.stats.Add(stats.Keys{"key": "scheduled"}.With(spec.Tags), 1, nil)
	}

	return j, l.sequence, nil
}

func (l *ledger) capacity() int {
	return max(0, l.maxScheduled)
}

func (l *ledger) count() job.ID {
	return l.lastID
}
