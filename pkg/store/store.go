package store

import (
	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/log"
	"github.com/srand/capataz/pkg/stats"
)

// A job store keeps scheduled jobs across their lifecycle.
type Store interface {
	// Creates a pending job for spec.
	// Returns utils.ErrCapacityExceeded if the maximum number of pending jobs is reached.
	Store(spec job.Spec) (*job.Job, error)

	// Returns up to amount jobs. Pending jobs are assigned first.
	// Only when no job is pending are assigned, unsettled jobs offered again.
	Task(amount int) ([]*job.Job, error)

	// Returns an assigned job, or utils.ErrNotFound.
	Assigned(id job.ID) (*job.Job, error)

	// Removes a pending or assigned job from the store.
	// Its handle is not settled.
	Evict(id job.ID) bool

	// Returns the maximum number of pending jobs, zero if unlimited.
	Capacity() int

	// Returns the ids of the jobs in the store, by state.
	Status() Status

	Close() error
}

// Job ids grouped by state.
type Status struct {
	// The last id handed out.
	Count    job.ID   `json:"count"`
	Pending  []job.ID `json:"pending"`
	Assigned []job.ID `json:"assigned"`
	Resolved []job.ID `json:"resolved,omitempty"`
	Rejected []job.ID `json:"rejected,omitempty"`
}

type Option func(*ledger)

// Records the "scheduled" statistic for every stored job.
func WithStatistics(s *stats.Statistics) Option {
	return func(l *ledger) {
		l.stats = s
	}
}

func WithClock(clock job.Clock) Option {
	return func(l *ledger) {
		l.clock = clock
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(l *ledger) {
		l.logger = logger
	}
}
