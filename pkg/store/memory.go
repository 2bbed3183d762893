package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/srand/capataz/pkg/future"
	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/utils"
)

var _ Store = (*MemoryStore)(nil)

// A store which keeps all jobs in memory.
// Settled jobs are dropped unless configured to be kept.
type MemoryStore struct {
	mu       sync.Mutex
	ledger   ledger
	resident resident

	keepResolved bool
	keepRejected bool
	resolved     map[job.ID]*job.Job
	rejected     map[job.ID]*job.Job
}

func NewMemoryStore(config *Config, opts ...Option) *MemoryStore {
	return &MemoryStore{
		ledger:       newLedger(config.MaxScheduled, opts...),
		resident:     newResident(),
		keepResolved: config.KeepResolved,
		keepRejected: config.KeepRejected,
		resolved:     map[job.ID]*job.Job{},
		rejected:     map[job.ID]*job.Job{},
	}
}

func (s *MemoryStore) Store(spec job.Spec) (*job.Job, error) {
	s.mu.Lock()
	j, sequence, err := s.ledger.create(spec, s.resident.pendingCount())
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.resident.push(&entry{id: j.ID, sequence: sequence, handle: j.Handle, job: j})
	stored := j.Clone()
	s.mu.Unlock()

	// Registered outside the lock, the handle may already be settled.
	j.Handle.OnSettle(func(value json.RawMessage, err error) {
		s.settle(j, value, err)
	})

	return stored, nil
}

func (s *MemoryStore) Task(amount int) ([]*job.Job, error) {
	if amount <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.ledger.now()
	jobs := make([]*job.Job, 0, amount)

	for _, e := range s.resident.assign(amount) {
		e.job.Assign(now)
		jobs = append(jobs, e.job.Clone())
	}
	if len(jobs) > 0 {
		return jobs, nil
	}

	for _, e := range s.resident.reoffer(amount) {
		jobs = append(jobs, e.job.Clone())
	}
	return jobs, nil
}

func (s *MemoryStore) Assigned(id job.ID) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.resident.isAssigned(id)
	if !ok {
		return nil, fmt.Errorf("%w: job %d is not assigned", utils.ErrNotFound, id)
	}
	return e.job.Clone(), nil
}

func (s *MemoryStore) Evict(id job.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resident.remove(id); ok {
		return true
	}

	_, resolved := s.resolved[id]
	_, rejected := s.rejected[id]
	delete(s.resolved, id)
	delete(s.rejected, id)
	return resolved || rejected
}

func (s *MemoryStore) Capacity() int {
	return s.ledger.capacity()
}

func (s *MemoryStore) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Count:    s.ledger.count(),
		Pending:  s.resident.pendingIDs(),
		Assigned: s.resident.assignedIDs(),
	}
	if s.keepResolved {
		status.Resolved = sortedIDs(s.resolved)
	}
	if s.keepRejected {
		status.Rejected = sortedIDs(s.rejected)
	}
	return status
}

// Returns a kept settled job.
func (s *MemoryStore) Settled(id job.ID) (*job.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.resolved[id]; ok {
		return j.Clone(), true
	}
	if j, ok := s.rejected[id]; ok {
		return j.Clone(), true
	}
	return nil, false
}

func (s *MemoryStore) Close() error {
	return nil
}

// Handle continuation. Only assigned jobs are settled,
// cancelled handles are left to Evict.
func (s *MemoryStore) settle(j *job.Job, value json.RawMessage, err error) {
	if j.Handle.State() == future.Cancelled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.resident.isAssigned(j.ID)
	if !ok || e.job != j {
		s.ledger.logger.Debugf("Ignoring settlement of job %d, it is not assigned", j.ID)
		return
	}
	s.resident.remove(j.ID)

	now := s.ledger.now()
	if err != nil {
		j.Reject(job.ReasonOf(err), now)
		if s.keepRejected {
			s.rejected[j.ID] = j
		}
	} else {
		j.Resolve(value, now)
		if s.keepResolved {
			s.resolved[j.ID] = j
		}
	}
}
